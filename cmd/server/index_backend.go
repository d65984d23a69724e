package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lawrence.mp/internal/persistence/indexdb"
	"lawrence.mp/internal/sim/game"
	"lawrence.mp/internal/sim/tuning"
)

type runtimeIndex interface {
	game.TickLogger
	game.SessionLogger
	Close() error
	UpsertTuning(tune tuning.Tuning) error
	Stats() indexdb.Stats
}

func openRuntimeIndex(dataDir, serverID string, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("LMP_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(dataDir, "index", "lawrence.sqlite")
		return indexdb.OpenSQLite(dbPath)
	case "http":
		endpoint := strings.TrimSpace(os.Getenv("LMP_INDEX_INGEST_URL"))
		if endpoint == "" {
			return nil, fmt.Errorf("LMP_INDEX_BACKEND=http but LMP_INDEX_INGEST_URL is empty")
		}
		return indexdb.OpenIngest(indexdb.IngestConfig{
			Endpoint:      endpoint,
			Token:         strings.TrimSpace(os.Getenv("LMP_INDEX_TOKEN")),
			ServerID:      serverID,
			BatchSize:     envInt("LMP_INDEX_BATCH_SIZE", 128),
			FlushInterval: time.Duration(envInt("LMP_INDEX_FLUSH_MS", 500)) * time.Millisecond,
			Logger:        logger,
		})
	default:
		return nil, fmt.Errorf("unsupported LMP_INDEX_BACKEND: %s", backend)
	}
}

type multiTickLogger struct {
	a game.TickLogger
	b game.TickLogger
}

func (m multiTickLogger) WriteTick(entry game.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiSessionLogger struct {
	a game.SessionLogger
	b game.SessionLogger
}

func (m multiSessionLogger) WriteSession(entry game.SessionLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteSession(entry)
	}
	if m.b != nil {
		_ = m.b.WriteSession(entry)
	}
	return nil
}
