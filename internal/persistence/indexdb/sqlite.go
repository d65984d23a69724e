// Package indexdb keeps a queryable secondary index of the game's tick and
// session history. The JSONL logs stay the source of truth; index writes are
// queued and dropped when the writer falls behind.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"lawrence.mp/internal/sim/game"
	"lawrence.mp/internal/sim/tuning"
)

// Stats reports queue pressure for /metrics.
type Stats struct {
	QueueDepth       int
	QueueCapacity    int
	DropTickTotal    uint64
	DropSessionTotal uint64
}

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick    atomic.Uint64
	dropSession atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqSession
)

type req struct {
	kind reqKind

	tick    game.TickLogEntry
	session game.SessionLogEntry
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS config (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			sessions INTEGER NOT NULL,
			joins INTEGER NOT NULL,
			leaves INTEGER NOT NULL,
			messages INTEGER NOT NULL,
			errors INTEGER NOT NULL,
			updates INTEGER NOT NULL,
			labels INTEGER NOT NULL,
			step_ms REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS session_events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			time TEXT NOT NULL,
			session_id TEXT NOT NULL,
			username TEXT NOT NULL,
			event TEXT NOT NULL,
			reason TEXT,
			level TEXT,
			connected_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events(session_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_session_events_user ON session_events(username, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) WriteTick(entry game.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteSession(entry game.SessionLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqSession, session: entry}:
	default:
		s.dropSession.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:       len(s.ch),
		QueueCapacity:    cap(s.ch),
		DropTickTotal:    s.dropTick.Load(),
		DropSessionTotal: s.dropSession.Load(),
	}
}

// UpsertTuning stores the tuning values the server actually runs with.
func (s *SQLiteIndex) UpsertTuning(tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, digest, err := tuningDigest(tune)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO config(name,digest,json,updated_at) VALUES(?,?,?,?)`,
		"tuning", digest, string(b), now); err != nil {
		return err
	}
	return tx.Commit()
}

func tuningDigest(tune tuning.Tuning) ([]byte, string, error) {
	b, err := json.Marshal(tune)
	if err != nil {
		return nil, "", err
	}
	sum := sha256.Sum256(b)
	return b, hex.EncodeToString(sum[:]), nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,sessions,joins,leaves,messages,errors,updates,labels,step_ms) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertSession, _ := s.db.Prepare(`INSERT INTO session_events(tick,time,session_id,username,event,reason,level,connected_ms) VALUES(?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertTick != nil {
			_ = insertTick.Close()
		}
		if insertSession != nil {
			_ = insertSession.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			t := r.tick
			if insertTick == nil {
				continue
			}
			if _, err := tx.Stmt(insertTick).Exec(
				int64(t.Tick),
				t.Sessions,
				len(t.Joins),
				len(t.Leaves),
				t.Messages,
				t.Errors,
				t.Updates,
				t.Labels,
				t.StepMS,
			); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqSession:
			e := r.session
			if insertSession == nil {
				continue
			}
			if _, err := tx.Stmt(insertSession).Exec(
				int64(e.Tick),
				e.Time,
				e.SessionID,
				e.Username,
				e.Event,
				e.Reason,
				e.Level,
				e.ConnectedMS,
			); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
