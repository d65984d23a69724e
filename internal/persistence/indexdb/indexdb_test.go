package indexdb

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"lawrence.mp/internal/sim/game"
	"lawrence.mp/internal/sim/tuning"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick, tick: game.TickLogEntry{Tick: 1}}

	_ = s.WriteTick(game.TickLogEntry{Tick: 2})
	_ = s.WriteSession(game.SessionLogEntry{Tick: 2, SessionID: "s1"})

	st := s.Stats()
	if st.DropTickTotal != 1 || st.DropSessionTotal != 1 {
		t.Fatalf("drops: tick=%d session=%d", st.DropTickTotal, st.DropSessionTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_PersistsTicksAndSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "lawrence.sqlite")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.UpsertTuning(tuning.Defaults()); err != nil {
		t.Fatalf("upsert tuning: %v", err)
	}
	_ = s.WriteTick(game.TickLogEntry{Tick: 7, Sessions: 2, Joins: []string{"a", "b"}, Updates: 3, StepMS: 0.5})
	_ = s.WriteSession(game.SessionLogEntry{Tick: 7, SessionID: "a", Username: "ratchet", Event: game.SessionJoin})
	_ = s.WriteSession(game.SessionLogEntry{Tick: 9, SessionID: "a", Username: "ratchet", Event: game.SessionKicked, Reason: "bye", ConnectedMS: 33})
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	var joins, updates int
	if err := db.QueryRow(`SELECT joins, updates FROM ticks WHERE tick=7`).Scan(&joins, &updates); err != nil {
		t.Fatalf("tick row: %v", err)
	}
	if joins != 2 || updates != 3 {
		t.Fatalf("tick row joins=%d updates=%d", joins, updates)
	}

	rows, err := db.Query(`SELECT event, reason FROM session_events WHERE session_id='a' ORDER BY seq`)
	if err != nil {
		t.Fatalf("session rows: %v", err)
	}
	defer rows.Close()
	var events []string
	for rows.Next() {
		var ev, reason string
		if err := rows.Scan(&ev, &reason); err != nil {
			t.Fatalf("scan: %v", err)
		}
		events = append(events, ev+":"+reason)
	}
	if len(events) != 2 || events[0] != "JOIN:" || events[1] != "KICKED:bye" {
		t.Fatalf("session events = %v", events)
	}

	var digest string
	if err := db.QueryRow(`SELECT digest FROM config WHERE name='tuning'`).Scan(&digest); err != nil || digest == "" {
		t.Fatalf("tuning row: digest=%q err=%v", digest, err)
	}
}

func TestIngestIndex_RetriesAndFlushesOnClose(t *testing.T) {
	var mu sync.Mutex
	reqCount := 0
	var kinds []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reqCount++
		first := reqCount == 1
		mu.Unlock()
		if first {
			http.Error(w, "temporary failure", http.StatusInternalServerError)
			return
		}
		if r.Header.Get("x-lmp-index-token") != "secret" {
			http.Error(w, "bad token", http.StatusUnauthorized)
			return
		}
		var body struct {
			Events []ingestEvent `json:"events"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		for _, ev := range body.Events {
			if ev.ServerID != "host-1" {
				kinds = append(kinds, "bad-server-id")
				continue
			}
			kinds = append(kinds, ev.Kind)
		}
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	idx, err := OpenIngest(IngestConfig{
		Endpoint:      srv.URL,
		Token:         "secret",
		ServerID:      "host-1",
		BatchSize:     10,
		FlushInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = idx.WriteTick(game.TickLogEntry{Tick: 1})
	_ = idx.WriteSession(game.SessionLogEntry{Tick: 1, SessionID: "s"})
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if reqCount != 2 {
		t.Fatalf("requests = %d, want 2 (one retry)", reqCount)
	}
	if len(kinds) != 2 || kinds[0] != "tick" || kinds[1] != "session" {
		t.Fatalf("kinds = %v", kinds)
	}
}

func TestOpenIngest_RequiresEndpointAndServer(t *testing.T) {
	if _, err := OpenIngest(IngestConfig{ServerID: "x"}); err == nil {
		t.Fatalf("expected endpoint error")
	}
	if _, err := OpenIngest(IngestConfig{Endpoint: "http://127.0.0.1:1"}); err == nil {
		t.Fatalf("expected server id error")
	}
}
