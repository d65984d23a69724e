package indexdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"lawrence.mp/internal/sim/game"
	"lawrence.mp/internal/sim/tuning"
)

// IngestConfig configures an index that POSTs batches of events to a remote
// HTTP endpoint instead of a local database.
type IngestConfig struct {
	Endpoint      string
	Token         string
	ServerID      string
	BatchSize     int
	FlushInterval time.Duration
	HTTPTimeout   time.Duration
	Logger        *log.Logger
}

type IngestIndex struct {
	cfg        IngestConfig
	httpClient *http.Client

	ch   chan ingestEvent
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick    atomic.Uint64
	dropSession atomic.Uint64
}

type ingestEvent struct {
	Kind     string `json:"kind"`
	ServerID string `json:"server_id"`
	Payload  any    `json:"payload"`
}

type ingestConfigPayload struct {
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	JSON      string `json:"json"`
	UpdatedAt string `json:"updated_at"`
}

func OpenIngest(cfg IngestConfig) (*IngestIndex, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.ServerID = strings.TrimSpace(cfg.ServerID)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty ingest endpoint")
	}
	if cfg.ServerID == "" {
		return nil, fmt.Errorf("empty server id")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}

	d := &IngestIndex{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		ch:         make(chan ingestEvent, 32768),
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop()
	}()
	return d, nil
}

func (d *IngestIndex) Close() error {
	if d == nil {
		return nil
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.ch)
		d.wg.Wait()
	})
	return nil
}

func (d *IngestIndex) WriteTick(entry game.TickLogEntry) error {
	if !d.enqueue(ingestEvent{Kind: "tick", Payload: entry}) {
		d.dropTick.Add(1)
	}
	return nil
}

func (d *IngestIndex) WriteSession(entry game.SessionLogEntry) error {
	if !d.enqueue(ingestEvent{Kind: "session", Payload: entry}) {
		d.dropSession.Add(1)
	}
	return nil
}

func (d *IngestIndex) UpsertTuning(tune tuning.Tuning) error {
	b, digest, err := tuningDigest(tune)
	if err != nil {
		return err
	}
	d.enqueue(ingestEvent{Kind: "config", Payload: ingestConfigPayload{
		Name:      "tuning",
		Digest:    digest,
		JSON:      string(b),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}})
	return nil
}

func (d *IngestIndex) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:       len(d.ch),
		QueueCapacity:    cap(d.ch),
		DropTickTotal:    d.dropTick.Load(),
		DropSessionTotal: d.dropSession.Load(),
	}
}

// enqueue reports false when the event was dropped on a full queue.
func (d *IngestIndex) enqueue(ev ingestEvent) bool {
	if d == nil || d.closed.Load() {
		return true
	}
	ev.ServerID = d.cfg.ServerID
	select {
	case d.ch <- ev:
		return true
	default:
		d.printf("ingest index queue full; drop kind=%s", ev.Kind)
		return false
	}
}

func (d *IngestIndex) loop() {
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]ingestEvent, 0, d.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := d.sendBatch(batch); err != nil {
			d.printf("ingest index flush failed batch=%d err=%v", len(batch), err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case ev, ok := <-d.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= d.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (d *IngestIndex) sendBatch(events []ingestEvent) error {
	body := struct {
		Events []ingestEvent `json:"events"`
	}{Events: events}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequest(http.MethodPost, d.cfg.Endpoint, bytes.NewReader(buf))
		if err != nil {
			return err
		}
		req.Header.Set("content-type", "application/json")
		if d.cfg.Token != "" {
			req.Header.Set("x-lmp-index-token", d.cfg.Token)
		}

		resp, err := d.httpClient.Do(req)
		if err == nil {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			err = fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
		lastErr = err
		time.Sleep(time.Duration(100*(1<<attempt)) * time.Millisecond)
	}
	return lastErr
}

func (d *IngestIndex) printf(format string, args ...any) {
	if d != nil && d.cfg.Logger != nil {
		d.cfg.Logger.Printf(format, args...)
	}
}
