package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"lawrence.mp/internal/sim/game"
	"lawrence.mp/internal/transport/observer"
)

type gameRuntime interface {
	CurrentTick() uint64
	Stats() game.StatsSnapshot
	QueueDepths() game.QueueDepths
	RequestKick(ctx context.Context, sessionID, reason string) error
}

func healthzHandler(rw http.ResponseWriter, r *http.Request) {
	rw.WriteHeader(200)
	_, _ = rw.Write([]byte("ok"))
}

func metricsHandler(g gameRuntime, scriptCalls, scriptFailures func() uint64, idx runtimeIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		s := g.Stats()
		q := g.QueueDepths()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP lawrence_tick Current game tick.\n")
		fmt.Fprintf(rw, "# TYPE lawrence_tick gauge\n")
		fmt.Fprintf(rw, "lawrence_tick %d\n", g.CurrentTick())

		fmt.Fprintf(rw, "# HELP lawrence_sessions Current number of player sessions.\n")
		fmt.Fprintf(rw, "# TYPE lawrence_sessions gauge\n")
		fmt.Fprintf(rw, "lawrence_sessions %d\n", s.Sessions)

		fmt.Fprintf(rw, "# HELP lawrence_joins_total Sessions admitted.\n")
		fmt.Fprintf(rw, "# TYPE lawrence_joins_total counter\n")
		fmt.Fprintf(rw, "lawrence_joins_total %d\n", s.Joins)

		fmt.Fprintf(rw, "# HELP lawrence_disconnects_total Sessions released, by cause.\n")
		fmt.Fprintf(rw, "# TYPE lawrence_disconnects_total counter\n")
		fmt.Fprintf(rw, "lawrence_disconnects_total{cause=%q} %d\n", "timeout", s.TimeoutDisconnects)
		fmt.Fprintf(rw, "lawrence_disconnects_total{cause=%q} %d\n", "closed", s.ClosedDisconnects)
		fmt.Fprintf(rw, "lawrence_disconnects_total{cause=%q} %d\n", "kicked", s.Kicks)

		fmt.Fprintf(rw, "# HELP lawrence_sent_total Outbound sync messages.\n")
		fmt.Fprintf(rw, "# TYPE lawrence_sent_total counter\n")
		fmt.Fprintf(rw, "lawrence_sent_total{kind=%q} %d\n", "moby_update", s.UpdatesSent)
		fmt.Fprintf(rw, "lawrence_sent_total{kind=%q} %d\n", "label", s.LabelsSent)

		fmt.Fprintf(rw, "# HELP lawrence_messages_in_total Inbound messages handled.\n")
		fmt.Fprintf(rw, "# TYPE lawrence_messages_in_total counter\n")
		fmt.Fprintf(rw, "lawrence_messages_in_total %d\n", s.MessagesIn)

		fmt.Fprintf(rw, "# HELP lawrence_message_errors_total Inbound messages answered with ERROR.\n")
		fmt.Fprintf(rw, "# TYPE lawrence_message_errors_total counter\n")
		fmt.Fprintf(rw, "lawrence_message_errors_total %d\n", s.MessageErrors)

		fmt.Fprintf(rw, "# HELP lawrence_queue_depth Channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE lawrence_queue_depth gauge\n")
		fmt.Fprintf(rw, "lawrence_queue_depth{queue=%q} %d\n", "join", q.Join)
		fmt.Fprintf(rw, "lawrence_queue_depth{queue=%q} %d\n", "inbox", q.Inbox)
		fmt.Fprintf(rw, "lawrence_queue_depth{queue=%q} %d\n", "admin", q.Admin)

		fmt.Fprintf(rw, "# HELP lawrence_step_ms Tick step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE lawrence_step_ms gauge\n")
		fmt.Fprintf(rw, "lawrence_step_ms{stat=%q} %.3f\n", "last", s.LastStepMS)
		fmt.Fprintf(rw, "lawrence_step_ms{stat=%q} %.3f\n", "max", s.MaxStepMS)

		if scriptCalls != nil && scriptFailures != nil {
			fmt.Fprintf(rw, "# HELP lawrence_script_calls_total Script event invocations.\n")
			fmt.Fprintf(rw, "# TYPE lawrence_script_calls_total counter\n")
			fmt.Fprintf(rw, "lawrence_script_calls_total %d\n", scriptCalls())
			fmt.Fprintf(rw, "lawrence_script_failures_total %d\n", scriptFailures())
		}

		if idx != nil {
			is := idx.Stats()
			fmt.Fprintf(rw, "# HELP lawrence_index_queue_depth Index writer backlog.\n")
			fmt.Fprintf(rw, "# TYPE lawrence_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "lawrence_index_queue_depth %d\n", is.QueueDepth)
			fmt.Fprintf(rw, "lawrence_index_queue_capacity %d\n", is.QueueCapacity)
			fmt.Fprintf(rw, "# HELP lawrence_index_dropped_total Index writes dropped on a full queue.\n")
			fmt.Fprintf(rw, "# TYPE lawrence_index_dropped_total counter\n")
			fmt.Fprintf(rw, "lawrence_index_dropped_total{kind=%q} %d\n", "tick", is.DropTickTotal)
			fmt.Fprintf(rw, "lawrence_index_dropped_total{kind=%q} %d\n", "session", is.DropSessionTotal)
		}
	}
}

// kickHandler serves POST /admin/v1/sessions/{id}/kick?reason=...
func kickHandler(g gameRuntime) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !observer.IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		id := r.PathValue("id")
		reason := strings.TrimSpace(r.URL.Query().Get("reason"))
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		rw.Header().Set("Content-Type", "application/json")
		err := g.RequestKick(ctx, id, reason)
		switch {
		case err == nil:
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "session_id": id})
		case errors.Is(err, game.ErrSessionNotFound):
			rw.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
		default:
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
		}
	}
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
