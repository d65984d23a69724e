package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index/lawrence.sqlite)")
	limit := fs.Int("limit", 20, "result limit")
	user := fs.String("user", "", "username filter (sessions)")
	_ = fs.Parse(args)

	q := "sessions"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if *limit <= 0 {
		*limit = 20
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "lawrence.sqlite")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	var rows []any
	switch q {
	case "sessions":
		rows, err = querySessions(db, strings.TrimSpace(*user), *limit)
	case "ticks":
		rows, err = queryTicks(db, *limit)
	case "users":
		rows, err = queryUsers(db, *limit)
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(want sessions, ticks or users)")
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, r := range rows {
		_ = enc.Encode(r)
	}
}

type sessionRow struct {
	Tick        int64  `json:"tick"`
	Time        string `json:"time"`
	SessionID   string `json:"session_id"`
	Username    string `json:"username"`
	Event       string `json:"event"`
	Reason      string `json:"reason,omitempty"`
	Level       string `json:"level,omitempty"`
	ConnectedMS int64  `json:"connected_ms,omitempty"`
}

func querySessions(db *sql.DB, user string, limit int) ([]any, error) {
	query := `SELECT tick,time,session_id,username,event,COALESCE(reason,''),COALESCE(level,''),connected_ms FROM session_events`
	args := []any{}
	if user != "" {
		query += ` WHERE username=?`
		args = append(args, user)
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	rs, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	var out []any
	for rs.Next() {
		var r sessionRow
		if err := rs.Scan(&r.Tick, &r.Time, &r.SessionID, &r.Username, &r.Event, &r.Reason, &r.Level, &r.ConnectedMS); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rs.Err()
}

type tickRow struct {
	Tick     int64   `json:"tick"`
	Sessions int     `json:"sessions"`
	Joins    int     `json:"joins"`
	Leaves   int     `json:"leaves"`
	Messages int     `json:"messages"`
	Errors   int     `json:"errors"`
	Updates  int     `json:"updates"`
	Labels   int     `json:"labels"`
	StepMS   float64 `json:"step_ms"`
}

func queryTicks(db *sql.DB, limit int) ([]any, error) {
	rs, err := db.Query(`SELECT tick,sessions,joins,leaves,messages,errors,updates,labels,step_ms FROM ticks ORDER BY tick DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	var out []any
	for rs.Next() {
		var r tickRow
		if err := rs.Scan(&r.Tick, &r.Sessions, &r.Joins, &r.Leaves, &r.Messages, &r.Errors, &r.Updates, &r.Labels, &r.StepMS); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rs.Err()
}

type userRow struct {
	Username  string `json:"username"`
	Sessions  int    `json:"sessions"`
	Connected string `json:"connected"`
	Kicks     int    `json:"kicks"`
	Timeouts  int    `json:"timeouts"`
}

// queryUsers aggregates joins and time connected per username.
func queryUsers(db *sql.DB, limit int) ([]any, error) {
	rs, err := db.Query(`SELECT username,
			SUM(CASE WHEN event='JOIN' THEN 1 ELSE 0 END),
			SUM(connected_ms),
			SUM(CASE WHEN event='KICKED' THEN 1 ELSE 0 END),
			SUM(CASE WHEN event='TIMEOUT' THEN 1 ELSE 0 END)
		FROM session_events GROUP BY username ORDER BY SUM(connected_ms) DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	var out []any
	for rs.Next() {
		var (
			r  userRow
			ms int64
		)
		if err := rs.Scan(&r.Username, &r.Sessions, &ms, &r.Kicks, &r.Timeouts); err != nil {
			return nil, err
		}
		r.Connected = humanize.RelTime(time.Time{}, time.Time{}.Add(time.Duration(ms)*time.Millisecond), "", "")
		r.Connected = strings.TrimSpace(r.Connected)
		out = append(out, r)
	}
	return out, rs.Err()
}
