package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	persistlog "lawrence.mp/internal/persistence/log"
	"lawrence.mp/internal/sim/game"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "sessions":
			sessionsCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "kick":
			kickCmd(os.Args[2:])
			return
		}
	}
	sessionsCmd(os.Args[1:])
}

func sessionsCmd(args []string) {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	user := fs.String("user", "", "username filter")
	session := fs.String("session", "", "session id filter")
	asJSON := fs.Bool("json", false, "print raw JSON lines")
	_ = fs.Parse(args)

	entries, err := readSessions(filepath.Join(*dataDir, "sessions"), sessionFilter{
		Username:  strings.TrimSpace(*user),
		SessionID: strings.TrimSpace(*session),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "read sessions:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if *asJSON {
			b, _ := json.Marshal(e)
			fmt.Println(string(b))
			continue
		}
		fmt.Println(formatSession(e))
	}
}

type sessionFilter struct {
	Username  string
	SessionID string
}

func (f sessionFilter) match(e game.SessionLogEntry) bool {
	if f.Username != "" && e.Username != f.Username {
		return false
	}
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	return true
}

// readSessions returns every session log entry under dir in file order.
func readSessions(dir string, f sessionFilter) ([]game.SessionLogEntry, error) {
	files, err := persistlog.NewJSONLZstdWriter(dir, "sessions").Files()
	if err != nil {
		return nil, err
	}
	var out []game.SessionLogEntry
	for _, path := range files {
		err := persistlog.ReadLines(path, func(line []byte) error {
			var e game.SessionLogEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
			}
			if f.match(e) {
				out = append(out, e)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func formatSession(e game.SessionLogEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-8d %-8s %-36s %s", e.Tick, e.Event, e.SessionID, e.Username)
	if e.Level != "" {
		fmt.Fprintf(&b, " level=%s", e.Level)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, " reason=%q", e.Reason)
	}
	if e.ConnectedMS > 0 {
		fmt.Fprintf(&b, " connected=%s", (time.Duration(e.ConnectedMS) * time.Millisecond).Round(time.Second))
	}
	return b.String()
}
