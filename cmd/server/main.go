package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/pkg/profile"

	persistlog "lawrence.mp/internal/persistence/log"
	"lawrence.mp/internal/protocol"
	"lawrence.mp/internal/sim/game"
	"lawrence.mp/internal/sim/script"
	"lawrence.mp/internal/sim/script/luahost"
	"lawrence.mp/internal/sim/tuning"
	"lawrence.mp/internal/transport/observer"
	"lawrence.mp/internal/transport/ws"
	"lawrence.mp/internal/ui/roster"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		serverID   = flag.String("server_id", "lawrence_1", "server id used by remote index backends")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		scriptPath = flag.String("script", "./scripts/player.lua", "Lua file defining entity classes (empty: no scripting)")
		disableDB  = flag.Bool("disable_db", false, "disable indexing (ticks + sessions + tuning)")
		tui        = flag.Bool("tui", false, "show the player roster in the terminal (logs go to <data>/server.log)")
		profMode   = flag.String("profile", "", "write a cpu or mem profile to <data> on exit")
	)
	flag.Parse()

	_ = os.MkdirAll(*dataDir, 0o755)

	var logOut io.Writer = os.Stdout
	if *tui {
		f, err := os.OpenFile(filepath.Join(*dataDir, "server.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("open server.log: %v", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := log.New(logOut, "[server] ", log.LstdFlags|log.Lmicroseconds)

	switch strings.ToLower(strings.TrimSpace(*profMode)) {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(*dataDir), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(*dataDir), profile.NoShutdownHook).Stop()
	default:
		logger.Fatalf("unknown -profile %q (want cpu or mem)", *profMode)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	if tune.ProtocolVersion != protocol.Version {
		logger.Fatalf("tuning protocol_version=%s but server speaks %s", tune.ProtocolVersion, protocol.Version)
	}

	var host script.Host = script.NopHost{}
	if sp := strings.TrimSpace(*scriptPath); sp != "" {
		lh, err := luahost.Load(sp)
		if err != nil {
			logger.Fatalf("load script: %v", err)
		}
		defer lh.Close()
		host = lh
	}

	g := game.New(game.Config{
		TickRateHz:         tune.TickRateHz,
		InactivityTimeout:  tune.InactivityTimeout(),
		ThrottleThreshold:  tune.ThrottleThreshold,
		LabelRefreshTicks:  uint64(tune.LabelRefreshTicks),
		FilteredAnimations: tune.FilteredAnimations,
		DefaultLevel:       tune.DefaultLevel,
		PlayerClass:        tune.PlayerClass,
	}, host, log.New(logOut, "[game] ", log.LstdFlags|log.Lmicroseconds))
	for _, l := range tune.Levels {
		if _, err := g.AddLevel(l.Name, l.GameID); err != nil {
			logger.Fatalf("level %s: %v", l.Name, err)
		}
	}

	// Optional: read-model index backend.
	idx, err := openRuntimeIndex(*dataDir, *serverID, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertTuning(tune); err != nil {
			logger.Printf("index backend: upsert tuning: %v", err)
		}
	}

	tickLog := persistlog.NewTickLogger(*dataDir)
	sessionLog := persistlog.NewSessionLogger(*dataDir)
	defer tickLog.Close()
	defer sessionLog.Close()
	if idx != nil {
		g.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
		g.SetSessionLogger(multiSessionLogger{a: sessionLog, b: idx})
	} else {
		g.SetTickLogger(tickLog)
		g.SetSessionLogger(sessionLog)
	}

	ctx, cancel := signalContext()
	defer cancel()

	if *tui {
		screen, err := tcell.NewScreen()
		if err != nil {
			logger.Fatalf("tui: %v", err)
		}
		if err := screen.Init(); err != nil {
			logger.Fatalf("tui: %v", err)
		}
		defer screen.Fini()
		r := roster.New(screen, "lawrence "+*addr)
		r.Attach(g.Center())
		go func() {
			_ = r.Run(ctx)
			cancel()
		}()
	}

	validator, err := protocol.NewValidator()
	if err != nil {
		logger.Fatalf("schemas: %v", err)
	}

	gameDone := make(chan struct{})
	go func() {
		defer close(gameDone)
		if err := g.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("game stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthzHandler)
	mux.HandleFunc("/metrics", metricsHandler(g, g.Dispatcher().Calls, g.Dispatcher().Failures, idx))

	enableAdminHTTP := envBool("LMP_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("LMP_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		// Local-only admin endpoints.
		obsSrv := observer.NewServer(g, logger)
		mux.HandleFunc("/admin/v1/state", obsSrv.StateHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())
		mux.HandleFunc("/admin/v1/sessions/{id}/kick", kickHandler(g))
	} else {
		logger.Printf("admin endpoints disabled (LMP_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(g, validator, ws.Options{OutQueue: tune.OutQueue}, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (%d Hz, %d levels, default %q)", *addr, tune.TickRateHz, len(tune.Levels), tune.DefaultLevel)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	cancel()
	<-gameDone
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
