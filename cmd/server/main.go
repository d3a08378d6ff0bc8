package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"yogiworld.io/internal/inventory"
	"yogiworld.io/internal/persistence/indexdb"
	persistlog "yogiworld.io/internal/persistence/log"
	"yogiworld.io/internal/platform/config"
	"yogiworld.io/internal/platform/otel"
	"yogiworld.io/internal/sim/tuning"
	"yogiworld.io/internal/sim/world"
	"yogiworld.io/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":3000", "http listen address")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite reward index")
		staticDir  = flag.String("static", "", "directory of static client files to serve at / (optional)")
		dotenv     = flag.String("env_file", ".env", "optional .env file")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	if err := config.LoadDotEnv(*dotenv); err != nil {
		logger.Fatalf("dotenv: %v", err)
	}
	var env config.ServerEnv
	if err := config.ParseEnv(&env); err != nil {
		logger.Fatalf("%v", err)
	}
	listen := env.ListenAddr(*addr)
	if env.TuningPath != "" {
		*tuningPath = env.TuningPath
	}
	if env.DataDir != "" {
		*dataDir = env.DataDir
	}
	if env.DisableDB {
		*disableDB = true
	}

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", *tuningPath)
		tune = tuning.Defaults()
	}

	ctx, cancel := signalContext()
	defer cancel()

	shutdownTracing, err := otel.Setup(ctx, "yogiworld-server", env.OTelEndpoint)
	if err != nil {
		logger.Fatalf("otel: %v", err)
	}
	defer func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = shutdownTracing(ctx2)
	}()

	cfg := world.ConfigFromTuning(tune)
	cfg.Logger = logger
	w, err := world.New(cfg, tune.Zones)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	journal := persistlog.NewJournal(*dataDir)
	journal.SetLogger(logger)

	// Optional read model; the journal stays the source of truth.
	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "yogiworld.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		journal.SetMirror(idx)
	}
	// The journal drains into the index, so it closes first.
	defer func() {
		_ = journal.Close()
		if idx != nil {
			_ = idx.Close()
		}
	}()
	w.SetJournal(journal)

	if u := strings.TrimSpace(env.InventoryURL); u != "" {
		inv, err := inventory.NewClient(inventory.Config{BaseURL: u, Token: env.InventoryKey, Timeout: cfg.ProfileTimeout})
		if err != nil {
			logger.Fatalf("inventory: %v", err)
		}
		w.SetProfileSource(inv)
		logger.Printf("inventory lookups enabled base=%s", u)
	}

	// The journal and index are closed by the deferred calls above, so the
	// world loop must be gone before main returns.
	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	routes{world: w, index: idx, logger: logger}.register(mux)
	mux.HandleFunc("/v1/ws", ws.NewServer(w, logger).Handler())
	if *staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(*staticDir)))
	}

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", listen)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	cancel()
	<-worldDone
	// Release any profile lookups still waiting to post a result.
	w.Stop()
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
