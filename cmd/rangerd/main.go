package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/me/rangerd/internal/admission"
	"github.com/me/rangerd/internal/config"
	"github.com/me/rangerd/internal/directory"
	"github.com/me/rangerd/internal/hal"
	"github.com/me/rangerd/internal/importance"
	"github.com/me/rangerd/internal/logging"
	"github.com/me/rangerd/internal/metrics"
	"github.com/me/rangerd/internal/scheduler"
	"github.com/me/rangerd/internal/server"
	"github.com/me/rangerd/internal/store"
	"github.com/me/rangerd/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configFile := flag.String("config", "", "Path to YAML config file")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "Log format (text, json)")
	dbPath := flag.String("db", "", "Database path (default ~/.rangerd/rangerd.db)")
	simLatency := flag.Duration("sim-latency", 300*time.Millisecond, "Simulated controller ranging latency")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logFormat != "" {
		cfg.LogFormat = *logFormat
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	// Resolve database path.
	path := cfg.DBPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot determine home directory: %v\n", err)
			os.Exit(1)
		}
		dir := filepath.Join(home, ".rangerd")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "cannot create %s: %v\n", dir, err)
			os.Exit(1)
		}
		path = filepath.Join(dir, "rangerd.db")
	}

	// Open store and run migrations.
	st, err := store.NewSQLiteStore(path, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
		os.Exit(1)
	}
	logger.Info("database ready", "path", path)

	// Metrics registry.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	tele := metrics.New(reg)

	clk := clock.New()
	dir := directory.NewStaticDirectory()
	cls := importance.NewStaticClassifier()

	adm := admission.New(clk, admission.Config{
		FloodCap:       cfg.FloodCap,
		BackgroundGap:  cfg.BackgroundGap(),
		ExemptPackages: cfg.ThrottleExempt,
	}, cls, logger)

	ctrl := hal.NewSimController(clk, *simLatency, logger)

	sched := scheduler.New(clk, scheduler.Config{
		MaxTargets:           cfg.MaxTargets,
		RangingTimeout:       cfg.RangingTimeout(),
		HandleRangingTimeout: cfg.HandleRangingTimeout(),
	}, ctrl, dir, adm, tele, cfg.GatingConditions, logger)
	ctrl.SetResultSink(sched.OnControllerResults)
	ctrl.SetAbortAckSink(sched.OnControllerAbortAck)

	// The record is written before the scheduler notifies the caller, so a
	// client reacting to its terminal event always finds the session in
	// history.
	sched.SetRetiredHook(func(sess model.Session) {
		if err := st.CreateSession(context.Background(), &sess); err != nil {
			logger.Error("persist session", "session", sess.ID, "error", err)
		}
	})

	sched.SetControllerAvailable(true)

	srv := server.New(cfg, sched, st, logger,
		server.WithDirectory(dir),
		server.WithClassifier(cls),
		server.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
	)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Stop taking requests, then fail whatever is still queued.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
	sched.SetControllerAvailable(false)
	logger.Info("server stopped")
}
