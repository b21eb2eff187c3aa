package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sinvec/gimp-kandinsky/coordinator"
	"github.com/sinvec/gimp-kandinsky/core"
	"github.com/sinvec/gimp-kandinsky/httpapi"
	"github.com/sinvec/gimp-kandinsky/jobstate"
	"github.com/sinvec/gimp-kandinsky/kandinsky"
	"github.com/sinvec/gimp-kandinsky/logging"
	"github.com/sinvec/gimp-kandinsky/metrics"
	"github.com/sinvec/gimp-kandinsky/shutdown"
	"github.com/sinvec/gimp-kandinsky/worker"
)

// runServer runs until a signal arrives, ctx is cancelled, or a component
// fails, and returns the process exit code.
func runServer(ctx context.Context) int {
	if err := godotenv.Load(); err != nil {
		// logger isn't up yet
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	cfg, err := core.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return core.ExitCodeConfig
	}

	defaultLevel := zapcore.InfoLevel
	if cfg.DevMode {
		defaultLevel = zapcore.DebugLevel
	}
	logger, err := logging.NewLogger(cfg.DevMode, cfg.LogFile,
		logging.WithLevel(logging.ParseLogLevel("KANDINSKY_LOG_LEVEL", defaultLevel)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return core.ExitCodeError
	}
	log := logger.Zap()

	log.Info("Configuration loaded",
		zap.String("version", core.GetVersionInfo()),
		zap.String("addr", cfg.Addr()),
		zap.Duration("poll_timeout", cfg.PollTimeout),
		zap.Int64("max_body_bytes", cfg.MaxBodySize),
		zap.String("model_dir", cfg.Model.ModelDir),
		zap.String("device", cfg.Model.Device),
		zap.Bool("dev_mode", cfg.DevMode),
	)

	manager := shutdown.NewManager(log.Named("shutdown"), shutdown.WithTimeout(cfg.ShutdownTimeout))

	state := jobstate.New()
	store := metrics.NewStore(metrics.StoreConfig{
		HistoryCapacity: cfg.MetricsHistory,
		Version:         core.GetVersion(),
	}, time.Now())
	coord := coordinator.New(state, log.Named("coordinator"))
	w := worker.New(state, kandinsky.Load, worker.Config{
		PollTimeout: cfg.PollTimeout,
		Model:       cfg.Model,
	}, store, log.Named("worker"))

	srvCfg := httpapi.DefaultServerConfig()
	srvCfg.Host = cfg.Host
	srvCfg.Port = cfg.Port
	srvCfg.MaxBodySize = cfg.MaxBodySize
	srvCfg.ProgressInterval = cfg.ProgressInterval
	srvCfg.ShutdownTimeout = cfg.ShutdownTimeout
	srvCfg.Version = core.GetVersion()
	srv := httpapi.NewServer(srvCfg, coord, store, manager, log.Named("http"))

	manager.Register("http", shutdown.PriorityHTTP, shutdown.HTTPServer(srv))
	manager.Register("worker", shutdown.PriorityWorker, shutdown.StopWorker(log, w, cfg.WorkerStopTimeout))
	manager.Register("results", shutdown.PriorityDrain, shutdown.DrainResults(log, coord))
	manager.Register("logger", shutdown.PriorityLogger, shutdown.SyncLogger(log))
	manager.Start()

	go func() {
		select {
		case <-ctx.Done():
			manager.Trigger()
		case <-manager.Context().Done():
		}
	}()

	errc := make(chan error, 2)
	go func() {
		if err := w.Run(manager.Context()); err != nil {
			errc <- fmt.Errorf("worker: %w", err)
		}
	}()
	go func() {
		if err := srv.Start(manager.Context()); err != nil {
			errc <- fmt.Errorf("http: %w", err)
		}
	}()

	code := core.ExitCodeSuccess
	select {
	case <-manager.Context().Done():
	case err := <-errc:
		log.Error("Component failed, shutting down", zap.Error(err))
		code = core.ExitCodeError
		if errors.Is(err, kandinsky.ErrModelNotFound) {
			code = core.ExitCodeConfig
		}
	}

	if err := manager.Shutdown(); err != nil && code == core.ExitCodeSuccess {
		code = core.ExitCodeError
	}
	fmt.Printf("Exiting: %s\n", core.ExitCodeName(code))
	return code
}
