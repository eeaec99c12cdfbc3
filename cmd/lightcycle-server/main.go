package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	"golang.org/x/sync/errgroup"

	"github.com/phaseline/lightcycle/internal/config"
	"github.com/phaseline/lightcycle/internal/dispatcher"
	"github.com/phaseline/lightcycle/internal/influx"
	"github.com/phaseline/lightcycle/internal/logging"
	"github.com/phaseline/lightcycle/internal/match"
	"github.com/phaseline/lightcycle/internal/monitor"
	intOtel "github.com/phaseline/lightcycle/internal/otel"
	"github.com/phaseline/lightcycle/internal/storage"
	"github.com/phaseline/lightcycle/internal/transport"
	"github.com/phaseline/lightcycle/internal/worker"
	"github.com/phaseline/lightcycle/internal/world"
	"github.com/phaseline/lightcycle/pkg/core"
	"github.com/phaseline/lightcycle/pkg/streaming"
)

// BuildDate can be set at build time via ldflags
var (
	Version   = "0.0.1"
	BuildDate = "unknown"
)

const programName = "lightcycle-server"

func main() {
	configDir := flag.String("config", ".", "directory containing "+config.FileName)
	flag.Parse()

	if err := run(*configDir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// lateOutbox lets the session be built before the hub it broadcasts to.
type lateOutbox struct{ hub *transport.Hub }

func (o *lateOutbox) Broadcast(msgType string, payload any) {
	if o.hub != nil {
		o.hub.Broadcast(msgType, payload)
	}
}

func (o *lateOutbox) Send(to core.VehicleID, msgType string, payload any) {
	if o.hub != nil {
		o.hub.Send(to, msgType, payload)
	}
}

func run(configDir string) error {
	sessionStart := time.Now()

	slogManager := logging.NewSlogManager()
	slogManager.Setup(nil, "info", nil, nil)
	logger := slogManager.Logger()

	if err := config.Load(configDir); err != nil {
		logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		logger.Info("Loaded config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs dir: %w", err)
	}
	logFilePath := logging.LogFilePath(logsDir, programName, sessionStart)
	logFile, err := os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	otelCfg, err := config.GetOTelConfig()
	if err != nil {
		return err
	}
	var provider *intOtel.Provider
	if otelCfg.Enabled {
		provider, err = intOtel.New(ctx, otelCfg, logFile)
		if err != nil {
			logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			logger.Info("OTel provider initialized", "file", logFilePath, "endpoint", otelCfg.Endpoint)
		}
	}
	var otelLogProvider *sdklog.LoggerProvider
	if provider != nil {
		otelLogProvider = provider.LoggerProvider()
	}

	// the session is built below; the context provider reads it lazily
	var session *match.Session
	matchName := func() string {
		if session == nil || session.Match() == nil {
			return ""
		}
		return session.Match().Name
	}
	currentTick := func() uint64 {
		if session == nil {
			return 0
		}
		return session.CurrentTick()
	}
	level := config.GetString("logLevel")
	slogManager.Setup(logFile, level, otelLogProvider, logging.TickContext(matchName, currentTick))
	logger = slogManager.Logger()
	logger.Info("Logging to file", "path", logFilePath, "version", Version, "build", BuildDate)

	serverCfg, err := config.GetServerConfig()
	if err != nil {
		return err
	}
	matchCfg, err := config.GetMatchConfig()
	if err != nil {
		return err
	}
	codec, err := streaming.NewCodec(serverCfg.Codec)
	if err != nil {
		return err
	}

	arena, err := loadWorld(serverCfg)
	if err != nil {
		return err
	}

	backend, err := initStorage(logsDir, sessionStart, level, logFile, logger)
	if err != nil {
		return err
	}

	influxManager, err := initInflux(ctx, logFile, level)
	if err != nil {
		logger.Error("Failed to initialize InfluxDB", "error", err)
	}

	mctx := match.NewContext()
	out := &lateOutbox{}
	monitorService := newMonitor(backend, serverCfg, logsDir, logger, func() uint {
		if m := mctx.GetMatch(); m != nil {
			return m.ID
		}
		return 0
	})

	observers := match.Observers{monitorService}
	if influxManager != nil {
		observers = append(observers, influxManager)
	}
	session, err = match.NewSession(matchCfg, arena, mctx,
		match.WithOutbox(out),
		match.WithRecorder(backend),
		match.WithObserver(observers),
		match.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	current := &core.Match{
		Name:      serverCfg.MatchName,
		WorldName: arena.Name(),
		StartTime: time.Now(),
		TickRate:  matchCfg.TickRate,
		Tag:       config.GetString("defaultTag"),
	}
	if err := backend.StartMatch(current); err != nil {
		return fmt.Errorf("failed to start match: %w", err)
	}
	mctx.SetMatch(current)
	if influxManager != nil {
		influxManager.MatchName = current.Name
	}
	logger.Info("Match started", "match", current.Name, "world", current.WorldName, "id", current.ID)

	dispatcherLogger := logging.NewDispatcherLogger(logging.NewZerolog(logFile, level))
	eventDispatcher, err := dispatcher.New(dispatcherLogger)
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	workerManager := worker.NewManager(worker.Dependencies{
		Session: session,
		Codec:   codec,
		Logger:  logger,
	})
	workerManager.RegisterHandlers(eventDispatcher)

	hub := transport.NewHub(codec, eventDispatcher, workerManager, transport.WithLogger(logger))
	out.hub = hub

	mux := http.NewServeMux()
	mux.Handle(serverCfg.Path, hub)
	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, "ok tick=%d peers=%d\n", session.CurrentTick(), hub.Peers())
	})
	server := &http.Server{
		Addr:              serverCfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := monitorService.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return session.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("Listening", "addr", serverCfg.Listen, "path", serverCfg.Path, "codec", serverCfg.Codec)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownGrace)
		defer cancel()
		hub.Close()
		return server.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()
	logger.Info("Shutting down", "tick", session.CurrentTick())

	monitorService.Stop()
	eventDispatcher.Close()

	if err := backend.EndMatch(); err != nil {
		logger.Error("Failed to end match", "error", err)
	}
	if exp, ok := backend.(storage.Exportable); ok && exp.ExportedFilePath() != "" {
		logger.Info("Match exported", "path", exp.ExportedFilePath())
	}
	if err := backend.Close(); err != nil {
		logger.Error("Failed to close storage", "error", err)
	}
	if influxManager != nil {
		if err := influxManager.Close(); err != nil {
			logger.Error("Failed to close InfluxDB", "error", err)
		}
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownGrace)
	defer cancel()
	if err := slogManager.Flush(flushCtx); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	if provider != nil {
		if err := provider.Shutdown(flushCtx); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	return runErr
}

func loadWorld(cfg config.ServerConfig) (*world.World, error) {
	if cfg.WorldFile == "" {
		return world.DefaultArena(cfg.ArenaSize), nil
	}
	path, err := filepath.Abs(cfg.WorldFile)
	if err != nil {
		return nil, err
	}
	return world.Load(path)
}

func newMonitor(backend any, cfg config.ServerConfig, logsDir string, logger *slog.Logger, matchID func() uint) *monitor.Service {
	deps := monitor.Dependencies{
		Logger:     logger,
		MatchID:    matchID,
		Period:     cfg.StatusPeriod,
		StatusPath: filepath.Join(logsDir, programName+".status.json"),
	}
	if q, ok := backend.(monitor.QueueReporter); ok {
		deps.Queues = q
	}
	if db, ok := backend.(gormBacked); ok {
		deps.DB = db.DB()
	}
	return monitor.NewService(deps)
}

func initInflux(ctx context.Context, logFile *os.File, level string) (*influx.Manager, error) {
	cfg, err := config.GetInfluxConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, nil
	}
	m := influx.NewManager(cfg, logging.NewZerolog(logFile, level).With().Str("component", "influx").Logger())
	if err := m.Connect(ctx); err != nil {
		return nil, err
	}
	return m, nil
}
