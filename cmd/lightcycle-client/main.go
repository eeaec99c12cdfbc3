package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phaseline/lightcycle/internal/config"
	"github.com/phaseline/lightcycle/internal/input"
	"github.com/phaseline/lightcycle/internal/logging"
	"github.com/phaseline/lightcycle/internal/match"
	"github.com/phaseline/lightcycle/internal/transport"
	"github.com/phaseline/lightcycle/internal/world"
	"github.com/phaseline/lightcycle/pkg/streaming"
)

const programName = "lightcycle-client"

func main() {
	configDir := flag.String("config", ".", "directory containing "+config.FileName)
	flag.Parse()

	if err := run(*configDir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configDir string) error {
	slogManager := logging.NewSlogManager()
	slogManager.Setup(nil, "info", nil, nil)
	logger := slogManager.Logger()

	if err := config.Load(configDir); err != nil {
		logger.Warn("Failed to load config, using defaults!", "error", err)
	}

	var replica *match.Replica
	tick := func() uint64 {
		if replica == nil {
			return 0
		}
		return replica.Predictor().CurrentTick()
	}
	slogManager.Setup(nil, config.GetString("logLevel"), nil,
		logging.TickContext(func() string { return programName }, tick))
	logger = slogManager.Logger()

	clientCfg, err := config.GetClientConfig()
	if err != nil {
		return err
	}
	serverCfg, err := config.GetServerConfig()
	if err != nil {
		return err
	}
	matchCfg, err := config.GetMatchConfig()
	if err != nil {
		return err
	}
	codec, err := streaming.NewCodec(clientCfg.Codec)
	if err != nil {
		return err
	}
	arena := world.DefaultArena(serverCfg.ArenaSize)
	if serverCfg.WorldFile != "" {
		if arena, err = world.Load(serverCfg.WorldFile); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := transport.Dial(ctx, clientCfg.URL, codec, transport.WithClientLogger(logger))
	if err != nil {
		return err
	}
	defer client.Close()

	joinCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	welcome, err := client.Join(joinCtx, clientCfg.Name, clientCfg.Bot)
	cancel()
	if err != nil {
		return fmt.Errorf("join failed: %w", err)
	}

	src := newSource(clientCfg)
	newReplica := func(w streaming.WelcomePayload) error {
		r, err := match.NewReplica(matchCfg, arena, w, codec, src, client, logger)
		if err != nil {
			return err
		}
		replica = r
		client.SetHandler(r.Handle)
		logger.Info("Joined", "vehicle", w.VehicleID, "tick", w.Tick)
		return nil
	}
	if err := newReplica(welcome); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Duration(matchCfg.Dt() * float64(time.Second)))
	defer ticker.Stop()
	report := time.NewTicker(5 * time.Second)
	defer report.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Client stopped")
			return nil
		case w := <-client.Welcomes():
			// a reconnect rejoined us as a new vehicle
			if err := newReplica(w); err != nil {
				return err
			}
		case <-ticker.C:
			if _, err := replica.Tick(ctx); err != nil {
				if errors.Is(err, transport.ErrClosed) {
					return nil
				}
				logger.Debug("Tick failed", "error", err)
			}
		case <-report.C:
			logState(logger, replica)
		}
	}
}

func newSource(cfg config.ClientConfig) input.Source {
	if cfg.Bot {
		return input.Weave{Throttle: 1, Steer: 0.6}
	}
	return input.Shaped{Source: input.Constant{Throttle: 1}, Shaper: input.DefaultShaper()}
}

func logState(logger *slog.Logger, r *match.Replica) {
	s := r.State()
	logger.Info("State",
		"vehicle", r.ID(),
		"pos", s.Position,
		"speed", s.Speed(),
		"dead", r.Dead(),
		"segments", len(r.Segments(r.ID())),
	)
}
