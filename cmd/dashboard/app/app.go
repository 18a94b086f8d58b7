package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/flightwire/drone-telemetry/internal/api"
	"github.com/flightwire/drone-telemetry/internal/flightlog"
	"github.com/flightwire/drone-telemetry/internal/ingest"
	"github.com/flightwire/drone-telemetry/internal/link"
	"github.com/flightwire/drone-telemetry/internal/store"
)

// Run wires the consumer pipeline: websocket ingest into a bounded store,
// queried over HTTP by the chart page at its own cadence. Blocks until the
// context is cancelled.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	st, err := store.New(config.Store.MaxDataPoints)
	if err != nil {
		return fmt.Errorf("creating telemetry store: %w", err)
	}

	dial := func(ctx context.Context) (link.Receiver, error) {
		return link.Dial(ctx, config.Source.URL)
	}

	options := []func(*ingest.Loop){ingest.WithLogger(logger)}

	var flights *flightlog.Store
	if config.Recording.Enabled {
		flights, err = createFlightLog(&config.Recording)
		if err != nil {
			return fmt.Errorf("creating flight log: %w", err)
		}
		defer flights.Close()

		flightID, err := flights.CreateFlight(ctx, config.Source.URL, config)
		if err != nil {
			return fmt.Errorf("creating flight: %w", err)
		}

		logger.Info("recording flight", slog.Int64("flightID", flightID))
		options = append(options, ingest.WithRecorder(flights.Recorder(flightID)))
	}

	loop := ingest.New(dial, st, options...)

	server, err := api.NewServer(st, api.Config{
		ListenAddr: config.API.ListenAddr,
		StaleAfter: config.Store.StaleAfter(),
		StaticDir:  config.API.StaticDir,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err = server.Start(); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}

	err = loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	logger.Info("shutting down", slog.Uint64("droppedRecords", loop.Dropped()))
	return errors.Join(err, server.Close())
}

func createFlightLog(config *RecordingConfig) (*flightlog.Store, error) {
	dir := config.DataDirectory
	if dir == "" {
		dir = defaultDataDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dir, fmt.Sprintf("flight_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return flightlog.New(dbPath), nil
}
