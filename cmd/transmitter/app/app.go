package app

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/flightwire/drone-telemetry/internal/link"
	"github.com/flightwire/drone-telemetry/internal/simulate"
)

// Run serves synthesized telemetry until the context is cancelled. Every
// accepted client gets its own synthesizer, so streams are independent and
// each starts with a full battery.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	var clients atomic.Int64

	transmit := func(ctx context.Context, sender link.Sender) {
		n := clients.Add(1)

		options := []func(*simulate.Synthesizer){
			simulate.WithInterval(config.Simulator.UpdateInterval()),
		}
		if config.Simulator.Seed != 0 {
			// Offset per client so parallel streams still differ.
			options = append(options, simulate.WithSeed(config.Simulator.Seed+n-1))
		}
		synth := simulate.New(options...)

		ticker := time.NewTicker(config.Simulator.UpdateInterval())
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			rec := synth.Next()
			if err := sender.Send(ctx, rec); err != nil {
				if errors.Is(err, link.ErrClosed) || ctx.Err() != nil {
					return
				}

				// Transient send failure: the record is lost, the next
				// tick tries again.
				logger.Warn("sending record failed", slog.String("error", err.Error()))
			}
		}
	}

	server := link.NewServer(config.Server.ListenAddr, config.Server.Path, transmit,
		link.WithServerLogger(logger))

	return server.ListenAndServe(ctx)
}
