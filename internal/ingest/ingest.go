// Package ingest drives the consumer side of the pipeline: receive a
// record, validate it, publish it to the store. It runs on its own
// schedule, independent of whoever reads the store.
package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/flightwire/drone-telemetry/internal/link"
	"github.com/flightwire/drone-telemetry/internal/store"
	"github.com/flightwire/drone-telemetry/internal/telemetry"
)

const (
	// DefaultBackoffMin is the first reconnect delay.
	DefaultBackoffMin = 500 * time.Millisecond

	// DefaultBackoffMax caps the reconnect delay.
	DefaultBackoffMax = 5 * time.Second
)

// DialFunc establishes the consumer side of the telemetry channel. The
// loop calls it again, on a backoff schedule, whenever the link drops.
type DialFunc func(ctx context.Context) (link.Receiver, error)

// Recorder persists accepted records. Failures are logged and never stall
// ingestion.
type Recorder interface {
	Append(ctx context.Context, rec telemetry.Record) error
}

// WithLogger sets the logger for the loop.
func WithLogger(logger *slog.Logger) func(*Loop) {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithBackoff overrides the reconnect delays.
func WithBackoff(min, max time.Duration) func(*Loop) {
	return func(l *Loop) {
		if min > 0 {
			l.backoffMin = min
		}
		if max >= l.backoffMin {
			l.backoffMax = max
		}
	}
}

// WithRecorder makes the loop append every accepted record to a flight log.
func WithRecorder(rec Recorder) func(*Loop) {
	return func(l *Loop) {
		l.recorder = rec
	}
}

// Loop owns the ingest path. Per-record failures stay inside the loop:
// malformed records are dropped and counted, link failures trigger a
// reconnect, and nothing short of context cancellation stops it.
type Loop struct {
	dial     DialFunc
	store    *store.Store
	recorder Recorder
	logger   *slog.Logger

	backoffMin time.Duration
	backoffMax time.Duration

	dropped atomic.Uint64
}

// New creates an ingest loop writing into st.
func New(dial DialFunc, st *store.Store, options ...func(*Loop)) *Loop {
	l := Loop{
		dial:       dial,
		store:      st,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		backoffMin: DefaultBackoffMin,
		backoffMax: DefaultBackoffMax,
	}

	for _, option := range options {
		option(&l)
	}

	return &l
}

// Dropped returns how many malformed records were rejected so far.
func (l *Loop) Dropped() uint64 {
	return l.dropped.Load()
}

// Run connects and consumes until the context is cancelled. The store is
// marked disconnected whenever the link is down, so readers can surface a
// degraded indicator instead of silently showing frozen data.
//
// Every unproductive session, whether the dial failed or the stream ended
// before delivering a record, waits out the backoff schedule before the
// next attempt. Only a session that delivered records reconnects
// immediately and resets the schedule.
func (l *Loop) Run(ctx context.Context) error {
	backoff := l.backoffMin

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		receiver, err := l.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			l.store.SetConnected(false)
			l.logger.Warn("connecting to transmitter failed",
				slog.String("error", err.Error()),
				slog.Duration("retryIn", backoff))
		} else {
			l.logger.Info("connected to transmitter")
			received := l.consume(ctx, receiver)

			if err = receiver.Close(); err != nil {
				l.logger.Warn("closing receiver", slog.String("error", err.Error()))
			}
			l.store.SetConnected(false)

			if ctx.Err() != nil {
				return ctx.Err()
			}
			if received {
				backoff = l.backoffMin
				continue
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, l.backoffMax)
	}
}

// consume drains the receiver until the link drops or the context is
// cancelled. Returns true if at least one record was accepted, which
// resets the reconnect backoff.
func (l *Loop) consume(ctx context.Context, receiver link.Receiver) bool {
	var received bool

	for {
		rec, err := receiver.Receive(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
			case errors.Is(err, link.ErrClosed):
				l.logger.Info("telemetry stream ended")
			default:
				l.logger.Warn("receiving record failed", slog.String("error", err.Error()))
			}
			return received
		}

		if err = rec.Validate(); err != nil {
			l.dropped.Add(1)
			l.logger.Warn("dropping record", slog.String("error", err.Error()))
			continue
		}

		l.store.Write(rec)
		received = true

		if l.recorder != nil {
			if err = l.recorder.Append(ctx, rec); err != nil {
				l.logger.Warn("recording telemetry failed", slog.String("error", err.Error()))
			}
		}
	}
}
