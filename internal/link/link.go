// Package link carries telemetry records over a single long-lived
// websocket: the producer is the sole sender, the consumer the sole
// receiver, one connection per running pair. Records travel as flat JSON
// objects with the stable field names declared in the telemetry package.
package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/flightwire/drone-telemetry/internal/telemetry"
)

// DefaultEndpoint is where the transmitter listens and the dashboard dials.
const DefaultEndpoint = "ws://localhost:8765/telemetry"

// ErrClosed reports end of stream: the peer closed the link cleanly or the
// underlying connection went away. Receive never returns records after it.
var ErrClosed = errors.New("telemetry link closed")

// Sender is the producer side of the channel. Send failures are transient:
// the caller logs them and retries on the next tick.
type Sender interface {
	Send(ctx context.Context, rec telemetry.Record) error
	Close() error
}

// Receiver is the consumer side. Receive blocks until a record arrives,
// the context is cancelled, or the link closes (ErrClosed).
type Receiver interface {
	Receive(ctx context.Context) (telemetry.Record, error)
	Close() error
}

// Conn adapts one websocket connection to the Sender and Receiver
// contracts. Which of the two a process uses is fixed by its role.
type Conn struct {
	ws *websocket.Conn
}

// Dial connects the consumer side to a transmitter endpoint.
func Dial(ctx context.Context, url string) (*Conn, error) {
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return &Conn{ws: ws}, nil
}

// Send writes one record. Errors are transient from the caller's point of
// view unless the link is closed.
func (c *Conn) Send(ctx context.Context, rec telemetry.Record) error {
	if err := wsjson.Write(ctx, c.ws, &rec); err != nil {
		if isClosed(err) {
			return ErrClosed
		}
		return fmt.Errorf("sending record: %w", err)
	}
	return nil
}

// Receive reads the next record, blocking until one is available.
func (c *Conn) Receive(ctx context.Context) (telemetry.Record, error) {
	var rec telemetry.Record
	if err := wsjson.Read(ctx, c.ws, &rec); err != nil {
		if ctx.Err() != nil {
			return rec, ctx.Err()
		}
		if isClosed(err) {
			return rec, ErrClosed
		}
		return rec, fmt.Errorf("receiving record: %w", err)
	}
	return rec, nil
}

// Close shuts the websocket down cleanly.
func (c *Conn) Close() error {
	err := c.ws.Close(websocket.StatusNormalClosure, "")
	if err != nil && !isClosed(err) {
		return err
	}
	return nil
}

func isClosed(err error) bool {
	return websocket.CloseStatus(err) != -1 ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed)
}
