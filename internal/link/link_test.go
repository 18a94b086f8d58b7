package link

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/flightwire/drone-telemetry/internal/telemetry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testRecord(ts int64) telemetry.Record {
	return telemetry.Record{
		Timestamp:      ts,
		Roll:           1.25,
		Pitch:          -3.5,
		Yaw:            270,
		Latitude:       37.7749,
		Longitude:      -122.4194,
		Altitude:       100,
		BatteryVoltage: 11.5,
		BatteryPercent: 87.5,
		Temperature:    25,
		Connected:      true,
		SignalStrength: 95,
	}
}

func TestLink_RoundTrip(t *testing.T) {
	want := []telemetry.Record{testRecord(1), testRecord(2), testRecord(3)}

	transmit := func(ctx context.Context, s Sender) {
		for _, rec := range want {
			if err := s.Send(ctx, rec); err != nil {
				t.Errorf("sending record: %v", err)
				return
			}
		}
	}

	server := httptest.NewServer(NewHandler(transmit, discardLogger()))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, wsURL(server))
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	defer conn.Close()

	for i, wantRec := range want {
		got, err := conn.Receive(ctx)
		if err != nil {
			t.Fatalf("receiving record %d: %v", i, err)
		}
		if got != wantRec {
			t.Errorf("record %d = %+v, want %+v", i, got, wantRec)
		}
	}
}

func TestLink_ReceiveAfterServerClose(t *testing.T) {
	transmit := func(ctx context.Context, s Sender) {
		_ = s.Send(ctx, testRecord(1))
		// Returning ends the stream; the handler closes the connection.
	}

	server := httptest.NewServer(NewHandler(transmit, discardLogger()))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, wsURL(server))
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	defer conn.Close()

	if _, err = conn.Receive(ctx); err != nil {
		t.Fatalf("receiving first record: %v", err)
	}

	_, err = conn.Receive(ctx)
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Receive after close returned %v, want ErrClosed", err)
	}
}

func TestLink_ReceiveCancelled(t *testing.T) {
	transmit := func(ctx context.Context, s Sender) {
		// Send nothing; hold the connection open until the client goes away.
		<-ctx.Done()
	}

	server := httptest.NewServer(NewHandler(transmit, discardLogger()))
	defer server.Close()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dialCancel()

	conn, err := Dial(dialCtx, wsURL(server))
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err = conn.Receive(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Receive returned %v, want context.Canceled", err)
	}
}

func TestLink_SendAfterClientClose(t *testing.T) {
	sendErr := make(chan error, 1)
	transmit := func(ctx context.Context, s Sender) {
		// Keep sending until the client hangs up.
		for {
			if err := s.Send(ctx, testRecord(1)); err != nil {
				sendErr <- err
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	server := httptest.NewServer(NewHandler(transmit, discardLogger()))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, wsURL(server))
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	if _, err = conn.Receive(ctx); err != nil {
		t.Fatalf("receiving: %v", err)
	}
	if err = conn.Close(); err != nil {
		t.Fatalf("closing: %v", err)
	}

	select {
	case err := <-sendErr:
		if !errors.Is(err, ErrClosed) && !errors.Is(err, context.Canceled) {
			t.Errorf("Send after client close returned %v, want ErrClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("transmit loop never noticed the closed connection")
	}
}

func TestConn_CloseIsIdempotent(t *testing.T) {
	transmit := func(ctx context.Context, s Sender) {
		<-ctx.Done()
	}

	server := httptest.NewServer(NewHandler(transmit, discardLogger()))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, wsURL(server))
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}

	if err = conn.Close(); err != nil {
		t.Errorf("first Close returned %v", err)
	}
	if err = conn.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
}
