package link

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

// TransmitFunc runs the producer loop for one accepted connection. It is
// called once per client and should return when the context is cancelled
// or the link is no longer usable.
type TransmitFunc func(ctx context.Context, s Sender)

// NewHandler wraps a transmit loop into an http.Handler that upgrades each
// request to a websocket and hands the connection to the loop.
func NewHandler(transmit TransmitFunc, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			logger.Warn("rejecting connection", slog.String("error", err.Error()))
			return
		}

		logger.Info("client connected", slog.String("remote", r.RemoteAddr))
		conn := Conn{ws: ws}

		transmit(r.Context(), &conn)

		_ = conn.Close()
		logger.Info("client disconnected", slog.String("remote", r.RemoteAddr))
	})
}

// WithServerLogger sets the logger for the server.
func WithServerLogger(logger *slog.Logger) func(*Server) {
	return func(s *Server) {
		s.logger = logger
	}
}

// Server exposes a transmitter endpoint. Each accepted connection gets its
// own invocation of the transmit loop, so every consumer pair has an
// independent channel.
type Server struct {
	addr       string
	path       string
	transmit   TransmitFunc
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a transmitter server listening on addr and serving
// websocket upgrades at path.
func NewServer(addr, path string, transmit TransmitFunc, options ...func(*Server)) *Server {
	s := Server{
		addr:     addr,
		path:     path,
		transmit: transmit,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// ListenAndServe blocks until the context is cancelled or the listener
// fails. Shutdown is graceful: in-flight transmit loops see their request
// contexts cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(s.path, NewHandler(s.transmit, s.logger))

	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: mux,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	s.logger.Info("transmitter listening", slog.String("addr", s.addr), slog.String("path", s.path))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil

	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
