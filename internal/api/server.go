// Package api exposes the dashboard's query surface over HTTP. Handlers
// only read store snapshots; they never block on the ingest path and
// return well-defined placeholders while the store is still empty.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"github.com/flightwire/drone-telemetry/internal/store"
	"github.com/flightwire/drone-telemetry/internal/telemetry"
)

// Config holds the web server settings.
type Config struct {
	ListenAddr string
	StaleAfter time.Duration // Last-write age after which data is flagged stale
	StaticDir  string        // Optional chart page; empty disables it
}

// Server serves telemetry snapshots to the render path.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	store      *store.Store
	config     Config
	logger     *slog.Logger
	started    time.Time

	listenAddr string
	wg         sync.WaitGroup
}

// NewServer initializes the gin engine and mounts all routes.
func NewServer(st *store.Store, config Config, logger *slog.Logger) (*Server, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if config.ListenAddr == "" {
		return nil, errors.New("listen address is required")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := Server{
		router:     router,
		store:      st,
		config:     config,
		logger:     logger,
		started:    time.Now(),
		listenAddr: config.ListenAddr,
	}

	s.setupRoutes()
	return &s, nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)

	api := s.router.Group("/api")
	api.GET("/telemetry", s.handleTelemetry)
	api.GET("/telemetry/history/:channel", s.handleHistory)
	api.GET("/channels", s.handleChannels)

	if s.config.StaticDir != "" {
		s.logger.Info("serving dashboard page", slog.String("dir", s.config.StaticDir))
		s.router.Static("/static", path.Join(s.config.StaticDir, "static"))
		s.router.NoRoute(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/api") {
				c.JSON(http.StatusNotFound, gin.H{"error": "api route not found"})
				return
			}
			c.File(path.Join(s.config.StaticDir, "index.html"))
		})
	}
}

// Start listens and serves connections in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return err
	}
	s.listenAddr = ln.Addr().String()

	s.httpServer = &http.Server{
		Addr:    s.listenAddr,
		Handler: s.router,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("dashboard API listening", slog.String("addr", s.listenAddr))

		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Addr returns the actual listen address, useful with a ":0" config.
func (s *Server) Addr() string {
	return s.listenAddr
}

// Close gracefully stops the server.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return err
		}
	}
	s.wg.Wait()
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": humanize.RelTime(s.started, time.Now(), "", ""),
	})
}

func (s *Server) handleTelemetry(c *gin.Context) {
	snap := s.store.Snapshot([]string{}, s.config.StaleAfter)

	lastUpdate := "never"
	if snap.Latest != nil {
		lastUpdate = humanize.Time(snap.Latest.Time())
	}

	c.JSON(http.StatusOK, gin.H{
		"telemetry":   snap.Latest,
		"connected":   snap.Connected,
		"stale":       snap.Stale,
		"last_update": lastUpdate,
	})
}

func (s *Server) handleHistory(c *gin.Context) {
	channel := c.Param("channel")
	if !slices.Contains(telemetry.Channels, channel) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown channel"})
		return
	}

	points := s.store.History(channel)
	if points == nil {
		points = []store.Point{}
	}

	c.JSON(http.StatusOK, gin.H{
		"channel": channel,
		"points":  points,
	})
}

func (s *Server) handleChannels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"channels": telemetry.Channels})
}
