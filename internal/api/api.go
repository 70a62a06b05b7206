// Package api provides the HTTP REST API server.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/stveit/argus/internal/account"
	"github.com/stveit/argus/internal/api/health"
	"github.com/stveit/argus/internal/dispatch"
	"github.com/stveit/argus/internal/media"
	"github.com/stveit/argus/internal/storage"
)

// Config contains HTTP API server configuration.
type Config struct {
	Address         string
	IntakeRateLimit int  // incidents per minute per source IP
	Verbose         bool // log every request, not just failures
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.IntakeRateLimit == 0 {
		c.IntakeRateLimit = 600
	}
}

// Server is the HTTP API server.
type Server struct {
	config        *Config
	storage       storage.Storage
	registry      *media.Registry
	coordinator   *dispatch.Coordinator
	accounts      *account.Service
	server        *http.Server
	healthHandler *health.Handler
}

// New creates a new API server.
func New(cfg *Config, store storage.Storage, registry *media.Registry, coordinator *dispatch.Coordinator, accounts *account.Service) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("media registry is required")
	}
	if coordinator == nil {
		return nil, fmt.Errorf("dispatch coordinator is required")
	}
	if accounts == nil {
		return nil, fmt.Errorf("account service is required")
	}

	cfg.SetDefaults()

	s := &Server{
		config:        cfg,
		storage:       store,
		registry:      registry,
		coordinator:   coordinator,
		accounts:      accounts,
		healthHandler: health.NewHandler(),
	}

	s.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.setupRouter(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Run starts the HTTP server and blocks until context is canceled.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		log.Printf("HTTP API listening on %s", s.config.Address)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Printf("shutting down HTTP API server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.config.Address
}

// RegisterHealthChecker adds a health checker to the server.
func (s *Server) RegisterHealthChecker(c health.Checker) {
	if s.healthHandler != nil {
		s.healthHandler.RegisterChecker(c)
	}
}
