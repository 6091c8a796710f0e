// Package server exposes statement upload and the analytics views over HTTP.
//
// Routes:
//
//	POST /api/statements                    upload a statement (multipart field "file")
//	GET  /api/statements                    statements in period order
//	GET  /api/statements/{id}               one statement
//	GET  /api/statements/{id}/positions     filtered positions with summary
//	GET  /api/statements/{id}/daily         daily fee series
//	GET  /api/statements/{id}/top           most expensive symbols
//	GET  /api/history/comparison            period-over-period comparison
//	GET  /healthz                           liveness
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"broker-fee-reconciler/internal/history"
	"broker-fee-reconciler/internal/models"
	"broker-fee-reconciler/pkg/errors"
	"broker-fee-reconciler/pkg/logger"

	"golang.org/x/time/rate"
)

// StatementParser turns an uploaded file into a statement.
type StatementParser interface {
	ParseStatement(ctx context.Context, fileName string, data []byte) (*models.Statement, error)
}

// Config holds HTTP server options
type Config struct {
	Addr           string        `mapstructure:"addr"`
	MaxUploadBytes int64         `mapstructure:"-"`
	RatePerSecond  float64       `mapstructure:"rate_per_second"`
	Burst          int           `mapstructure:"burst"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
}

// DefaultConfig returns the server defaults
func DefaultConfig() *Config {
	return &Config{
		Addr:           ":8080",
		MaxUploadBytes: 10 << 20,
		RatePerSecond:  10,
		Burst:          30,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
	}
}

// Validate checks the server configuration
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "server.addr", c.Addr, nil)
	}
	if c.MaxUploadBytes <= 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "server.max_upload_mb", c.MaxUploadBytes, nil)
	}
	if c.RatePerSecond <= 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "server.rate_per_second", c.RatePerSecond, nil)
	}
	if c.Burst <= 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "server.burst", c.Burst, nil)
	}
	return nil
}

// Server serves the statement API
type Server struct {
	config  *Config
	parser  StatementParser
	store   *history.Store
	limiter *rate.Limiter
	logger  logger.Logger
	handler http.Handler
}

// New creates a server around parser and store
func New(config *Config, parser StatementParser, store *history.Store, log logger.Logger) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if parser == nil || store == nil {
		return nil, fmt.Errorf("server requires a statement parser and a history store")
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	s := &Server{
		config:  config,
		parser:  parser,
		store:   store,
		limiter: rate.NewLimiter(rate.Limit(config.RatePerSecond), config.Burst),
		logger:  log.WithComponent("server"),
	}
	s.handler = s.rateLimitMiddleware(s.routes())
	return s, nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/statements", s.handleUpload)
	mux.HandleFunc("GET /api/statements", s.handleList)
	mux.HandleFunc("GET /api/statements/{id}", s.handleGet)
	mux.HandleFunc("GET /api/statements/{id}/positions", s.handlePositions)
	mux.HandleFunc("GET /api/statements/{id}/daily", s.handleDaily)
	mux.HandleFunc("GET /api/statements/{id}/top", s.handleTop)
	mux.HandleFunc("GET /api/history/comparison", s.handleComparison)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.logger.WithFields(logger.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"remote_addr": r.RemoteAddr,
			}).Warn("Rate limit exceeded")
			writeError(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("address", s.config.Addr).Info("Server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, errors.CategoryNetwork, errors.CodeUnexpectedError,
				fmt.Sprintf("failed to listen on %s", s.config.Addr))
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.InternalError(errors.CodeUnexpectedError, "server shutdown", err)
	}
	s.logger.Info("Server stopped gracefully")
	return nil
}
