// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "assetfind"

// Server serves the asset API.
type Server struct {
	engine          *gin.Engine
	logger          *slog.Logger
	requestTimeout  time.Duration
	shutdownTimeout time.Duration
	allowedOrigins  []string
	tracerProvider  trace.TracerProvider
}

// Option configures a Server.
type Option func(*Server) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithRequestTimeout bounds every request. Zero disables the bound.
// Default: 10s.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) error {
		if d < 0 {
			return fmt.Errorf("%w: request timeout %v", ErrInvalidOption, d)
		}
		s.requestTimeout = d
		return nil
	}
}

// WithShutdownTimeout bounds the graceful shutdown in Run.
// Default: 5s.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) error {
		if d <= 0 {
			return fmt.Errorf("%w: shutdown timeout %v", ErrInvalidOption, d)
		}
		s.shutdownTimeout = d
		return nil
	}
}

// WithAllowedOrigins restricts CORS to origins. Empty allows all.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) error {
		s.allowedOrigins = origins
		return nil
	}
}

// WithTracerProvider traces requests with tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) error {
		s.tracerProvider = tp
		return nil
	}
}

// NewServer builds the router around searcher.
func NewServer(searcher Searcher, opts ...Option) (*Server, error) {
	if searcher == nil {
		return nil, ErrSearcherRequired
	}

	s := &Server{
		logger:          slog.Default(),
		requestTimeout:  10 * time.Second,
		shutdownTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "api")

	var otelOpts []otelgin.Option
	if s.tracerProvider != nil {
		otelOpts = append(otelOpts, otelgin.WithTracerProvider(s.tracerProvider))
	}

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		otelgin.Middleware(serviceName, otelOpts...),
		requestLogger(s.logger),
		corsMiddleware(s.allowedOrigins),
	)

	engine.GET("/healthz", health)

	h := &assetHandler{searcher: searcher, logger: s.logger}
	api := engine.Group("/api", requestTimeout(s.requestTimeout))
	{
		api.GET("/assets", h.search)
		api.GET("/assets/:id/related", h.related)
	}

	s.engine = engine
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
