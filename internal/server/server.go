// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package server

import (
	"context"
	"net"
	"time"

	"github.com/tlxue/everclaw/internal/config"
	"github.com/tlxue/everclaw/internal/handler"
	"github.com/tlxue/everclaw/internal/logger"
	"github.com/tlxue/everclaw/internal/workers"
)

type server struct {
	httpServer      *httpServer
	workers         *workers.Workers
	address         string
	shutdownTimeout time.Duration

	logger *logger.Logger
}

func NewServer(handlers *handler.Handlers, ws *workers.Workers, cfg config.Server, logger *logger.Logger) (Server, error) {
	logger.Info().Msg("creating new server...")

	if handlers == nil || handlers.HTTP == nil {
		return nil, errNoHTTPHandler
	}

	return &server{
		httpServer:      newHTTPServer(handlers.HTTP.Init(), cfg),
		workers:         ws,
		address:         cfg.HTTPAddress,
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger,
	}, nil
}

func (s *server) RunServer(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, ln)
}

// serve runs the HTTP server and the workers on ln until ctx is cancelled or
// serving fails, then shuts both down.
func (s *server) serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		if s.workers != nil {
			s.workers.Run(ctx)
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", ln.Addr().String()).Msg("Launching HTTP server")
		serveErr <- s.httpServer.serve(ln)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
		s.logger.Err(runErr).Msg("HTTP server stopped unexpectedly")
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer stop()
	if err := s.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}

	<-workersDone
	s.logger.Info().Msg("server Shutdown gracefully")

	return runErr
}

func (s *server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("HTTP server Shutdown")
	return s.httpServer.shutdown(ctx)
}
