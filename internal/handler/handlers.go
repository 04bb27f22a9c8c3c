// Package handler aggregates the transport handlers of the server.
package handler

import (
	"github.com/tlxue/everclaw/internal/config"
	"github.com/tlxue/everclaw/internal/handler/http"
	"github.com/tlxue/everclaw/internal/logger"
	"github.com/tlxue/everclaw/internal/service"
)

type Handlers struct {
	HTTP *http.Handler
}

func NewHandlers(services *service.Services, cfg config.Server, logger *logger.Logger) (*Handlers, error) {
	logger.Info().Msg("creating new handlers...")

	if cfg.HTTPAddress == "" {
		return nil, errNoHTTPAddress
	}

	return &Handlers{
		HTTP: http.NewHandler(services, cfg, logger),
	}, nil
}
