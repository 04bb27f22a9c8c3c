package http

import (
	"time"

	"github.com/tlxue/everclaw/internal/config"
	"github.com/tlxue/everclaw/internal/logger"
	"github.com/tlxue/everclaw/internal/service"
	"golang.org/x/time/rate"
)

type Handler struct {
	services *service.Services

	// limiter throttles vault routes per client IP; nil when disabled.
	limiter        *IPLimiter
	requestTimeout time.Duration

	logger *logger.Logger
}

func NewHandler(services *service.Services, cfg config.Server, logger *logger.Logger) *Handler {
	h := &Handler{
		services:       services,
		requestTimeout: cfg.RequestTimeout,
		logger:         logger,
	}
	if cfg.RateLimitRPS > 0 {
		h.limiter = NewIPLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	logger.Info().Bool("rate_limited", h.limiter != nil).Msg("http handler created")
	return h
}

// Limiter returns the per-IP limiter guarding the vault routes, or nil when
// rate limiting is disabled.
func (h *Handler) Limiter() *IPLimiter {
	return h.limiter
}
