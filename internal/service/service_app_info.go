package service

import (
	"context"

	"github.com/tlxue/everclaw/internal/config"
	"github.com/tlxue/everclaw/internal/logger"
	"github.com/tlxue/everclaw/models"
)

type appInfoService struct {
	appVersion  string
	environment string

	logger *logger.Logger
}

// NewAppInfoService reports the configured version, falling back to the
// version embedded at build time.
func NewAppInfoService(cfg config.App, buildInfo models.AppBuildInfo, logger *logger.Logger) (AppInfoService, error) {
	version := cfg.Version
	if version == "" {
		version = buildInfo.BuildVersion()
	}
	if version == "" {
		return nil, ErrVersionIsNotSpecified
	}

	return &appInfoService{
		appVersion:  version,
		environment: cfg.Environment,
		logger:      logger,
	}, nil
}

func (s *appInfoService) GetAppVersion(ctx context.Context) string {
	return s.appVersion
}

func (s *appInfoService) GetEnvironment(ctx context.Context) string {
	return s.environment
}
