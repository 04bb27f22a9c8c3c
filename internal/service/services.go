package service

import (
	"github.com/tlxue/everclaw/internal/config"
	"github.com/tlxue/everclaw/internal/crypto"
	"github.com/tlxue/everclaw/internal/logger"
	"github.com/tlxue/everclaw/internal/store"
	"github.com/tlxue/everclaw/models"
)

// VaultServiceWrapper defines middleware composition for VaultService.
// Implementations wrap an existing VaultService to add behavior such as
// metrics or validation.
type VaultServiceWrapper interface {
	Wrap(VaultService) VaultService // returns a decorated VaultService applying additional behavior
}

type Services struct {
	RegistryService  RegistryService
	VaultService     VaultService
	ProvisionLimiter ProvisionLimiter
	AppInfoService   AppInfoService
}

// NewServices wires the services over storages. The vault service is
// decorated with path validation and metrics, outermost last.
func NewServices(storages *store.Storages, cfg config.StructuredConfig, buildInfo models.AppBuildInfo, logger *logger.Logger) (*Services, error) {
	appInfo, err := NewAppInfoService(cfg.App, buildInfo, logger)
	if err != nil {
		return nil, err
	}

	vault := NewVaultService(storages.Objects, storages.Usage, crypto.NewCipher(), cfg.App, logger)
	vault = NewVaultValidationService().Wrap(vault)
	vault = NewVaultMetricsService().Wrap(vault)

	return &Services{
		RegistryService:  NewRegistryService(storages.Credentials, storages.Usage, logger),
		VaultService:     vault,
		ProvisionLimiter: NewProvisionLimiter(storages.KV, cfg.Server, logger),
		AppInfoService:   appInfo,
	}, nil
}
