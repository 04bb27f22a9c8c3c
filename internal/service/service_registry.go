package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tlxue/everclaw/internal/crypto"
	"github.com/tlxue/everclaw/internal/logger"
	"github.com/tlxue/everclaw/internal/metrics"
	"github.com/tlxue/everclaw/internal/store"
	"github.com/tlxue/everclaw/models"
)

const (
	credentialPrefix = "ec-"
	credentialHexLen = 64
	credentialLen    = len(credentialPrefix) + credentialHexLen

	vaultIDPrefix     = "vault-"
	vaultIDAlphabet   = "abcdefghijklmnopqrstuvwxyz0123456789"
	vaultIDSegments   = 3
	vaultIDSegmentLen = 4

	defaultVaultName = "default"
)

// registryService is the concrete implementation of RegistryService.
// Only the SHA-256 of a credential ever reaches the credential repository.
type registryService struct {
	credentials store.CredentialRepository
	usage       store.UsageLedger

	// random is the entropy source for credentials and vault IDs.
	random io.Reader

	logger *logger.Logger
}

// NewRegistryService constructs a RegistryService over the credential
// repository and the usage ledger that provisioning initialises.
func NewRegistryService(credentials store.CredentialRepository, usage store.UsageLedger, logger *logger.Logger) RegistryService {
	return &registryService{
		credentials: credentials,
		usage:       usage,
		random:      rand.Reader,
		logger:      logger,
	}
}

// Provision creates a vault and returns its ID together with the plaintext
// credential. The record is written before the usage counter so that a
// failure in between leaves a vault that reads as empty.
func (s *registryService) Provision(ctx context.Context, req models.ProvisionRequest) (models.ProvisionResult, error) {
	log := logger.FromContext(ctx)

	name := req.Name
	if name == "" {
		name = defaultVaultName
	}

	var credential string
	if req.APIKey != nil {
		if err := ValidateCredential(*req.APIKey); err != nil {
			return models.ProvisionResult{}, err
		}
		credential = *req.APIKey
	} else {
		generated, err := s.generateCredential()
		if err != nil {
			log.Err(err).Msg("credential generation failed")
			return models.ProvisionResult{}, err
		}
		credential = generated
	}

	vaultID, err := s.generateVaultID()
	if err != nil {
		log.Err(err).Msg("vault ID generation failed")
		return models.ProvisionResult{}, err
	}

	record := models.CredentialRecord{VaultID: vaultID, Name: name}
	if err = s.credentials.Save(ctx, crypto.HashCredential(credential), record); err != nil {
		log.Err(err).Str("vault_id", vaultID).Msg("saving credential record failed")
		return models.ProvisionResult{}, fmt.Errorf("provision vault: %w", err)
	}
	if err = s.usage.Set(ctx, vaultID, 0); err != nil {
		log.Err(err).Str("vault_id", vaultID).Msg("initialising usage failed")
		return models.ProvisionResult{}, fmt.Errorf("provision vault: %w", err)
	}

	metrics.IncProvisioned()
	log.Info().Str("vault_id", vaultID).Str("name", name).Msg("vault provisioned")

	return models.ProvisionResult{VaultID: vaultID, APIKey: credential}, nil
}

// Resolve maps a bearer credential to its vault. Unknown, malformed and
// incomplete records are all reported as INVALID_API_KEY.
func (s *registryService) Resolve(ctx context.Context, credential string) (models.VaultIdentity, error) {
	if credential == "" {
		return models.VaultIdentity{}, MissingCredentialError()
	}

	record, err := s.credentials.Find(ctx, crypto.HashCredential(credential))
	switch {
	case errors.Is(err, store.ErrCredentialNotFound), errors.Is(err, store.ErrMalformedCredentialRecord):
		return models.VaultIdentity{}, invalidCredential(err)
	case err != nil:
		logger.FromContext(ctx).Err(err).Msg("credential lookup failed")
		return models.VaultIdentity{}, fmt.Errorf("resolve credential: %w", err)
	case !record.Valid():
		return models.VaultIdentity{}, invalidCredential(store.ErrMalformedCredentialRecord)
	}

	return models.VaultIdentity{
		VaultID:    record.VaultID,
		Name:       record.Name,
		Credential: credential,
	}, nil
}

// ValidateCredential checks that credential is "ec-" followed by 64
// lowercase hex characters.
func ValidateCredential(credential string) error {
	if len(credential) != credentialLen || !strings.HasPrefix(credential, credentialPrefix) {
		return validationError(
			"API key must be 67 characters: 'ec-' followed by 64 hex characters",
			"Omit apiKey to have one generated",
		)
	}
	for _, c := range credential[len(credentialPrefix):] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return validationError(
				"API key hex portion must be lowercase hex (0-9, a-f)",
				"Omit apiKey to have one generated",
			)
		}
	}
	return nil
}

func (s *registryService) generateCredential() (string, error) {
	raw := make([]byte, credentialHexLen/2)
	if _, err := io.ReadFull(s.random, raw); err != nil {
		return "", fmt.Errorf("generate credential: %w", err)
	}
	return credentialPrefix + hex.EncodeToString(raw), nil
}

func (s *registryService) generateVaultID() (string, error) {
	raw := make([]byte, vaultIDSegments*vaultIDSegmentLen)
	if _, err := io.ReadFull(s.random, raw); err != nil {
		return "", fmt.Errorf("generate vault ID: %w", err)
	}

	var b strings.Builder
	b.WriteString(vaultIDPrefix)
	for i, v := range raw {
		if i > 0 && i%vaultIDSegmentLen == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(vaultIDAlphabet[int(v)%len(vaultIDAlphabet)])
	}
	return b.String(), nil
}
