package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tlxue/everclaw/internal/logger"
	"github.com/tlxue/everclaw/models"
)

const credentialKeyPrefix = "key:"

type credentialRepository struct {
	kv     KeyValueStore
	logger *logger.Logger
}

// NewCredentialRepository stores credential records as JSON under
// "key:{hash}".
func NewCredentialRepository(kv KeyValueStore, log *logger.Logger) CredentialRepository {
	return &credentialRepository{kv: kv, logger: log}
}

func (r *credentialRepository) Save(ctx context.Context, credentialHash string, record models.CredentialRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode credential record: %w", err)
	}

	if err = r.kv.Put(ctx, credentialKeyPrefix+credentialHash, string(data), 0); err != nil {
		r.logger.Err(err).Str("vault_id", record.VaultID).Msg("error saving credential record")
		return fmt.Errorf("save credential record: %w", err)
	}
	return nil
}

func (r *credentialRepository) Find(ctx context.Context, credentialHash string) (models.CredentialRecord, error) {
	raw, err := r.kv.Get(ctx, credentialKeyPrefix+credentialHash)
	if errors.Is(err, ErrKeyNotFound) {
		return models.CredentialRecord{}, ErrCredentialNotFound
	}
	if err != nil {
		return models.CredentialRecord{}, fmt.Errorf("find credential record: %w", err)
	}

	var record models.CredentialRecord
	if err = json.Unmarshal([]byte(raw), &record); err != nil {
		r.logger.Warn().Err(err).Msg("credential record is not valid JSON")
		return models.CredentialRecord{}, ErrMalformedCredentialRecord
	}
	if !record.Valid() {
		r.logger.Warn().Msg("credential record lacks required fields")
		return models.CredentialRecord{}, ErrMalformedCredentialRecord
	}
	return record, nil
}
