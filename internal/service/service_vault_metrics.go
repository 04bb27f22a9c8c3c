package service

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/tlxue/everclaw/internal/metrics"
	"github.com/tlxue/everclaw/models"
)

// VaultMetricsService records the duration and outcome of every vault
// operation in the Prometheus registry.
type VaultMetricsService struct {
	inner VaultService
}

func NewVaultMetricsService() VaultServiceWrapper {
	return &VaultMetricsService{}
}

func (m *VaultMetricsService) Wrap(inner VaultService) VaultService {
	m.inner = inner
	return m
}

func (m *VaultMetricsService) Get(ctx context.Context, vault models.VaultIdentity, path string) (models.File, error) {
	start := time.Now()
	file, err := m.inner.Get(ctx, vault, path)
	m.observe("get", start, err)
	return file, err
}

func (m *VaultMetricsService) Put(ctx context.Context, vault models.VaultIdentity, path string, body io.Reader, declaredLength int64, contentType string) (models.WriteResult, error) {
	start := time.Now()
	res, err := m.inner.Put(ctx, vault, path, body, declaredLength, contentType)
	m.observe("put", start, err)
	if err == nil {
		metrics.AddBytesWritten(res.Size)
	}
	return res, err
}

func (m *VaultMetricsService) Append(ctx context.Context, vault models.VaultIdentity, path string, body io.Reader, contentType string) (models.WriteResult, error) {
	start := time.Now()
	res, err := m.inner.Append(ctx, vault, path, body, contentType)
	m.observe("append", start, err)
	return res, err
}

func (m *VaultMetricsService) Delete(ctx context.Context, vault models.VaultIdentity, path string) (models.DeleteResult, error) {
	start := time.Now()
	res, err := m.inner.Delete(ctx, vault, path)
	m.observe("delete", start, err)
	return res, err
}

func (m *VaultMetricsService) BatchPut(ctx context.Context, vault models.VaultIdentity, req models.BatchRequest) (models.BatchResult, error) {
	start := time.Now()
	res, err := m.inner.BatchPut(ctx, vault, req)
	m.observe("batch", start, err)
	for _, r := range res.Results {
		if r.OK && r.Size != nil {
			metrics.AddBytesWritten(*r.Size)
		}
	}
	return res, err
}

func (m *VaultMetricsService) List(ctx context.Context, vault models.VaultIdentity, cursor string, limit int) (models.ListPage, error) {
	start := time.Now()
	res, err := m.inner.List(ctx, vault, cursor, limit)
	m.observe("list", start, err)
	return res, err
}

func (m *VaultMetricsService) Status(ctx context.Context, vault models.VaultIdentity) (models.VaultStatus, error) {
	start := time.Now()
	res, err := m.inner.Status(ctx, vault)
	m.observe("status", start, err)
	return res, err
}

func (m *VaultMetricsService) Purge(ctx context.Context, vault models.VaultIdentity) (models.PurgeResult, error) {
	start := time.Now()
	res, err := m.inner.Purge(ctx, vault)
	m.observe("purge", start, err)
	return res, err
}

func (m *VaultMetricsService) observe(operation string, start time.Time, err error) {
	metrics.RecordVaultOperation(operation, outcomeOf(err), time.Since(start))
}

// outcomeOf maps err to a bounded label value.
func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	var ve *VaultError
	if errors.As(err, &ve) {
		return string(ve.Kind)
	}
	return "internal"
}
