package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/tlxue/everclaw/internal/config"
	"github.com/tlxue/everclaw/internal/logger"
	"github.com/tlxue/everclaw/internal/utils"
	"github.com/tlxue/everclaw/models"
)

const vaultPath = "/v1/vault"

type httpVaultClient struct {
	client *utils.HTTPClient
	apiKey string
}

// NewHTTPVaultClient constructs the resty implementation of [VaultClient].
// It normalises and validates cfg.URL and binds the client to cfg.Timeout.
//
// Returns an error if cfg.URL is empty or cannot be parsed as a valid URL.
func NewHTTPVaultClient(cfg config.ClientConfig, logger *logger.Logger) (VaultClient, error) {
	baseURL, err := normalizeBaseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}

	client := utils.NewHTTPClient(baseURL, cfg.Timeout)
	client.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		logger.Debug().
			Str("method", resp.Request.Method).
			Str("url", resp.Request.URL).
			Int("status", resp.StatusCode()).
			Dur("duration", resp.Time()).
			Msg("request finished")
		return nil
	})

	return &httpVaultClient{
		client: client,
		apiKey: strings.TrimSpace(cfg.APIKey),
	}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// escapeObjectPath escapes each segment of a vault path and keeps the
// separators, so "notes/a b.md" becomes "notes/a%20b.md".
func escapeObjectPath(path string) string {
	segments := strings.Split(strings.TrimLeft(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

func objectURL(path string) string {
	return vaultPath + "/" + escapeObjectPath(path)
}

// Health implements [VaultClient].
func (h *httpVaultClient) Health(ctx context.Context) error {
	resp, err := h.client.R().SetContext(ctx).Get("/health")
	if err != nil {
		return fmt.Errorf("health request: %w", err)
	}

	return mapHTTPError(resp)
}

// Provision implements [VaultClient]. It POSTs req to /v1/provision without
// an Authorization header.
func (h *httpVaultClient) Provision(ctx context.Context, req models.ProvisionRequest) (models.ProvisionResult, error) {
	var result models.ProvisionResult

	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post("/v1/provision")
	if err != nil {
		return result, fmt.Errorf("provision request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return result, err
	}

	if err = json.Unmarshal(resp.Body(), &result); err != nil {
		return result, fmt.Errorf("decode provision response: %w", err)
	}
	return result, nil
}

// Get implements [VaultClient]. The body is returned as-is together with the
// Content-Type the server recorded for the file.
func (h *httpVaultClient) Get(ctx context.Context, path string) (models.File, error) {
	req, err := h.authedRequest(ctx)
	if err != nil {
		return models.File{}, err
	}

	resp, err := req.Get(objectURL(path))
	if err != nil {
		return models.File{}, fmt.Errorf("get request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.File{}, err
	}

	return models.File{
		Path:        path,
		Content:     resp.Body(),
		ContentType: resp.Header().Get("Content-Type"),
	}, nil
}

// Put implements [VaultClient].
func (h *httpVaultClient) Put(ctx context.Context, path string, content []byte, contentType string) (models.WriteResult, error) {
	return h.write(ctx, http.MethodPut, path, content, contentType)
}

// Append implements [VaultClient].
func (h *httpVaultClient) Append(ctx context.Context, path string, content []byte, contentType string) (models.WriteResult, error) {
	return h.write(ctx, http.MethodPost, path, content, contentType)
}

func (h *httpVaultClient) write(ctx context.Context, method, path string, content []byte, contentType string) (models.WriteResult, error) {
	var result models.WriteResult

	req, err := h.authedRequest(ctx)
	if err != nil {
		return result, err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	resp, err := req.
		SetHeader("Content-Type", contentType).
		SetBody(content).
		Execute(method, objectURL(path))
	if err != nil {
		return result, fmt.Errorf("%s request: %w", strings.ToLower(method), err)
	}
	if err = mapHTTPError(resp); err != nil {
		return result, err
	}

	if err = json.Unmarshal(resp.Body(), &result); err != nil {
		return result, fmt.Errorf("decode write response: %w", err)
	}
	return result, nil
}

// Delete implements [VaultClient].
func (h *httpVaultClient) Delete(ctx context.Context, path string) (models.DeleteResult, error) {
	var result models.DeleteResult

	req, err := h.authedRequest(ctx)
	if err != nil {
		return result, err
	}

	resp, err := req.Delete(objectURL(path))
	if err != nil {
		return result, fmt.Errorf("delete request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return result, err
	}

	if err = json.Unmarshal(resp.Body(), &result); err != nil {
		return result, fmt.Errorf("decode delete response: %w", err)
	}
	return result, nil
}

// List implements [VaultClient].
func (h *httpVaultClient) List(ctx context.Context, cursor string, limit int) (models.ListPage, error) {
	var page models.ListPage

	req, err := h.authedRequest(ctx)
	if err != nil {
		return page, err
	}
	if cursor != "" {
		req.SetQueryParam("cursor", cursor)
	}
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}

	resp, err := req.Get(vaultPath + "/")
	if err != nil {
		return page, fmt.Errorf("list request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return page, err
	}

	if err = json.Unmarshal(resp.Body(), &page); err != nil {
		return page, fmt.Errorf("decode list response: %w", err)
	}
	return page, nil
}

// Status implements [VaultClient].
func (h *httpVaultClient) Status(ctx context.Context) (models.VaultStatus, error) {
	var status models.VaultStatus

	req, err := h.authedRequest(ctx)
	if err != nil {
		return status, err
	}

	resp, err := req.Get(vaultPath + "/status")
	if err != nil {
		return status, fmt.Errorf("status request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return status, err
	}

	if err = json.Unmarshal(resp.Body(), &status); err != nil {
		return status, fmt.Errorf("decode status response: %w", err)
	}
	return status, nil
}

// Purge implements [VaultClient].
func (h *httpVaultClient) Purge(ctx context.Context) (models.PurgeResult, error) {
	var result models.PurgeResult

	req, err := h.authedRequest(ctx)
	if err != nil {
		return result, err
	}

	resp, err := req.Delete(vaultPath + "/")
	if err != nil {
		return result, fmt.Errorf("purge request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return result, err
	}

	if err = json.Unmarshal(resp.Body(), &result); err != nil {
		return result, fmt.Errorf("decode purge response: %w", err)
	}
	return result, nil
}

// Batch implements [VaultClient]. The server answers 400 with a full result
// body when no file was stored; that body is returned without an error.
func (h *httpVaultClient) Batch(ctx context.Context, batch models.BatchRequest) (models.BatchResult, error) {
	var result models.BatchResult

	req, err := h.authedRequest(ctx)
	if err != nil {
		return result, err
	}

	resp, err := req.
		SetHeader("Content-Type", "application/json").
		SetBody(batch).
		Post(vaultPath + "/")
	if err != nil {
		return result, fmt.Errorf("batch request: %w", err)
	}

	if resp.StatusCode() == http.StatusBadRequest {
		if json.Unmarshal(resp.Body(), &result) == nil && result.Results != nil {
			return result, nil
		}
	}
	if err = mapHTTPError(resp); err != nil {
		return models.BatchResult{}, err
	}

	if err = json.Unmarshal(resp.Body(), &result); err != nil {
		return result, fmt.Errorf("decode batch response: %w", err)
	}
	return result, nil
}

func (h *httpVaultClient) authedRequest(ctx context.Context) (*resty.Request, error) {
	if h.apiKey == "" {
		return nil, ErrEmptyAPIKey
	}
	return h.client.R().
		SetContext(ctx).
		SetAuthToken(h.apiKey), nil
}
