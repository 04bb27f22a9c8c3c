package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tlxue/everclaw/internal/logger"
	"github.com/tlxue/everclaw/internal/service"
	"github.com/tlxue/everclaw/internal/utils"
	"github.com/tlxue/everclaw/models"
)

// maxBatchBodyBytes caps the decoded batch request body. JSON escaping can
// roughly double the content, and the rest covers paths and framing.
const maxBatchBodyBytes = 2*service.MaxBatchBytes + 1<<20

type listResponse struct {
	OK bool `json:"ok"`
	models.ListPage
}

type statusResponse struct {
	OK bool `json:"ok"`
	models.VaultStatus
}

type writeResponse struct {
	OK bool `json:"ok"`
	models.WriteResult
}

type deleteResponse struct {
	OK bool `json:"ok"`
	models.DeleteResult
}

type purgeResponse struct {
	OK bool `json:"ok"`
	models.PurgeResult
}

// vaultFromRequest returns the identity stored by the auth middleware.
func vaultFromRequest(w http.ResponseWriter, r *http.Request) (models.VaultIdentity, bool) {
	vault, ok := utils.GetVaultFromContext(r.Context())
	if !ok {
		writeError(w, r, errNoVaultInContext)
	}
	return vault, ok
}

// objectPath returns the object path matched by the route wildcard,
// percent-decoded when the request escaped it.
func objectPath(r *http.Request) string {
	path := chi.URLParam(r, "*")
	if r.URL.RawPath == "" {
		return path
	}
	if decoded, err := url.PathUnescape(path); err == nil {
		return decoded
	}
	return path
}

// parseLimit mirrors the listing contract: an absent or unparseable value
// selects the default page size.
func parseLimit(raw string) int {
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return limit
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	vault, ok := vaultFromRequest(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	page, err := h.services.VaultService.List(r.Context(), vault, query.Get("cursor"), parseLimit(query.Get("limit")))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, listResponse{OK: true, ListPage: page}, http.StatusOK)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	vault, ok := vaultFromRequest(w, r)
	if !ok {
		return
	}

	status, err := h.services.VaultService.Status(r.Context(), vault)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, statusResponse{OK: true, VaultStatus: status}, http.StatusOK)
}

func (h *Handler) purge(w http.ResponseWriter, r *http.Request) {
	vault, ok := vaultFromRequest(w, r)
	if !ok {
		return
	}

	result, err := h.services.VaultService.Purge(r.Context(), vault)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.FromRequest(r).Info().Int("deleted", result.Deleted).Msg("vault purged")
	writeJSON(w, r, purgeResponse{OK: true, PurgeResult: result}, http.StatusOK)
}

// batch stores several files at once. It answers 201 when at least one file
// was stored and 400 otherwise; per-file outcomes are in the body either way.
func (h *Handler) batch(w http.ResponseWriter, r *http.Request) {
	vault, ok := vaultFromRequest(w, r)
	if !ok {
		return
	}

	var req models.BatchRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBatchBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, service.BatchTooLargeError())
			return
		}
		logger.FromRequest(r).Debug().Err(err).Str("func", "*Handler.batch").Msg("unreadable batch body")
		req = models.BatchRequest{}
	}

	result, err := h.services.VaultService.BatchPut(r.Context(), vault, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Uploaded == 0 {
		status = http.StatusBadRequest
	}
	writeJSON(w, r, result, status)
}

func (h *Handler) getFile(w http.ResponseWriter, r *http.Request) {
	vault, ok := vaultFromRequest(w, r)
	if !ok {
		return
	}

	file, err := h.services.VaultService.Get(r.Context(), vault, objectPath(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err = w.Write(file.Content); err != nil {
		logger.FromRequest(r).Err(err).Str("func", "*Handler.getFile").Msg("error writing file")
	}
}

func (h *Handler) putFile(w http.ResponseWriter, r *http.Request) {
	vault, ok := vaultFromRequest(w, r)
	if !ok {
		return
	}

	result, err := h.services.VaultService.Put(r.Context(), vault, objectPath(r), r.Body, r.ContentLength, r.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, writeResponse{OK: true, WriteResult: result}, http.StatusCreated)
}

func (h *Handler) appendFile(w http.ResponseWriter, r *http.Request) {
	vault, ok := vaultFromRequest(w, r)
	if !ok {
		return
	}

	result, err := h.services.VaultService.Append(r.Context(), vault, objectPath(r), r.Body, r.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, writeResponse{OK: true, WriteResult: result}, http.StatusCreated)
}

func (h *Handler) deleteFile(w http.ResponseWriter, r *http.Request) {
	vault, ok := vaultFromRequest(w, r)
	if !ok {
		return
	}

	result, err := h.services.VaultService.Delete(r.Context(), vault, objectPath(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, deleteResponse{OK: true, DeleteResult: result}, http.StatusOK)
}
