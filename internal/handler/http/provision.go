package http

import (
	"encoding/json"
	"net/http"

	"github.com/tlxue/everclaw/internal/logger"
	"github.com/tlxue/everclaw/models"
)

type provisionResponse struct {
	OK bool `json:"ok"`
	models.ProvisionResult
}

// provision creates a vault. An unreadable body is treated as an empty
// request, so the caller gets a generated credential and the default name.
func (h *Handler) provision(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	var req models.ProvisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Debug().Err(err).Str("func", "*Handler.provision").Msg("ignoring unreadable provision body")
		req = models.ProvisionRequest{}
	}

	result, err := h.services.RegistryService.Provision(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.Info().Str("vault_id", result.VaultID).Msg("vault provisioned")
	writeJSON(w, r, provisionResponse{OK: true, ProvisionResult: result}, http.StatusCreated)
}
