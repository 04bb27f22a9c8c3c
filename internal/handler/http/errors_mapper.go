package http

import (
	"errors"
	"net/http"

	"github.com/tlxue/everclaw/internal/app"
	"github.com/tlxue/everclaw/internal/logger"
	"github.com/tlxue/everclaw/internal/service"
	"github.com/tlxue/everclaw/internal/utils"
)

var errorStatusMap = map[error]int{
	service.ErrInvalidAPIKey:      http.StatusUnauthorized,
	service.ErrValidation:         http.StatusBadRequest,
	service.ErrQuotaExceeded:      http.StatusRequestEntityTooLarge,
	service.ErrRateLimited:        http.StatusTooManyRequests,
	service.ErrFileNotFound:       http.StatusNotFound,
	service.ErrDecryptFailed:      http.StatusInternalServerError,
	service.ErrBatchLimitExceeded: http.StatusBadRequest,
}

// errorResponse is the failure envelope shared by every route.
type errorResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Action string `json:"action,omitempty"`
}

func statusFromError(err error) int {
	// a batch rejected for its size rather than its file count
	if errors.Is(err, service.ErrBatchPayloadTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	for target, status := range errorStatusMap {
		if errors.Is(err, target) {
			return status
		}
	}
	return http.StatusInternalServerError
}

// writeError renders err as the failure envelope. Errors that are not a
// [service.VaultError] are logged and hidden behind a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromRequest(r)

	var vaultErr *service.VaultError
	if !errors.As(err, &vaultErr) {
		log.Err(err).Str("func", "writeError").Msg("unhandled error")
		writeJSON(w, r, errorResponse{Error: app.MsgInternalServerError}, http.StatusInternalServerError)
		return
	}

	status := statusFromError(err)
	if status >= http.StatusInternalServerError {
		log.Err(err).Str("func", "writeError").Str("code", string(vaultErr.Kind)).Send()
	} else {
		log.Debug().Err(err).Str("func", "writeError").Str("code", string(vaultErr.Kind)).Send()
	}

	writeJSON(w, r, errorResponse{
		Error:  vaultErr.Message,
		Code:   string(vaultErr.Kind),
		Action: vaultErr.Hint,
	}, status)
}

func writeJSON(w http.ResponseWriter, r *http.Request, data any, status int) {
	if _, err := utils.WriteJSON(w, data, status); err != nil {
		logger.FromRequest(r).Err(err).Str("func", "writeJSON").Msg("error writing response")
	}
}
