package http

import (
	"net/http"

	"github.com/tlxue/everclaw/internal/app"
)

type healthResponse struct {
	OK bool `json:"ok"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, healthResponse{OK: true}, http.StatusOK)
}

func (h *Handler) getServerVersion(w http.ResponseWriter, r *http.Request) {
	serverVersion := h.services.AppInfoService.GetAppVersion(r.Context())

	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(serverVersion))
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, errorResponse{Error: app.MsgNotFound}, http.StatusNotFound)
}
