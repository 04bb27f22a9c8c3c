package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tlxue/everclaw/models"
)

type testEnvelope struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
	Action string `json:"action,omitempty"`
}

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name     string
		data     any
		status   int
		wantBody string
	}{
		{
			name:     "health",
			data:     testEnvelope{OK: true},
			status:   http.StatusOK,
			wantBody: `{"ok":true}`,
		},
		{
			name:     "write result",
			data:     models.WriteResult{Path: "MEMORY.md", Size: 5, Usage: 33, Quota: 1024},
			status:   http.StatusCreated,
			wantBody: `{"path":"MEMORY.md","size":5,"usage":33,"quota":1024}`,
		},
		{
			name:     "quota error envelope",
			data:     testEnvelope{Error: "Vault storage quota exceeded", Code: "QUOTA_EXCEEDED"},
			status:   http.StatusRequestEntityTooLarge,
			wantBody: `{"ok":false,"error":"Vault storage quota exceeded","code":"QUOTA_EXCEEDED"}`,
		},
		{
			name:     "nil",
			data:     nil,
			status:   http.StatusOK,
			wantBody: `null`,
		},
		{
			name:     "empty objects list",
			data:     []models.ObjectInfo{},
			status:   http.StatusOK,
			wantBody: `[]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			n, err := WriteJSON(w, tt.data, tt.status)

			require.NoError(t, err)
			assert.Equal(t, len(tt.wantBody), n)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestWriteJSON_InvalidData(t *testing.T) {
	w := httptest.NewRecorder()

	// channels cannot be marshaled to JSON
	_, err := WriteJSON(w, make(chan int), http.StatusOK)

	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEqual(t, "application/json", w.Header().Get("Content-Type"))
}
