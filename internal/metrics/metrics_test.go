package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue returns the value of the counter family name whose labels
// contain every pair of want.
func counterValue(t *testing.T, name string, want map[string]string) float64 {
	t.Helper()

	families, err := Registry.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m.GetLabel(), want) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(labels []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, l := range labels {
		if v, ok := want[l.GetName()]; ok && v == l.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}

func TestRecordVaultOperation(t *testing.T) {
	labels := map[string]string{"operation": "test_get", "outcome": "ok"}
	before := counterValue(t, "everclaw_vault_operations_total", labels)

	RecordVaultOperation("test_get", "", 0)
	RecordVaultOperation("test_get", "ok", time.Millisecond)

	assert.Equal(t, before+2, counterValue(t, "everclaw_vault_operations_total", labels))
}

func TestAddBytesWritten_IgnoresNonPositive(t *testing.T) {
	before := counterValue(t, "everclaw_vault_plaintext_bytes_written_total", nil)

	AddBytesWritten(0)
	AddBytesWritten(-5)
	AddBytesWritten(10)

	assert.Equal(t, before+10, counterValue(t, "everclaw_vault_plaintext_bytes_written_total", nil))
}

func TestInstrumentHandler_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Get("/v1/vault/*", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	labels := map[string]string{"method": "GET", "route": "/v1/vault/*", "status": "418"}
	before := counterValue(t, "everclaw_http_requests_total", labels)

	for _, p := range []string{"/v1/vault/a.txt", "/v1/vault/deep/b.txt"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, before+2, counterValue(t, "everclaw_http_requests_total", labels))
}

func TestHandler_ExposesRegistry(t *testing.T) {
	IncProvisioned()

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "everclaw_registry_vaults_provisioned_total")
}
