package incident

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (chi.Router, *spyBroker) {
	t.Helper()

	svc, broker, _ := newTestService()
	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r, func(next http.Handler) http.Handler { return next })
	return r, broker
}

func doRequest(t *testing.T, r chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

const validCreateBody = `{
	"type": "cold_chain_alert",
	"title": "Reefer temp excursion",
	"description": "Unit RT-9 above threshold",
	"location": [-1.2921, 36.8219],
	"region": "nairobi",
	"severity": 80,
	"metadata": {"truckId": "T-204"}
}`

func TestHandlerCreateIncident(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doRequest(t, r, http.MethodPost, "/incidents", validCreateBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Incident struct {
			ID       string    `json:"id"`
			Status   string    `json:"status"`
			Severity int       `json:"severity"`
			Location []float64 `json:"location"`
		} `json:"incident"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Regexp(t, `^INC-[0-9A-F]{12}$`, resp.Incident.ID)
	assert.Equal(t, "pending", resp.Incident.Status)
	assert.Equal(t, 80, resp.Incident.Severity)
	assert.Equal(t, []float64{-1.2921, 36.8219}, resp.Incident.Location)
}

func TestHandlerCreateIncidentDefaultsSeverity(t *testing.T) {
	r, _ := newTestRouter(t)

	body := `{"type":"port_delay","title":"Berth congestion","location":[6.45,3.37],"region":"lagos"}`
	rec := doRequest(t, r, http.MethodPost, "/incidents", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Incident struct {
			Severity int `json:"severity"`
		} `json:"incident"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 50, resp.Incident.Severity)
}

func TestHandlerCreateIncidentBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing title", `{"type":"x","location":[0,0],"region":"r"}`},
		{"missing location", `{"type":"x","title":"t","region":"r"}`},
		{"short location", `{"type":"x","title":"t","location":[1],"region":"r"}`},
		{"severity out of range", `{"type":"x","title":"t","location":[0,0],"region":"r","severity":101}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, broker := newTestRouter(t)

			rec := doRequest(t, r, http.MethodPost, "/incidents", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, broker.messages())
		})
	}
}

func TestHandlerResolveIncident(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doRequest(t, r, http.MethodPost, "/incidents", validCreateBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Incident struct {
			ID string `json:"id"`
		} `json:"incident"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doRequest(t, r, http.MethodPatch, "/incidents/"+created.Incident.ID+"/resolve", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resolved struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resolved))
	assert.Equal(t, created.Incident.ID, resolved.ID)
	assert.Equal(t, "resolved", resolved.Status)
}

func TestHandlerResolveUnknownIncident(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doRequest(t, r, http.MethodPatch, "/incidents/INC-000000000000/resolve", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerListIncidents(t *testing.T) {
	r, _ := newTestRouter(t)

	low := `{"type":"port_delay","title":"low","location":[0,0],"region":"r","severity":10}`
	high := `{"type":"port_delay","title":"high","location":[0,0],"region":"r","severity":90}`
	require.Equal(t, http.StatusCreated, doRequest(t, r, http.MethodPost, "/incidents", low).Code)
	require.Equal(t, http.StatusCreated, doRequest(t, r, http.MethodPost, "/incidents", high).Code)

	rec := doRequest(t, r, http.MethodGet, "/incidents", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Incidents []struct {
			Title    string `json:"title"`
			Severity int    `json:"severity"`
		} `json:"incidents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Incidents, 2)
	assert.Equal(t, "high", resp.Incidents[0].Title)
	assert.Equal(t, "low", resp.Incidents[1].Title)
}

func TestHandlerListIncidentsEmpty(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doRequest(t, r, http.MethodGet, "/incidents", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.JSONEq(t, `[]`, string(resp["incidents"]))
}
