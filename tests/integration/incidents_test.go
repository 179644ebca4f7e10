//go:build integration

package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrilog/warroom/internal/testutil"
)

type incidentPayload struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Title    string    `json:"title"`
	Location []float64 `json:"location"`
	Region   string    `json:"region"`
	Severity int       `json:"severity"`
	Status   string    `json:"status"`
}

type createResponse struct {
	Incident incidentPayload `json:"incident"`
}

type listResponse struct {
	Incidents []incidentPayload `json:"incidents"`
}

func createIncident(t *testing.T, severity int, title string) incidentPayload {
	t.Helper()

	resp := testClient.Post(t, "/api/incidents", map[string]any{
		"type":     "truck_breakdown",
		"title":    title,
		"location": []float64{-1.2921, 36.8219},
		"region":   "nairobi",
		"severity": severity,
	})
	testutil.RequireStatus(t, resp, http.StatusCreated)

	var created createResponse
	testutil.DecodeBody(t, resp, &created)
	return created.Incident
}

func TestCreateIncidentPersists(t *testing.T) {
	truncateIncidents(t)

	inc := createIncident(t, 80, "Truck T-204 breakdown")
	assert.Regexp(t, `^INC-[0-9A-F]{12}$`, inc.ID)
	assert.Equal(t, "pending", inc.Status)
	assert.Equal(t, 80, inc.Severity)
	assert.Equal(t, []float64{-1.2921, 36.8219}, inc.Location)

	var status string
	err := testDB.QueryRow(context.Background(),
		"SELECT status FROM incidents WHERE id = $1", inc.ID).Scan(&status)
	require.NoError(t, err)
	assert.Equal(t, "pending", status)
}

func TestCreateIncidentValidation(t *testing.T) {
	truncateIncidents(t)

	resp := testClient.Post(t, "/api/incidents", map[string]any{
		"type":   "truck_breakdown",
		"region": "nairobi",
	})
	defer testutil.Drain(resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListActiveOrdering(t *testing.T) {
	truncateIncidents(t)

	createIncident(t, 10, "low")
	createIncident(t, 90, "high")
	createIncident(t, 50, "mid")

	resp := testClient.Get(t, "/api/incidents")
	testutil.RequireStatus(t, resp, http.StatusOK)

	var list listResponse
	testutil.DecodeBody(t, resp, &list)
	require.Len(t, list.Incidents, 3)
	assert.Equal(t, "high", list.Incidents[0].Title)
	assert.Equal(t, "mid", list.Incidents[1].Title)
	assert.Equal(t, "low", list.Incidents[2].Title)
}

func TestListActiveSeverityTieNewestFirst(t *testing.T) {
	truncateIncidents(t)

	createIncident(t, 50, "older")
	time.Sleep(5 * time.Millisecond)
	createIncident(t, 50, "newer")

	resp := testClient.Get(t, "/api/incidents")
	testutil.RequireStatus(t, resp, http.StatusOK)

	var list listResponse
	testutil.DecodeBody(t, resp, &list)
	require.Len(t, list.Incidents, 2)
	assert.Equal(t, "newer", list.Incidents[0].Title)
	assert.Equal(t, "older", list.Incidents[1].Title)
}

func TestResolveIncident(t *testing.T) {
	truncateIncidents(t)

	inc := createIncident(t, 70, "resolvable")

	resp := testClient.Patch(t, "/api/incidents/"+inc.ID+"/resolve", nil)
	testutil.RequireStatus(t, resp, http.StatusOK)

	var resolved struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	testutil.DecodeBody(t, resp, &resolved)
	assert.Equal(t, inc.ID, resolved.ID)
	assert.Equal(t, "resolved", resolved.Status)

	// Resolving again succeeds without changing anything.
	resp = testClient.Patch(t, "/api/incidents/"+inc.ID+"/resolve", nil)
	testutil.RequireStatus(t, resp, http.StatusOK)
	testutil.Drain(resp)

	listResp := testClient.Get(t, "/api/incidents")
	testutil.RequireStatus(t, listResp, http.StatusOK)

	var list listResponse
	testutil.DecodeBody(t, listResp, &list)
	assert.Empty(t, list.Incidents)
}

func TestResolveUnknownIncident(t *testing.T) {
	resp := testClient.Patch(t, "/api/incidents/INC-000000000000/resolve", nil)
	defer testutil.Drain(resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	resp := testClient.Get(t, "/health")
	testutil.RequireStatus(t, resp, http.StatusOK)

	var health struct {
		Status string `json:"status"`
	}
	testutil.DecodeBody(t, resp, &health)
	assert.Equal(t, "ok", health.Status)
}
