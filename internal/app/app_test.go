package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrilog/warroom/internal/broadcast"
	"github.com/agrilog/warroom/internal/config"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Store.Driver = "memory"
	cfg.Broadcast.Driver = "memory"
	cfg.Telemetry.Enabled = false
	cfg.Analytics.Enabled = false
	return cfg
}

func startTestApp(t *testing.T) (*App, *httptest.Server) {
	t.Helper()

	a, err := New(context.Background(), testConfig())
	require.NoError(t, err)

	srv := httptest.NewServer(a.Router())
	t.Cleanup(func() {
		srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, a.Shutdown(ctx))
	})
	return a, srv
}

func dialWarRoom(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/live/war-room"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func joinWarRoom(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "join", "room": "war-room"}))

	env := readFrame(t, conn)
	require.Equal(t, "joined", env.Event)

	var ack struct {
		Room string `json:"room"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &ack))
	require.Equal(t, "war-room", ack.Room)
}

func readFrame(t *testing.T, conn *websocket.Conn) broadcast.Envelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	env, err := broadcast.ParseEnvelope(payload)
	require.NoError(t, err)
	return env
}

func postIncident(t *testing.T, srv *httptest.Server, body string) string {
	t.Helper()

	resp, err := http.Post(srv.URL+"/api/incidents", "application/json", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		Incident struct {
			ID string `json:"id"`
		} `json:"incident"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	return created.Incident.ID
}

const testIncidentBody = `{
	"type": "truck_breakdown",
	"title": "Truck T-204 breakdown",
	"location": [-1.2921, 36.8219],
	"region": "nairobi",
	"severity": 80
}`

func TestIncidentReachesJoinedSession(t *testing.T) {
	_, srv := startTestApp(t)

	conn := dialWarRoom(t, srv)
	joinWarRoom(t, conn)

	id := postIncident(t, srv, testIncidentBody)

	env := readFrame(t, conn)
	assert.Equal(t, broadcast.EventIncidentNew, env.Event)

	var pushed struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &pushed))
	assert.Equal(t, id, pushed.ID)
	assert.Equal(t, "pending", pushed.Status)
}

func TestResolutionReachesJoinedSession(t *testing.T) {
	_, srv := startTestApp(t)

	conn := dialWarRoom(t, srv)
	joinWarRoom(t, conn)

	id := postIncident(t, srv, testIncidentBody)
	readFrame(t, conn) // incident:new

	req, err := http.NewRequest(http.MethodPatch, srv.URL+"/api/incidents/"+id+"/resolve", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env := readFrame(t, conn)
	assert.Equal(t, broadcast.EventIncidentUpdate, env.Event)

	var update struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &update))
	assert.Equal(t, id, update.ID)
	assert.Equal(t, "resolved", update.Status)

	// Resolving again succeeds but pushes no second update frame.
	req, err = http.NewRequest(http.MethodPatch, srv.URL+"/api/incidents/"+id+"/resolve", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, readErr := conn.ReadMessage()
	assert.Error(t, readErr, "expected read timeout, got a frame")

	// The query path agrees with the push: nothing active remains.
	listResp, err := http.Get(srv.URL + "/api/incidents")
	require.NoError(t, err)
	defer listResp.Body.Close()

	var list struct {
		Incidents []json.RawMessage `json:"incidents"`
	}
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&list))
	assert.Empty(t, list.Incidents)
}

func TestUnjoinedSessionReceivesNothing(t *testing.T) {
	_, srv := startTestApp(t)

	conn := dialWarRoom(t, srv)
	// Connected but never joined a room.

	postIncident(t, srv, testIncidentBody)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "expected read timeout, got a frame")
}

func TestHealthEndpoint(t *testing.T) {
	_, srv := startTestApp(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.Checks["store"])
	assert.Equal(t, "ok", health.Checks["broker"])
}

func TestVersionEndpoint(t *testing.T) {
	_, srv := startTestApp(t)

	resp, err := http.Get(srv.URL + "/version")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
