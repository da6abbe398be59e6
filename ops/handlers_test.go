package ops

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oddbit-project/roadwatch/audit"
	"github.com/oddbit-project/roadwatch/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuditReader struct {
	events []audit.Event
	err    error
}

func (f fakeAuditReader) Recent(clientID string, limit int) ([]audit.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

func newTestAPI(t *testing.T, trail AuditReader) (*Server, *session.Store) {
	sessions, err := session.NewStore(nil, nil)
	require.NoError(t, err)
	t.Cleanup(sessions.Close)

	server, err := NewServer(NewServerConfig(), nil)
	require.NoError(t, err)
	server.RegisterRoutes(sessions, trail)
	return server, sessions
}

func doGet(server *Server, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	server.Router.ServeHTTP(w, req)
	return w
}

func TestAPI_Healthz(t *testing.T) {
	server, _ := newTestAPI(t, nil)

	w := doGet(server, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAPI_Sessions(t *testing.T) {
	server, sessions := newTestAPI(t, nil)

	sessions.PutToken("sensor-1", "token-a")
	require.NoError(t, sessions.UpdateState("sensor-1", func(st *session.TrafficState) {
		st.SignalState = session.SignalRed
		st.CongestionLevel = 0.85
	}))

	w := doGet(server, "/v1/sessions")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Sessions []session.SessionInfo `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Sessions, 1)
	assert.Equal(t, "sensor-1", body.Sessions[0].ClientID)
	assert.Equal(t, session.SignalRed, body.Sessions[0].State.SignalState)
}

func TestAPI_SessionByClientID(t *testing.T) {
	server, sessions := newTestAPI(t, nil)
	sessions.PutToken("sensor-1", "token-a")

	w := doGet(server, "/v1/sessions/sensor-1")
	require.Equal(t, http.StatusOK, w.Code)

	var info session.SessionInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "sensor-1", info.ClientID)
	assert.False(t, info.HasState)

	// the token itself is never exposed
	assert.NotContains(t, w.Body.String(), "token-a")

	w = doGet(server, "/v1/sessions/unknown")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_Audit(t *testing.T) {
	trail := fakeAuditReader{
		events: []audit.Event{
			{
				ID:         "id-1",
				Type:       audit.EventAuthSuccess,
				ClientID:   "sensor-1",
				RemoteAddr: "10.0.0.1:1234",
				Detail:     "token issued",
				CreatedAt:  time.Now().UTC(),
			},
		},
	}
	server, _ := newTestAPI(t, trail)

	w := doGet(server, "/v1/audit/sensor-1?limit=10")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Events []audit.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Events, 1)
	assert.Equal(t, audit.EventAuthSuccess, body.Events[0].Type)
}

func TestAPI_AuditDisabled(t *testing.T) {
	server, _ := newTestAPI(t, nil)

	w := doGet(server, "/v1/audit/sensor-1")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
