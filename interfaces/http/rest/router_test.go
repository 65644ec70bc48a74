package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BenjaminAGH/NocturneScope/application/dashboard"
	"github.com/BenjaminAGH/NocturneScope/application/editor"
	"github.com/BenjaminAGH/NocturneScope/infrastructure/config"
	"github.com/BenjaminAGH/NocturneScope/infrastructure/upstream"
	"github.com/BenjaminAGH/NocturneScope/pkg/auth"
)

// fakeUpstream is an httptest stand-in for the NocturneScope API.
func fakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()

	accessToken := func() string {
		claims := jwt.MapClaims{
			"sub":      "u-1",
			"email":    "alice@example.com",
			"username": "alice",
			"role":     "user",
			"exp":      time.Now().Add(time.Hour).Unix(),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("upstream-secret"))
		require.NoError(t, err)
		return token
	}()

	topologyCount := 0
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["email"] != "alice@example.com" || req["password"] != "correct" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"invalid credentials"}`))
			return
		}
		fmt.Fprintf(w, `{"access_token":%q,"refresh_token":"ref-1"}`, accessToken)
	})
	mux.HandleFunc("GET /metrics/devices", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["server-01"]`))
	})
	mux.HandleFunc("GET /metrics/last", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"device":%q,"cpu":15,"timestamp":%q}`,
			r.URL.Query().Get("device"), time.Now().UTC().Format(time.RFC3339))
	})
	mux.HandleFunc("GET /metrics/timeseries", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"points":[{"t":"2026-08-29T12:00:00Z","v":15}]}`))
	})
	mux.HandleFunc("GET /metrics/history", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"time":"2026-08-29T12:00:00Z","cpu":15,"ram":40}]`))
	})
	mux.HandleFunc("GET /alerts/recent", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"recent_alerts":[]}`))
	})
	mux.HandleFunc("POST /topologies", func(w http.ResponseWriter, r *http.Request) {
		topologyCount++
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		fmt.Fprintf(w, `{"ID":"t-%d","UserID":"u-1","Name":%q,"Data":%q}`,
			topologyCount, req["name"], req["data"])
	})
	mux.HandleFunc("POST /api-tokens", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"token":"secret-once"}`))
	})
	mux.HandleFunc("GET /api-tokens", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"ID":1,"Name":"rack-a","CreatedAt":"2026-08-29T12:00:00Z"}]`))
	})
	mux.HandleFunc("POST /email/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	upstreamServer := fakeUpstream(t)

	cfg := config.Default()
	cfg.Upstream.BaseURL = upstreamServer.URL
	// Background tickers stay out of the way; tests drive everything.
	cfg.Editor.DevicePollInterval = time.Hour
	cfg.Editor.AlertPollInterval = time.Hour
	cfg.Editor.AutosaveDelay = time.Hour

	logger := zap.NewNop()
	client := upstream.NewClient(cfg.Upstream, logger, nil)
	sessions := auth.NewMemorySessionStore()
	t.Cleanup(sessions.Close)
	manager := editor.NewManager(client, cfg.Editor, logger, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		manager.Shutdown(ctx)
	})

	return NewRouter(cfg, client, sessions, manager, dashboard.NewService(client, logger), logger).Setup()
}

func login(t *testing.T, handler http.Handler) []*http.Cookie {
	t.Helper()
	body := bytes.NewBufferString(`{"email":"alice@example.com","password":"correct"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return rec.Result().Cookies()
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body == "" {
		reader = bytes.NewBuffer(nil)
	} else {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	return envelope.Data
}

func TestLoginIssuesSessionAndJWTCookies(t *testing.T) {
	handler := newTestRouter(t)
	cookies := login(t, handler)

	names := map[string]bool{}
	for _, c := range cookies {
		names[c.Name] = true
	}
	assert.True(t, names[auth.SessionCookieName])
	assert.True(t, names[auth.JWTCookieName])
}

func TestLoginRejectsBadCredentialsWithUpstreamMessage(t *testing.T) {
	handler := newTestRouter(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/auth/login",
		`{"email":"alice@example.com","password":"wrong"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid credentials")
}

func TestMeReturnsTokenIdentity(t *testing.T) {
	handler := newTestRouter(t)
	cookies := login(t, handler)

	rec := doJSON(t, handler, http.MethodGet, "/api/auth/me", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, "u-1", data["user_id"])
	assert.Equal(t, "alice", data["username"])
}

func TestAPIRejectsAnonymousRequests(t *testing.T) {
	handler := newTestRouter(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/devices", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEditorSessionFlow(t *testing.T) {
	handler := newTestRouter(t)
	cookies := login(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/editor/sessions", "", cookies)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sessionID := decodeData(t, rec)["session_id"].(string)
	require.NotEmpty(t, sessionID)
	base := "/api/editor/sessions/" + sessionID

	rec = doJSON(t, handler, http.MethodPost, base+"/nodes",
		`{"id":"dev-1","type":"device","position":{"x":10,"y":20},"data":{"deviceName":"server-01"}}`, cookies)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, handler, http.MethodPost, base+"/nodes",
		`{"id":"mon-1","type":"monitoring","position":{"x":0,"y":0},"data":{"metric":"cpu"}}`, cookies)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, handler, http.MethodPost, base+"/edges",
		`{"id":"e1","source":"dev-1","target":"mon-1"}`, cookies)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// The monitoring widget bound to its device through the new edge.
	assert.Contains(t, rec.Body.String(), `"connectedDevice":"server-01"`)

	rec = doJSON(t, handler, http.MethodPost, base+"/save", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "t-1", decodeData(t, rec)["topology_id"])

	rec = doJSON(t, handler, http.MethodDelete, base, "", cookies)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, base, "", cookies)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEditorRejectsManualRouterNodes(t *testing.T) {
	handler := newTestRouter(t)
	cookies := login(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/editor/sessions", "", cookies)
	require.Equal(t, http.StatusCreated, rec.Code)
	sessionID := decodeData(t, rec)["session_id"].(string)

	rec = doJSON(t, handler, http.MethodPost, "/api/editor/sessions/"+sessionID+"/nodes",
		`{"type":"router","position":{"x":0,"y":0},"data":{"gatewayIP":"10.0.0.1"}}`, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAPITokenReturnsSecret(t *testing.T) {
	handler := newTestRouter(t)
	cookies := login(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/tokens",
		`{"name":"rack-a"}`, cookies)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "secret-once", decodeData(t, rec)["token"])
}

func TestTimeSeriesValidatesDimensions(t *testing.T) {
	handler := newTestRouter(t)
	cookies := login(t, handler)

	rec := doJSON(t, handler, http.MethodGet, "/api/metrics/timeseries?device=server-01&field=gpu", "", cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/metrics/timeseries?device=server-01", "", cookies)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestMetricHistoryServesRawRows(t *testing.T) {
	handler := newTestRouter(t)
	cookies := login(t, handler)

	rec := doJSON(t, handler, http.MethodGet, "/api/metrics/history?device=server-01", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rows := decodeData(t, rec)["rows"].([]interface{})
	require.Len(t, rows, 1)
	assert.Equal(t, 15.0, rows[0].(map[string]interface{})["cpu"])

	rec = doJSON(t, handler, http.MethodGet, "/api/metrics/history", "", cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPageGuardRedirectsAnonymousDashboard(t *testing.T) {
	handler := newTestRouter(t)

	rec := doJSON(t, handler, http.MethodGet, "/dashboard", "", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/auth/login?redirect=%2Fdashboard")
}

func TestLogoutClearsSession(t *testing.T) {
	handler := newTestRouter(t)
	cookies := login(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/auth/logout", "", cookies)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/devices", "", cookies)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
