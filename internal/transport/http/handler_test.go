package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keti-tsn/trafficd/internal/config"
	"github.com/keti-tsn/trafficd/internal/hub"
	"github.com/keti-tsn/trafficd/internal/service"
	"github.com/keti-tsn/trafficd/internal/sudo"
)

const fakeElevate = `#!/bin/sh
read -r pw
if [ "$pw" != "secret" ]; then
  echo "Sorry, try again." >&2
  exit 1
fi
exec "$@"
`

func newTestServer(t *testing.T) (*echo.Echo, *service.Service) {
	t.Helper()

	cfg := &config.Config{RunTimeout: 30 * time.Second, SudoTimeout: time.Minute}

	h := hub.New()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)

	session := sudo.NewSession(cfg.SudoTimeout, h)
	elev := filepath.Join(t.TempDir(), "elevate")
	require.NoError(t, os.WriteFile(elev, []byte(fakeElevate), 0o755))
	session.SetElevateCommand([]string{elev})

	svc := service.New(cfg, h, session)

	e := echo.New()
	NewHandler(svc).RegisterRoutes(e)
	return e, svc
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestGetStatus(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(e, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	tools, ok := body["tools"].(map[string]any)
	require.True(t, ok)
	for _, name := range []string{"throughput", "latency", "packetgen", "video"} {
		assert.Contains(t, tools, name)
	}
	sess, ok := body["sudo"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, sess["active"])
}

func TestStartUnknownTool(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/api/tools/chaos/start", "{}")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])

	rec = doJSON(e, http.MethodPost, "/api/tools/chaos/stop", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(e, http.MethodGet, "/api/tools/chaos/stats", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartToolInvalidParams(t *testing.T) {
	e, _ := newTestServer(t)

	cases := []struct {
		name    string
		path    string
		body    string
		message string
	}{
		{
			"packetgen both modes",
			"/api/tools/packetgen/start",
			`{"interface": "eth0", "dest_ip": "10.0.0.2", "packet_hex": "deadbeef"}`,
			"mutually exclusive",
		},
		{
			"packetgen vlan out of range",
			"/api/tools/packetgen/start",
			`{"interface": "eth0", "dest_ip": "10.0.0.2", "vlan_id": 5000}`,
			"vlan_id",
		},
		{
			"throughput bad port",
			"/api/tools/throughput/start",
			`{"host": "10.0.0.2", "port": 99999}`,
			"port",
		},
		{
			"latency bad mode",
			"/api/tools/latency/start",
			`{"mode": "burst"}`,
			"mode",
		},
		{
			"malformed json",
			"/api/tools/throughput/start",
			`{"host": `,
			"malformed",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(e, http.MethodPost, tc.path, tc.body)
			// Command failures ride a 200 with success=false.
			require.Equal(t, http.StatusOK, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Contains(t, body["message"], tc.message)
		})
	}
}

func TestStartStopLifecycle(t *testing.T) {
	e, svc := newTestServer(t)

	stub := filepath.Join(t.TempDir(), "iperf3")
	require.NoError(t, os.WriteFile(stub, []byte("#!/bin/sh\nexec sleep 30\n"), 0o755))
	svc.Iperf().SetBinary(stub)

	rec := doJSON(e, http.MethodPost, "/api/tools/throughput/start", `{"host": "127.0.0.1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, true, body["success"], "body: %s", rec.Body.String())

	// Second start rejected while running.
	rec = doJSON(e, http.MethodPost, "/api/tools/throughput/start", `{"host": "127.0.0.1"}`)
	body = decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["message"], "already running")

	rec = doJSON(e, http.MethodGet, "/api/tools/throughput/status", "")
	body = decode(t, rec)
	assert.Equal(t, true, body["running"])

	rec = doJSON(e, http.MethodPost, "/api/tools/throughput/stop", "")
	body = decode(t, rec)
	assert.Equal(t, true, body["success"])

	// Stopping an idle tool still succeeds.
	rec = doJSON(e, http.MethodPost, "/api/tools/throughput/stop", "")
	body = decode(t, rec)
	assert.Equal(t, true, body["success"])

	rec = doJSON(e, http.MethodGet, "/api/tools/throughput/status", "")
	body = decode(t, rec)
	assert.Equal(t, false, body["running"])
}

func TestSudoEndpoints(t *testing.T) {
	e, _ := newTestServer(t)

	t.Run("empty password", func(t *testing.T) {
		rec := doJSON(e, http.MethodPost, "/api/sudo/auth", `{}`)
		body := decode(t, rec)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "Password required", body["message"])
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := doJSON(e, http.MethodPost, "/api/sudo/auth", `{"password": "nope"}`)
		body := decode(t, rec)
		assert.Equal(t, false, body["success"])
	})

	t.Run("correct password", func(t *testing.T) {
		rec := doJSON(e, http.MethodPost, "/api/sudo/auth", `{"password": "secret"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		require.Equal(t, true, body["success"])

		sess, ok := body["session"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, true, sess["active"])
		assert.NotEmpty(t, sess["token"])

		// The credential itself never appears in any response.
		assert.NotContains(t, rec.Body.String(), "secret")
	})

	t.Run("session status", func(t *testing.T) {
		rec := doJSON(e, http.MethodGet, "/api/sudo/session", "")
		body := decode(t, rec)
		sess := body["session"].(map[string]any)
		assert.Equal(t, true, sess["active"])
	})

	t.Run("clear", func(t *testing.T) {
		rec := doJSON(e, http.MethodPost, "/api/sudo/clear", "")
		body := decode(t, rec)
		assert.Equal(t, true, body["success"])

		rec = doJSON(e, http.MethodGet, "/api/sudo/session", "")
		body = decode(t, rec)
		sess := body["session"].(map[string]any)
		assert.Equal(t, false, sess["active"])
	})
}

func TestGetInterfaces(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(e, http.MethodGet, "/api/interfaces", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Contains(t, body, "interfaces")
	assert.Contains(t, body, "count")

	rec = doJSON(e, http.MethodGet, "/api/interfaces/definitely-not-an-iface", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
