package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-local-server/internal/api"
	"github.com/sirosfoundation/go-local-server/internal/coordinator"
	"github.com/sirosfoundation/go-local-server/internal/domain"
	"github.com/sirosfoundation/go-local-server/internal/metrics"
	"github.com/sirosfoundation/go-local-server/internal/network"
	"github.com/sirosfoundation/go-local-server/pkg/config"
	"github.com/sirosfoundation/go-local-server/pkg/middleware"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeHandle struct {
	cfg     *domain.ServerConfig
	running bool
}

func (h *fakeHandle) Start() error                        { h.running = true; return nil }
func (h *fakeHandle) Stop()                               { h.running = false }
func (h *fakeHandle) IsRunning() bool                     { return h.running }
func (h *fakeHandle) CurrentConfig() *domain.ServerConfig { return h.cfg }

type nopView struct{}

func (nopView) OnServerStarted(*domain.ServerConfig) {}
func (nopView) OnServerStopped()                     {}
func (nopView) OnError(domain.LifecycleError)        {}
func (nopView) SubscribeToNetworkChanges()           {}

func testConfig() *config.Config {
	return &config.Config{
		Control: config.ControlConfig{
			Host: "127.0.0.1",
			Port: 0,
			CORS: config.CORSConfig{
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST"},
			},
		},
		Auth:      config.AuthConfig{Secret: testSecret, Issuer: "test"},
		RateLimit: config.RateLimitConfig{Enabled: true, RequestsPerSecond: 1, Burst: 2},
	}
}

type testEnv struct {
	manager *Manager
	coord   *coordinator.Coordinator
	handle  *fakeHandle
	token   string
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	reg := prometheus.NewRegistry()
	h := &fakeHandle{cfg: domain.NewServerConfig("10.0.0.2", "8080", true)}
	coord := coordinator.New(h, zap.NewNop(), coordinator.WithMetrics(metrics.New(reg)))
	push := network.NewPushSource(network.ConfigFactory{Port: "8080", RunInBackground: true}, coord, zap.NewNop())

	mgr := NewManager(cfg, Deps{
		Handlers: api.NewHandlers(coord, push, zap.NewNop()),
		Gatherer: reg,
	}, zap.NewNop())

	token, err := middleware.IssueToken(testSecret, "test", "ctl", time.Hour)
	require.NoError(t, err)

	return &testEnv{manager: mgr, coord: coord, handle: h, token: token}
}

func (e *testEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.manager.Router().ServeHTTP(w, req)
	return w
}

func TestRouter_PublicEndpoints(t *testing.T) {
	env := newTestEnv(t, testConfig())

	for _, path := range []string{"/health", "/status"} {
		w := env.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), api.ServiceName)
	}
}

func TestRouter_Metrics(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.coord.AttachView(nopView{})

	w := env.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "localsrv_view_attached 1")
}

func TestRouter_APIRequiresToken(t *testing.T) {
	env := newTestEnv(t, testConfig())

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/server", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/server", "garbage", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/server", env.token, nil).Code)
}

func TestRouter_StartFlow(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.coord.AttachView(nopView{})

	w := env.do(http.MethodPost, "/api/network/connected", env.token, api.NetworkConnectedRequest{Address: "10.0.0.2"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/api/server/start", env.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.handle.running)

	var st coordinator.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.True(t, st.Running)
	assert.Equal(t, "10.0.0.2", st.NetworkAddress)
}

func TestRouter_PowerIsRateLimited(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.coord.AttachView(nopView{})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, env.do(http.MethodPost, "/api/server/stop", env.token, nil).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Status reads are not limited
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/server", env.token, nil).Code)
}

func TestRouter_CORS(t *testing.T) {
	env := newTestEnv(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Origin", "http://ui.example")
	w := httptest.NewRecorder()
	env.manager.Router().ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestManager_StartAndShutdown(t *testing.T) {
	env := newTestEnv(t, testConfig())

	require.NoError(t, env.manager.Start(context.Background()))
	addr := env.manager.Addr()
	require.NotNil(t, addr)

	assert.Error(t, env.manager.Start(context.Background()))

	resp, err := http.Get(fmt.Sprintf("http://%s/health", addr.String()))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, env.manager.Shutdown(ctx))
	assert.Nil(t, env.manager.Addr())
	assert.NoError(t, env.manager.Shutdown(ctx))
}

func TestManager_StartBindFailure(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	cfg := testConfig()
	cfg.Control.Port = busy.Addr().(*net.TCPAddr).Port
	env := newTestEnv(t, cfg)

	err = env.manager.Start(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to listen"))
}
