package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-local-server/internal/coordinator"
	"github.com/sirosfoundation/go-local-server/internal/domain"
	"github.com/sirosfoundation/go-local-server/pkg/middleware"
)

type recordedRequest struct {
	method string
	path   string
	auth   string
	body   map[string]string
}

func newControlServer(t *testing.T, status coordinator.Status, requests *[]recordedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization")}
		_ = json.NewDecoder(r.Body).Decode(&rec.body)
		*requests = append(*requests, rec)

		if r.URL.Path == "/api/server/stop" {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"no view attached"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// resetFlags restores every flag to its default so commands executed in
// earlier tests do not leak values or Changed state.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestStatusCommand_Table(t *testing.T) {
	var requests []recordedRequest
	srv := newControlServer(t, coordinator.Status{
		Attached:       true,
		Running:        true,
		NetworkAddress: "192.168.1.20",
		Config:         domain.NewServerConfig("192.168.1.20", "8080", true),
	}, &requests)

	out, err := run(t, "status", "--url", srv.URL, "--token", "abc", "--output", "table")
	require.NoError(t, err)

	require.Len(t, requests, 1)
	assert.Equal(t, http.MethodGet, requests[0].method)
	assert.Equal(t, "/api/server", requests[0].path)
	assert.Equal(t, "Bearer abc", requests[0].auth)

	assert.Contains(t, out, "STATE")
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "http://192.168.1.20:8080")
}

func TestStartCommand_JSON(t *testing.T) {
	var requests []recordedRequest
	srv := newControlServer(t, coordinator.Status{Attached: true}, &requests)

	out, err := run(t, "start", "--url", srv.URL, "--token", "abc", "--output", "json")
	require.NoError(t, err)

	require.Len(t, requests, 1)
	assert.Equal(t, http.MethodPost, requests[0].method)
	assert.Equal(t, "/api/server/start", requests[0].path)
	assert.Contains(t, out, `"attached": true`)
}

func TestStopCommand_APIError(t *testing.T) {
	var requests []recordedRequest
	srv := newControlServer(t, coordinator.Status{}, &requests)

	_, err := run(t, "stop", "--url", srv.URL, "--token", "abc", "--output", "table")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error (409): no view attached")
}

func TestNetworkConnectCommand(t *testing.T) {
	var requests []recordedRequest
	srv := newControlServer(t, coordinator.Status{NetworkAddress: "10.1.1.1"}, &requests)

	out, err := run(t, "network", "connect", "10.1.1.1", "--url", srv.URL, "--token", "abc", "--output", "table")
	require.NoError(t, err)

	require.Len(t, requests, 1)
	assert.Equal(t, "/api/network/connected", requests[0].path)
	assert.Equal(t, "10.1.1.1", requests[0].body["address"])
	assert.Contains(t, out, "10.1.1.1")
	assert.Contains(t, out, "stopped")
}

func TestNetworkDisconnectCommand(t *testing.T) {
	var requests []recordedRequest
	srv := newControlServer(t, coordinator.Status{}, &requests)

	_, err := run(t, "network", "disconnect", "--url", srv.URL, "--token", "abc")
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "/api/network/disconnected", requests[0].path)
}

func TestTokenCommand(t *testing.T) {
	out, err := run(t, "token", "--secret", "s3cret", "--subject", "tester")
	require.NoError(t, err)

	subject, err := middleware.ValidateToken("s3cret", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "tester", subject)
}

func TestTokenCommand_FromServerConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
auth:
  secret: "from-file"
  issuer: "file-issuer"
  expiry_hours: 2
`), 0o600))

	out, err := run(t, "token", "--config", path)
	require.NoError(t, err)

	var claims jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(strings.TrimSpace(out), &claims, func(*jwt.Token) (interface{}, error) {
		return []byte("from-file"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "file-issuer", claims.Issuer)
	assert.Equal(t, 2*time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestTokenCommand_FlagsOverrideServerConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth:\n  secret: \"from-file\"\n"), 0o600))

	out, err := run(t, "token", "--config", path, "--secret", "override", "--ttl", "10m")
	require.NoError(t, err)

	var claims jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(strings.TrimSpace(out), &claims, func(*jwt.Token) (interface{}, error) {
		return []byte("override"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestTokenCommand_RequiresSecret(t *testing.T) {
	t.Setenv("LOCALSRV_AUTH_SECRET", "")
	_, err := run(t, "token", "--secret", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--secret is required")
}

func TestClient_PlainTextError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL+"/", "").Request(http.MethodGet, "/api/server", nil)
	require.Error(t, err)
	assert.Equal(t, "API error (502): upstream down", err.Error())
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	printTable(&buf, []string{"A", "LONGER"}, [][]string{{"value", "x"}})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "A      LONGER"))
	assert.True(t, strings.HasPrefix(lines[1], "-----  ------"))
	assert.True(t, strings.HasPrefix(lines[2], "value  x"))
}
