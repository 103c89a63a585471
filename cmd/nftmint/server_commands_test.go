package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runApp runs the full CLI with args and returns what it wrote to stdout.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"nftmint"}, args...))
	return out.String(), err
}

// healthServer answers /health with status and /api/v1/session with sess.
func healthServer(t *testing.T, status int, sess map[string]interface{}) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(status)
			w.Write([]byte("OK"))
		case "/api/v1/session":
			assert.Equal(t, http.MethodGet, r.Method)
			writeJSON(w, http.StatusOK, sess)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestHealthCommand_ReadySession(t *testing.T) {
	server := healthServer(t, http.StatusOK, connectedSession())
	t.Setenv("SERVER_URL", server.URL)

	out, err := runApp(t, "server", "health")
	require.NoError(t, err)
	assert.Contains(t, out, "Server is healthy")
	assert.Contains(t, out, server.URL)
	assert.Contains(t, out, "Provider present:    true")
	assert.Contains(t, out, "Connected:           true")
	assert.Contains(t, out, "On required network: true")
	assert.NotContains(t, out, "Minting is unavailable")
}

func TestHealthCommand_WrongNetwork(t *testing.T) {
	sess := connectedSession()
	sess["chain_id"] = "0x1"
	sess["on_required_network"] = false
	sess["can_mint"] = false
	server := healthServer(t, http.StatusOK, sess)

	out, err := runApp(t, "--server-url", server.URL, "server", "health")
	require.NoError(t, err)
	assert.Contains(t, out, "Connected:           true")
	assert.Contains(t, out, "On required network: false")
	assert.Contains(t, out, "Minting is unavailable")
}

func TestHealthCommand_JSON(t *testing.T) {
	server := healthServer(t, http.StatusOK, map[string]interface{}{
		"provider_present":    false,
		"connected":           false,
		"on_required_network": false,
		"can_mint":            false,
	})

	out, err := runApp(t, "--server-url", server.URL, "--json", "server", "health")
	require.NoError(t, err)

	var report healthReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Healthy)
	assert.Equal(t, server.URL, report.ServerURL)
	assert.False(t, report.ProviderPresent)
	assert.False(t, report.Connected)
	assert.False(t, report.CanMint)
}

func TestHealthCommand_Unhealthy(t *testing.T) {
	server := healthServer(t, http.StatusInternalServerError, nil)

	_, err := runApp(t, "--server-url", server.URL, "server", "health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unhealthy status: 500")
}

func TestHealthCommand_MissingServerURL(t *testing.T) {
	_, err := runApp(t, "--server-url", "", "server", "health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server-url is required")
}

func TestVersionCommand(t *testing.T) {
	version = "1.0.0"
	commit = "abc123"
	date = "2026-10-10"

	out, err := runApp(t, "server", "version")
	require.NoError(t, err)
	assert.Equal(t, "nftmint 1.0.0 (commit abc123, built 2026-10-10)\n", out)
}
