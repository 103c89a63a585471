package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/brojonat/nftmint/service/config"
	"github.com/brojonat/nftmint/service/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAccount = "0x00000000000000000000000000000000000000aa"
	testTxHash  = "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"
)

type testEnv struct {
	handler  http.Handler
	ctl      *wallet.Controller
	provider *wallet.MockProvider
	binding  *wallet.MockBinding
}

func testConfig() *config.Config {
	return &config.Config{
		ServerAddr:      ":0",
		RequiredChainID: "0x4",
		ContractAddress: "0x1234567890abcdef1234567890abcdef12345678",
		ExplorerURL:     "https://rinkeby.etherscan.io",
		CollectionURL:   "https://testnets.opensea.io/collection/squarenft",
		TwitterHandle:   "_buildspace",
		RPCTimeout:      5 * time.Second,
	}
}

func newTestEnv(t *testing.T, withProvider bool) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, withProvider, testConfig())
}

func newTestEnvWithConfig(t *testing.T, withProvider bool, cfg *config.Config) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	provider := wallet.NewMockProvider()
	provider.SetChainID("0x4")
	provider.SetRequestAccounts(testAccount)
	binding := wallet.NewMockBinding(testTxHash)
	binding.SetTotalMinted(3, nil)

	var p wallet.Provider
	if withProvider {
		p = provider
	}
	ctl := wallet.NewController(p, binding, wallet.Options{
		RequiredChainID: cfg.RequiredChainID,
		ExplorerURL:     cfg.ExplorerURL,
		CallTimeout:     cfg.RPCTimeout,
		Logger:          logger,
	})
	t.Cleanup(ctl.Close)

	srv := New(cfg.ServerAddr, cfg, ctl, nil, nil, logger)
	require.NoError(t, srv.WithTemplates())

	return &testEnv{
		handler:  srv.Handler(),
		ctl:      ctl,
		provider: provider,
		binding:  binding,
	}
}

func (e *testEnv) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		kind wallet.Kind
		want int
	}{
		{wallet.KindProviderMissing, http.StatusServiceUnavailable},
		{wallet.KindAuthorizationRejected, http.StatusForbidden},
		{wallet.KindNotConnected, http.StatusConflict},
		{wallet.KindWrongNetwork, http.StatusConflict},
		{wallet.KindMintInProgress, http.StatusConflict},
		{wallet.KindTransactionFailed, http.StatusBadGateway},
		{"", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, statusForKind(tt.kind))
		})
	}
}

func TestSessionRoutes(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodGet, "/api/v1/session")
	require.Equal(t, http.StatusOK, rec.Code)
	var sess sessionResponse
	decode(t, rec, &sess)
	assert.True(t, sess.ProviderPresent)
	assert.False(t, sess.Connected)
	assert.False(t, sess.CanMint)

	// No authorized account yet: restore stays disconnected and never prompts.
	rec = env.do(t, http.MethodPost, "/api/v1/session/restore")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &sess)
	assert.False(t, sess.Connected)
	assert.Equal(t, 0, env.provider.CallCount(wallet.MethodRequestAccounts))

	rec = env.do(t, http.MethodPost, "/api/v1/session/connect")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &sess)
	assert.True(t, sess.Connected)
	assert.Equal(t, testAccount, sess.Account)
	assert.True(t, sess.CanMint)
	assert.Equal(t, uint64(3), sess.Counter)

	rec = env.do(t, http.MethodPost, "/api/v1/session/network")
	require.Equal(t, http.StatusOK, rec.Code)
	var network networkResponse
	decode(t, rec, &network)
	assert.True(t, network.OnRequiredNetwork)
	assert.Equal(t, "0x4", network.ChainID)
	assert.Equal(t, "0x4", network.RequiredChainID)
}

func TestConnectRejected(t *testing.T) {
	env := newTestEnv(t, true)
	env.provider.SetError(wallet.MethodRequestAccounts, errors.New("User rejected the request."))

	rec := env.do(t, http.MethodPost, "/api/v1/session/connect")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	var body errorResponse
	decode(t, rec, &body)
	assert.Equal(t, wallet.KindAuthorizationRejected, body.Kind)
	assert.Contains(t, body.Error, "User rejected the request.")
}

func TestProviderMissing(t *testing.T) {
	env := newTestEnv(t, false)

	for _, path := range []string{"/api/v1/session/restore", "/api/v1/session/connect", "/api/v1/session/network", "/api/v1/mint"} {
		rec := env.do(t, http.MethodPost, path)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
		var body errorResponse
		decode(t, rec, &body)
		assert.Equal(t, wallet.KindProviderMissing, body.Kind, path)
	}
	assert.Empty(t, env.binding.MintCalls())
}

func TestMintRoutes(t *testing.T) {
	env := newTestEnv(t, true)

	// Not connected
	rec := env.do(t, http.MethodPost, "/api/v1/mint")
	assert.Equal(t, http.StatusConflict, rec.Code)
	var body errorResponse
	decode(t, rec, &body)
	assert.Equal(t, wallet.KindNotConnected, body.Kind)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/session/connect").Code)

	rec = env.do(t, http.MethodPost, "/api/v1/mint")
	require.Equal(t, http.StatusAccepted, rec.Code)
	var started wallet.MintOperation
	decode(t, rec, &started)
	assert.Equal(t, wallet.MintAwaitingSignature, started.Status)
	assert.NotEmpty(t, started.ID)

	require.Eventually(t, func() bool {
		return env.ctl.Operation().Status == wallet.MintConfirmed
	}, time.Second, 5*time.Millisecond)

	rec = env.do(t, http.MethodGet, "/api/v1/mint")
	require.Equal(t, http.StatusOK, rec.Code)
	var op wallet.MintOperation
	decode(t, rec, &op)
	assert.Equal(t, started.ID, op.ID)
	assert.Equal(t, wallet.MintConfirmed, op.Status)
	assert.Equal(t, "https://rinkeby.etherscan.io/tx/"+testTxHash, op.ExplorerURL)
}

func TestMintWrongNetwork(t *testing.T) {
	env := newTestEnv(t, true)
	env.provider.SetChainID("0x1")
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/session/connect").Code)

	rec := env.do(t, http.MethodPost, "/api/v1/mint")
	assert.Equal(t, http.StatusConflict, rec.Code)
	var body errorResponse
	decode(t, rec, &body)
	assert.Equal(t, wallet.KindWrongNetwork, body.Kind)
	assert.Empty(t, env.binding.MintCalls())
	assert.Equal(t, wallet.MintIdle, env.ctl.Operation().Status)
}

func TestMintBoundedByRPCTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.RPCTimeout = 200 * time.Millisecond

	t.Run("unresponsive chain check", func(t *testing.T) {
		env := newTestEnvWithConfig(t, true, cfg)
		require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/session/connect").Code)
		env.provider.Hang(wallet.MethodChainID)

		codes := make(chan int, 1)
		go func() { codes <- env.do(t, http.MethodPost, "/api/v1/mint").Code }()

		select {
		case code := <-codes:
			assert.Equal(t, http.StatusConflict, code)
		case <-time.After(2 * time.Second):
			t.Fatal("POST /api/v1/mint did not return within the RPC timeout")
		}
		assert.Empty(t, env.binding.MintCalls())
		assert.Equal(t, wallet.MintIdle, env.ctl.Operation().Status)
	})

	t.Run("unresponsive signature request", func(t *testing.T) {
		env := newTestEnvWithConfig(t, true, cfg)
		require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/session/connect").Code)
		env.binding.HangMint()

		require.Equal(t, http.StatusAccepted, env.do(t, http.MethodPost, "/api/v1/mint").Code)
		require.Eventually(t, func() bool {
			return env.ctl.Operation().Status == wallet.MintFailed
		}, 2*time.Second, 10*time.Millisecond)
		assert.Contains(t, env.ctl.Operation().Error, string(wallet.KindAuthorizationRejected))
	})
}

func TestMintInProgress(t *testing.T) {
	env := newTestEnv(t, true)
	release := env.binding.HoldMining()
	defer release()
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/session/connect").Code)

	require.Equal(t, http.StatusAccepted, env.do(t, http.MethodPost, "/api/v1/mint").Code)
	require.Eventually(t, func() bool {
		return env.ctl.Operation().Status == wallet.MintMining
	}, time.Second, 5*time.Millisecond)

	rec := env.do(t, http.MethodPost, "/api/v1/mint")
	assert.Equal(t, http.StatusConflict, rec.Code)
	var body errorResponse
	decode(t, rec, &body)
	assert.Equal(t, wallet.KindMintInProgress, body.Kind)
}

func TestCounterRoute(t *testing.T) {
	env := newTestEnv(t, true)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/session/connect").Code)

	env.binding.Emit(wallet.MintEvent{Minter: testAccount, TokenID: 9})
	env.binding.Emit(wallet.MintEvent{Minter: testAccount, TokenID: 4})

	rec := env.do(t, http.MethodGet, "/api/v1/counter")
	require.Equal(t, http.StatusOK, rec.Code)
	var body counterResponse
	decode(t, rec, &body)
	assert.Equal(t, uint64(9), body.Counter)
}

func TestIndexPage(t *testing.T) {
	t.Run("no provider shows install prompt", func(t *testing.T) {
		env := newTestEnv(t, false)
		rec := env.do(t, http.MethodGet, "/")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
		body := rec.Body.String()
		assert.Contains(t, body, "No wallet provider detected")
		assert.Contains(t, body, `id="install" class="notice warn "`)
		assert.Contains(t, body, "https://twitter.com/_buildspace")
		assert.Contains(t, body, "https://testnets.opensea.io/collection/squarenft")
	})

	t.Run("connected shows counter and account", func(t *testing.T) {
		env := newTestEnv(t, true)
		require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/session/connect").Code)

		rec := env.do(t, http.MethodGet, "/")
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "Connected as "+testAccount)
		assert.Contains(t, body, `<span id="counter">3</span>`)
		assert.True(t, strings.Contains(body, `id="install" class="notice warn hidden"`))
	})

	t.Run("unknown paths are not the index", func(t *testing.T) {
		env := newTestEnv(t, true)
		assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/nope").Code)
	})
}

func TestHealthAndCORS(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = env.do(t, http.MethodOptions, "/api/v1/mint")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
