package ethereum

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/brojonat/nftmint/service/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpcServer is a minimal JSON-RPC 2.0 endpoint. Methods absent from results
// answer with "method not found".
type rpcServer struct {
	mu      sync.Mutex
	results map[string]interface{}
	calls   []string
}

func newRPCServer(t *testing.T, results map[string]interface{}) (*rpcServer, *httptest.Server) {
	t.Helper()
	s := &rpcServer{results: results}
	srv := httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(srv.Close)
	return s, srv
}

func (s *rpcServer) handle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls = append(s.calls, req.Method)
	result, ok := s.results[req.Method]
	s.mu.Unlock()

	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	if ok {
		resp["result"] = result
	} else {
		resp["error"] = map[string]interface{}{
			"code":    -32601,
			"message": "the method " + req.Method + " does not exist/is not available",
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *rpcServer) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func TestDetectProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("no url", func(t *testing.T) {
		p, ok := DetectProvider(ctx, "", nil, nil, nil)
		assert.False(t, ok)
		assert.Nil(t, p)
	})

	t.Run("node answers chain id", func(t *testing.T) {
		_, srv := newRPCServer(t, map[string]interface{}{wallet.MethodChainID: "0x4"})
		p, ok := DetectProvider(ctx, srv.URL, nil, nil, nil)
		require.True(t, ok)
		defer p.Close()

		var chainID string
		require.NoError(t, p.Request(ctx, wallet.MethodChainID, &chainID))
		assert.Equal(t, "0x4", chainID)
	})

	t.Run("node does not answer chain id", func(t *testing.T) {
		_, srv := newRPCServer(t, map[string]interface{}{})
		p, ok := DetectProvider(ctx, srv.URL, nil, nil, nil)
		assert.False(t, ok)
		assert.Nil(t, p)
	})
}

func TestProvider_RequestAccountsFallback(t *testing.T) {
	ctx := context.Background()
	node, srv := newRPCServer(t, map[string]interface{}{
		wallet.MethodChainID:  "0x4",
		wallet.MethodAccounts: []string{"0x00000000000000000000000000000000000000aa"},
	})
	p, ok := DetectProvider(ctx, srv.URL, nil, nil, nil)
	require.True(t, ok)
	defer p.Close()

	var accounts []string
	require.NoError(t, p.Request(ctx, wallet.MethodRequestAccounts, &accounts))
	assert.Equal(t, []string{"0x00000000000000000000000000000000000000aa"}, accounts)
	assert.Equal(t, []string{wallet.MethodChainID, wallet.MethodRequestAccounts, wallet.MethodAccounts}, node.Calls())
}

func TestProvider_KeystoreAccountsAnsweredLocally(t *testing.T) {
	ctx := context.Background()
	node, srv := newRPCServer(t, map[string]interface{}{wallet.MethodChainID: "0x4"})
	signer := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	p, ok := DetectProvider(ctx, srv.URL, []common.Address{signer}, nil, nil)
	require.True(t, ok)
	defer p.Close()

	for _, method := range []string{wallet.MethodAccounts, wallet.MethodRequestAccounts} {
		var accounts []string
		require.NoError(t, p.Request(ctx, method, &accounts))
		assert.Equal(t, []string{signer.Hex()}, accounts)
	}
	assert.Equal(t, []string{wallet.MethodChainID}, node.Calls())
}

func TestProvider_DrivesController(t *testing.T) {
	ctx := context.Background()
	_, srv := newRPCServer(t, map[string]interface{}{
		wallet.MethodChainID:  "0x1",
		wallet.MethodAccounts: []string{"0x00000000000000000000000000000000000000aa"},
	})
	p, ok := DetectProvider(ctx, srv.URL, nil, nil, nil)
	require.True(t, ok)
	defer p.Close()

	binding := wallet.NewMockBinding("0xfeed")
	ctl := wallet.NewController(p, binding, wallet.Options{RequiredChainID: "0x4"})
	defer ctl.Close()

	sess, err := ctl.RestoreSession(ctx)
	require.NoError(t, err)
	assert.True(t, sess.Connected)
	assert.False(t, sess.OnRequiredNetwork)
	assert.Equal(t, "0x1", sess.ChainID)

	_, err = ctl.SubmitMint(ctx)
	assert.Equal(t, wallet.KindWrongNetwork, wallet.KindOf(err))
	assert.Empty(t, binding.MintCalls())
}
