package ethereum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/brojonat/nftmint/service/metrics"
	"github.com/brojonat/nftmint/service/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

// codeMethodNotFound is the JSON-RPC error code for an unknown method.
const codeMethodNotFound = -32601

// Provider is a wallet provider backed by a JSON-RPC node. When accounts are
// configured (a local keystore), account methods are answered locally and
// never reach the node.
type Provider struct {
	client   *rpc.Client
	accounts []string
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewProvider wraps client. accounts may be empty.
func NewProvider(client *rpc.Client, accounts []common.Address, m *metrics.Metrics, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	var hex []string
	for _, a := range accounts {
		hex = append(hex, a.Hex())
	}
	return &Provider{
		client:   client,
		accounts: hex,
		metrics:  m,
		logger:   logger.With("component", "rpc_provider"),
	}
}

// DetectProvider dials url and checks that it answers eth_chainId. An empty
// url or an unreachable endpoint reports absence, not an error.
func DetectProvider(ctx context.Context, url string, accounts []common.Address, m *metrics.Metrics, logger *slog.Logger) (*Provider, bool) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if url == "" {
		logger.InfoContext(ctx, "no wallet provider configured")
		return nil, false
	}

	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		logger.WarnContext(ctx, "wallet provider unreachable", "url", url, "error", err)
		return nil, false
	}

	p := NewProvider(client, accounts, m, logger)
	var chainID string
	if err := p.Request(ctx, wallet.MethodChainID, &chainID); err != nil {
		client.Close()
		logger.WarnContext(ctx, "wallet provider not answering", "url", url, "error", err)
		return nil, false
	}

	logger.InfoContext(ctx, "wallet provider detected", "url", url, "chain_id", chainID)
	return p, true
}

// Client returns the underlying RPC client.
func (p *Provider) Client() *rpc.Client {
	return p.client
}

// Request issues method with no params and decodes the result.
// eth_requestAccounts falls back to eth_accounts on nodes that do not implement it.
func (p *Provider) Request(ctx context.Context, method string, result interface{}) error {
	if len(p.accounts) > 0 && (method == wallet.MethodAccounts || method == wallet.MethodRequestAccounts) {
		return p.local(ctx, method, result)
	}

	err := p.call(ctx, method, result)
	if err != nil && method == wallet.MethodRequestAccounts && isMethodNotFound(err) {
		p.logger.DebugContext(ctx, "eth_requestAccounts not supported, using eth_accounts")
		return p.call(ctx, wallet.MethodAccounts, result)
	}
	return err
}

// Close closes the RPC client.
func (p *Provider) Close() {
	p.client.Close()
}

func (p *Provider) call(ctx context.Context, method string, result interface{}) (err error) {
	start := time.Now()
	if p.metrics != nil {
		defer metrics.Timer(start, func(seconds float64) {
			p.metrics.RecordProviderRequest(method, err, seconds)
		})()
	}

	err = p.client.CallContext(ctx, result, method)
	duration := time.Since(start)
	if err != nil {
		p.logger.DebugContext(ctx, "provider request failed", "method", method, "error", err, "duration_ms", duration.Milliseconds())
		return err
	}
	p.logger.DebugContext(ctx, "provider request", "method", method, "duration_ms", duration.Milliseconds())
	return nil
}

func (p *Provider) local(ctx context.Context, method string, result interface{}) error {
	data, err := json.Marshal(p.accounts)
	if err != nil {
		return fmt.Errorf("failed to encode accounts: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordProviderRequest(method, nil, 0)
	}
	p.logger.DebugContext(ctx, "provider request answered by keystore", "method", method)
	return json.Unmarshal(data, result)
}

func isMethodNotFound(err error) bool {
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeMethodNotFound
}
