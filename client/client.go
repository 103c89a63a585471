package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/brojonat/nftmint/service/wallet"
)

// Session is the server's view of the wallet session.
type Session struct {
	wallet.Session
	CanMint bool   `json:"can_mint"`
	Counter uint64 `json:"counter"`
}

// Network is the result of a network check.
type Network struct {
	OnRequiredNetwork bool   `json:"on_required_network"`
	ChainID           string `json:"chain_id,omitempty"`
	RequiredChainID   string `json:"required_chain_id"`
}

// APIError is a non-2xx response. Kind is set when the server classified the failure.
type APIError struct {
	StatusCode int
	Message    string
	Kind       wallet.Kind
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("request failed (%s): %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// KindOf returns the wallet error kind carried by err, if any.
func KindOf(err error) wallet.Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// Client is the HTTP client for the nftmint service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new minting service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Session returns the current session without touching the wallet provider.
func (c *Client) Session(ctx context.Context) (*Session, error) {
	var sess Session
	if err := c.do(ctx, http.MethodGet, "/api/v1/session", http.StatusOK, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Restore asks the server to pick up an already-authorized account.
func (c *Client) Restore(ctx context.Context) (*Session, error) {
	var sess Session
	if err := c.do(ctx, http.MethodPost, "/api/v1/session/restore", http.StatusOK, &sess); err != nil {
		return nil, err
	}
	c.logger.Debug("session restored", "connected", sess.Connected, "account", sess.Account)
	return &sess, nil
}

// Connect asks the server to request account authorization.
func (c *Client) Connect(ctx context.Context) (*Session, error) {
	var sess Session
	if err := c.do(ctx, http.MethodPost, "/api/v1/session/connect", http.StatusOK, &sess); err != nil {
		return nil, err
	}
	c.logger.Debug("connected", "account", sess.Account)
	return &sess, nil
}

// CheckNetwork asks the server to re-read the provider's chain.
func (c *Client) CheckNetwork(ctx context.Context) (*Network, error) {
	var network Network
	if err := c.do(ctx, http.MethodPost, "/api/v1/session/network", http.StatusOK, &network); err != nil {
		return nil, err
	}
	return &network, nil
}

// Mint starts a mint. The returned operation is awaiting a signature.
func (c *Client) Mint(ctx context.Context) (*wallet.MintOperation, error) {
	var op wallet.MintOperation
	if err := c.do(ctx, http.MethodPost, "/api/v1/mint", http.StatusAccepted, &op); err != nil {
		return nil, err
	}
	c.logger.Debug("mint started", "operation_id", op.ID)
	return &op, nil
}

// Operation returns the most recent mint operation.
func (c *Client) Operation(ctx context.Context) (*wallet.MintOperation, error) {
	var op wallet.MintOperation
	if err := c.do(ctx, http.MethodGet, "/api/v1/mint", http.StatusOK, &op); err != nil {
		return nil, err
	}
	return &op, nil
}

// Counter returns the number of NFTs minted so far.
func (c *Client) Counter(ctx context.Context) (uint64, error) {
	var resp struct {
		Counter uint64 `json:"counter"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/counter", http.StatusOK, &resp); err != nil {
		return 0, err
	}
	return resp.Counter, nil
}

// AwaitMint polls the operation with the given id until it is confirmed or
// failed, or ctx is done. onUpdate, if non-nil, sees every status change.
func (c *Client) AwaitMint(ctx context.Context, id string, interval time.Duration, onUpdate func(*wallet.MintOperation)) (*wallet.MintOperation, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last wallet.MintStatus
	for {
		op, err := c.Operation(ctx)
		if err != nil {
			return nil, err
		}
		if op.ID != id {
			return nil, fmt.Errorf("operation %s was superseded by %s", id, op.ID)
		}
		if op.Status != last {
			last = op.Status
			if onUpdate != nil {
				onUpdate(op)
			}
		}
		if op.Status.Terminal() {
			return op, nil
		}

		select {
		case <-ctx.Done():
			return op, ctx.Err()
		case <-ticker.C:
		}
	}
}

// StreamMints reads the server's SSE mint stream and calls handle for every
// event until ctx is done or the stream ends. A handler error stops the stream.
func (c *Client) StreamMints(ctx context.Context, handle func(eventType string, data []byte) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/stream/mints", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// No timeout for streaming
	streaming := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streaming.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to SSE endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	var currentEvent, currentData string
	for scanner.Scan() {
		line := scanner.Text()

		// Empty line indicates end of event
		if line == "" {
			if currentEvent != "" && currentData != "" {
				if err := handle(currentEvent, []byte(currentData)); err != nil {
					return err
				}
			}
			currentEvent, currentData = "", ""
			continue
		}

		if strings.HasPrefix(line, "event:") {
			currentEvent = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			currentData = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error reading SSE stream: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, wantStatus int, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string      `json:"error"`
		Kind  wallet.Kind `json:"kind"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error, Kind: errResp.Kind}
}
