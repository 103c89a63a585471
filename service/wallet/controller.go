// Package wallet implements the wallet-session controller: it restores or
// requests account authorization from a wallet provider, guards minting on the
// required chain, drives a mint transaction through its lifecycle and keeps a
// monotonic mirror of the contract's minted count.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/brojonat/nftmint/service/metrics"
	"github.com/google/uuid"
)

// Options configures a Controller.
type Options struct {
	// RequiredChainID is the only chain minting is allowed on, e.g. "0x4".
	RequiredChainID string

	// ExplorerURL is the block explorer base used to build transaction links.
	ExplorerURL string

	// OnMinted is invoked for every mint event once the controller has
	// subscribed on connect. It runs on the subscription's goroutine.
	OnMinted func(MintEvent)

	// CallTimeout bounds the network re-check and the signature request of a
	// mint. The mining wait is never bounded. Zero means no bound.
	CallTimeout time.Duration

	Metrics *metrics.Metrics // Optional
	Logger  *slog.Logger     // Optional
}

// Controller owns one wallet session, its mint counter and at most one active
// mint operation. It is safe for concurrent use.
type Controller struct {
	provider        Provider
	binding         Binding
	requiredChainID string
	explorerURL     string
	onMinted        func(MintEvent)
	callTimeout     time.Duration
	metrics         *metrics.Metrics
	logger          *slog.Logger

	// baseCtx bounds the subscription the controller opens on connect.
	baseCtx context.Context
	cancel  context.CancelFunc

	counter Counter

	mu         sync.Mutex
	session    Session
	op         MintOperation
	subs       []Subscription
	subscribed bool
}

// NewController creates a controller. provider may be nil (or a typed nil),
// in which case every operation reports KindProviderMissing without issuing calls.
func NewController(provider Provider, binding Binding, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	p, present := DetectProvider(provider)
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		provider:        p,
		binding:         binding,
		requiredChainID: opts.RequiredChainID,
		explorerURL:     strings.TrimRight(opts.ExplorerURL, "/"),
		onMinted:        opts.OnMinted,
		callTimeout:     opts.CallTimeout,
		metrics:         opts.Metrics,
		logger:          logger.With("component", "wallet_controller"),
		baseCtx:         ctx,
		cancel:          cancel,
		session:         Session{ProviderPresent: present},
		op:              MintOperation{Status: MintIdle},
	}
}

// Session returns a copy of the current session.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Operation returns a copy of the most recent mint operation.
func (c *Controller) Operation() MintOperation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.op
}

// Counter returns the mirrored minted count.
func (c *Controller) Counter() uint64 {
	return c.counter.Value()
}

// Snapshot returns session, counter and operation together.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Session:   c.session,
		Counter:   c.counter.Value(),
		Operation: c.op,
	}
}

// RestoreSession picks up an account the provider has already authorized,
// without prompting. With no authorized account the session stays disconnected.
func (c *Controller) RestoreSession(ctx context.Context) (Session, error) {
	const op = "restore_session"
	if c.provider == nil {
		return c.Session(), c.reject(op, KindProviderMissing, errors.New("no wallet provider detected, install a wallet"))
	}

	var accounts []string
	if err := c.request(ctx, MethodAccounts, &accounts); err != nil {
		return c.Session(), c.reject(op, KindAuthorizationRejected, fmt.Errorf("failed to read authorized accounts: %w", err))
	}

	if len(accounts) == 0 {
		if prev := c.clearAccount(); prev != "" {
			c.logger.InfoContext(ctx, "wallet authorization revoked", "account", prev)
		} else {
			c.logger.InfoContext(ctx, "no authorized account found")
		}
		c.recordSession(op, "disconnected")
		return c.Session(), nil
	}

	c.setAccount(accounts[0])
	c.logger.InfoContext(ctx, "found an authorized account",
		"account", accounts[0],
		"authorized_count", len(accounts),
	)
	c.recordSession(op, "connected")
	c.afterConnect(ctx)
	return c.Session(), nil
}

// Connect asks the provider to authorize an account. The provider may prompt
// the user, who may refuse; refusal leaves the session disconnected.
func (c *Controller) Connect(ctx context.Context) (Session, error) {
	const op = "connect"
	if c.provider == nil {
		return c.Session(), c.reject(op, KindProviderMissing, errors.New("no wallet provider detected, install a wallet"))
	}

	var accounts []string
	if err := c.request(ctx, MethodRequestAccounts, &accounts); err != nil {
		return c.Session(), c.reject(op, KindAuthorizationRejected, err)
	}
	if len(accounts) == 0 {
		return c.Session(), c.reject(op, KindAuthorizationRejected, errors.New("provider approved no accounts"))
	}

	c.setAccount(accounts[0])
	c.logger.InfoContext(ctx, "connected", "account", accounts[0])
	c.recordSession(op, "connected")
	c.afterConnect(ctx)
	return c.Session(), nil
}

// CheckNetwork reads the provider's chain and compares it with the required one.
// A mismatch, or a chain that cannot be read, disables minting until the next
// successful check.
func (c *Controller) CheckNetwork(ctx context.Context) (bool, error) {
	const op = "check_network"
	if c.provider == nil {
		return false, c.reject(op, KindProviderMissing, errors.New("no wallet provider detected, install a wallet"))
	}

	var chainID string
	if err := c.request(ctx, MethodChainID, &chainID); err != nil {
		c.setNetwork("", false)
		return false, c.reject(op, KindWrongNetwork, fmt.Errorf("failed to read chain id: %w", err))
	}

	ok := SameChain(chainID, c.requiredChainID)
	c.setNetwork(chainID, ok)
	if !ok {
		c.recordSession(op, "wrong_network")
		return false, c.reject(op, KindWrongNetwork,
			fmt.Errorf("provider is on chain %s, switch to chain %s", chainID, c.requiredChainID))
	}

	c.logger.DebugContext(ctx, "on required network", "chain_id", chainID)
	c.recordSession(op, "ok")
	return true, nil
}

// SubmitMint runs a mint to completion: request a signature, wait for the
// transaction to be mined, then re-read the counter. On a guard failure the
// returned operation is Idle and nothing is sent.
func (c *Controller) SubmitMint(ctx context.Context) (MintOperation, error) {
	op, err := c.beginMint(ctx)
	if err != nil {
		return op, err
	}
	return c.finishMint(ctx, op)
}

// StartMint is SubmitMint with the guards and signature request transition done
// synchronously; the rest runs in the background. The channel receives the
// terminal operation and is then closed.
func (c *Controller) StartMint(ctx context.Context) (MintOperation, <-chan MintOperation, error) {
	op, err := c.beginMint(ctx)
	if err != nil {
		return op, nil, err
	}
	done := make(chan MintOperation, 1)
	go func() {
		defer close(done)
		final, _ := c.finishMint(ctx, op)
		done <- final
	}()
	return op, done, nil
}

// SubscribeToMintEvents registers onMinted for every mint event emitted by the
// contract. The counter is updated before onMinted runs. The subscription lives
// until ctx is done, the handle is cancelled, or Close is called.
func (c *Controller) SubscribeToMintEvents(ctx context.Context, onMinted func(MintEvent)) (Subscription, error) {
	if c.binding == nil {
		return nil, newError(KindProviderMissing, "subscribe_mint_events", errors.New("no contract binding configured"))
	}

	sub, err := c.binding.WatchMinted(ctx, func(ev MintEvent) {
		c.observeEvent(ev)
		if onMinted != nil {
			onMinted(ev)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to mint events: %w", err)
	}

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "subscribed to mint events")
	return sub, nil
}

// Close cancels every subscription the controller created.
func (c *Controller) Close() {
	c.cancel()

	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.subscribed = false
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	c.logger.Info("wallet controller closed", "subscriptions", len(subs))
}

func (c *Controller) beginMint(ctx context.Context) (MintOperation, error) {
	const op = "submit_mint"
	idle := MintOperation{Status: MintIdle}

	if c.provider == nil || c.binding == nil {
		return idle, c.rejectMint(op, KindProviderMissing, errors.New("no wallet provider detected, install a wallet"))
	}

	c.mu.Lock()
	sess := c.session
	current := c.op
	c.mu.Unlock()

	if !sess.Connected {
		return idle, c.rejectMint(op, KindNotConnected, errors.New("connect a wallet before minting"))
	}
	if !sess.OnRequiredNetwork {
		return idle, c.rejectMint(op, KindWrongNetwork,
			fmt.Errorf("switch to chain %s before minting", c.requiredChainID))
	}
	if current.Status.Active() {
		return current, c.rejectMint(op, KindMintInProgress, fmt.Errorf("mint %s is %s", current.ID, current.Status))
	}

	// The user can switch networks between connect and mint.
	checkCtx, cancel := c.bounded(ctx)
	ok, err := c.CheckNetwork(checkCtx)
	cancel()
	if !ok {
		c.recordMint(MintIdle, KindWrongNetwork)
		return idle, err
	}

	c.mu.Lock()
	if c.op.Status.Active() {
		current = c.op
		c.mu.Unlock()
		return current, c.rejectMint(op, KindMintInProgress, fmt.Errorf("mint %s is %s", current.ID, current.Status))
	}
	now := time.Now().UTC()
	c.op = MintOperation{
		ID:        uuid.NewString(),
		Status:    MintAwaitingSignature,
		Account:   c.session.Account,
		CreatedAt: now,
		UpdatedAt: now,
	}
	started := c.op
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "requesting mint signature",
		"operation_id", started.ID,
		"account", started.Account,
	)
	return started, nil
}

func (c *Controller) finishMint(ctx context.Context, started MintOperation) (MintOperation, error) {
	const op = "submit_mint"
	begin := time.Now()

	mintCtx, cancel := c.bounded(ctx)
	tx, err := c.binding.Mint(mintCtx, started.Account)
	cancel()
	if err != nil {
		return c.failMint(ctx, op, begin, KindAuthorizationRejected, fmt.Errorf("mint signature not granted: %w", err))
	}

	mining := c.transition(func(o *MintOperation) {
		o.Status = MintMining
		o.TxHash = tx.Hash
		o.ExplorerURL = c.explorerLink(tx.Hash)
	})
	c.logger.InfoContext(ctx, "mining, please wait",
		"operation_id", mining.ID,
		"tx_hash", mining.TxHash,
		"explorer_url", mining.ExplorerURL,
	)

	if err := c.binding.WaitMined(ctx, tx); err != nil {
		return c.failMint(ctx, op, begin, KindTransactionFailed, fmt.Errorf("mint transaction %s failed: %w", tx.Hash, err))
	}

	confirmed := c.transition(func(o *MintOperation) {
		o.Status = MintConfirmed
	})
	c.logger.InfoContext(ctx, "mined",
		"operation_id", confirmed.ID,
		"tx_hash", confirmed.TxHash,
		"explorer_url", confirmed.ExplorerURL,
	)
	c.recordMint(MintConfirmed, "")
	if c.metrics != nil {
		c.metrics.RecordMintDuration(string(MintConfirmed), time.Since(begin).Seconds())
	}

	c.refreshCounter(ctx)
	return confirmed, nil
}

func (c *Controller) failMint(ctx context.Context, op string, begin time.Time, kind Kind, cause error) (MintOperation, error) {
	e := newError(kind, op, cause)
	failed := c.transition(func(o *MintOperation) {
		o.Status = MintFailed
		o.Error = e.Error()
	})
	c.logger.ErrorContext(ctx, "mint failed",
		"operation_id", failed.ID,
		"tx_hash", failed.TxHash,
		"kind", kind,
		"error", cause,
	)
	c.recordMint(MintFailed, kind)
	if c.metrics != nil {
		c.metrics.RecordMintDuration(string(MintFailed), time.Since(begin).Seconds())
	}
	return failed, e
}

// bounded applies the call timeout, if any, to ctx.
func (c *Controller) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.callTimeout)
}

func (c *Controller) transition(fn func(*MintOperation)) MintOperation {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.op)
	c.op.UpdatedAt = time.Now().UTC()
	return c.op
}

// afterConnect runs the follow-ups of a successful restore or connect. Their
// failures are logged and reflected in the session, never returned.
func (c *Controller) afterConnect(ctx context.Context) {
	if _, err := c.CheckNetwork(ctx); err != nil {
		c.logger.WarnContext(ctx, "network check after connect failed", "error", err)
	}
	c.refreshCounter(ctx)
	c.ensureSubscribed(ctx)
}

// ensureSubscribed opens the controller's own event subscription exactly once.
func (c *Controller) ensureSubscribed(ctx context.Context) {
	if c.binding == nil {
		return
	}
	c.mu.Lock()
	if c.subscribed {
		c.mu.Unlock()
		return
	}
	c.subscribed = true
	c.mu.Unlock()

	if _, err := c.SubscribeToMintEvents(c.baseCtx, c.onMinted); err != nil {
		c.mu.Lock()
		c.subscribed = false
		c.mu.Unlock()
		c.logger.WarnContext(ctx, "mint event subscription unavailable", "error", err)
	}
}

func (c *Controller) refreshCounter(ctx context.Context) {
	if c.binding == nil {
		return
	}
	n, err := c.binding.TotalMinted(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to read minted count", "error", err)
		return
	}
	value, _ := c.counter.Observe(n)
	if c.metrics != nil {
		c.metrics.SetMintCounter(value)
	}
	c.logger.DebugContext(ctx, "minted count refreshed", "reported", n, "counter", value)
}

func (c *Controller) observeEvent(ev MintEvent) {
	value, advanced := c.counter.Observe(ev.TokenID)
	if c.metrics != nil {
		outcome := "stale"
		if advanced {
			outcome = "advanced"
			c.metrics.SetMintCounter(value)
		}
		c.metrics.RecordMintEvent(outcome)
	}
	c.logger.Debug("mint event received",
		"minter", ev.Minter,
		"token_id", ev.TokenID,
		"counter", value,
		"advanced", advanced,
	)
}

func (c *Controller) request(ctx context.Context, method string, result interface{}) error {
	if err := c.provider.Request(ctx, method, result); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

func (c *Controller) setAccount(account string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.Account = account
	c.session.Connected = true
}

// clearAccount drops a previously authorized account and returns it.
func (c *Controller) clearAccount() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.session.Account
	c.session.Account = ""
	c.session.Connected = false
	c.session.OnRequiredNetwork = false
	return prev
}

func (c *Controller) setNetwork(chainID string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.ChainID = chainID
	c.session.OnRequiredNetwork = ok
}

func (c *Controller) explorerLink(hash string) string {
	if c.explorerURL == "" || hash == "" {
		return ""
	}
	return c.explorerURL + "/tx/" + hash
}

// reject logs and returns a session-level failure.
func (c *Controller) reject(op string, kind Kind, cause error) error {
	e := newError(kind, op, cause)
	c.logger.Warn("wallet operation rejected", "op", op, "kind", kind, "error", cause)
	c.recordSession(op, string(kind))
	return e
}

// rejectMint logs and returns a mint guard failure.
func (c *Controller) rejectMint(op string, kind Kind, cause error) error {
	e := newError(kind, op, cause)
	c.logger.Warn("mint rejected", "kind", kind, "error", cause)
	c.recordMint(MintIdle, kind)
	return e
}

func (c *Controller) recordSession(op, result string) {
	if c.metrics != nil {
		c.metrics.RecordSessionOperation(op, result)
	}
}

func (c *Controller) recordMint(status MintStatus, kind Kind) {
	if c.metrics != nil {
		c.metrics.RecordMintOperation(string(status), string(kind))
	}
}
