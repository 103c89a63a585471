package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MockProvider is a mock implementation of Provider for testing.
// Responses are configured per method; every request is recorded.
type MockProvider struct {
	mu        sync.RWMutex
	responses map[string]interface{}
	errors    map[string]error
	hung      map[string]bool
	calls     []string
}

// NewMockProvider creates a mock provider with no authorized accounts.
// eth_requestAccounts and eth_chainId fail until configured.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		responses: map[string]interface{}{MethodAccounts: []string{}},
		errors:    make(map[string]error),
		hung:      make(map[string]bool),
	}
}

// Request records the call and decodes the configured response into result.
func (m *MockProvider) Request(ctx context.Context, method string, result interface{}) error {
	m.mu.Lock()
	m.calls = append(m.calls, method)
	resp, hasResp := m.responses[method]
	err := m.errors[method]
	hung := m.hung[method]
	m.mu.Unlock()

	if hung {
		<-ctx.Done()
		return ctx.Err()
	}
	if err != nil {
		return err
	}
	if !hasResp {
		return fmt.Errorf("method %s not supported", method)
	}
	// Round-trip through JSON like a real transport would.
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, result)
}

// SetAccounts configures the eth_accounts response.
func (m *MockProvider) SetAccounts(accounts ...string) {
	m.set(MethodAccounts, nonNil(accounts))
}

// SetRequestAccounts configures the accounts the user approves on eth_requestAccounts.
func (m *MockProvider) SetRequestAccounts(accounts ...string) {
	m.set(MethodRequestAccounts, nonNil(accounts))
}

// SetChainID configures the eth_chainId response.
func (m *MockProvider) SetChainID(chainID string) {
	m.set(MethodChainID, chainID)
}

// SetError makes method fail with err. A nil err clears it.
func (m *MockProvider) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errors, method)
		return
	}
	m.errors[method] = err
}

// Hang makes method block until the request's context is done, like an
// unresponsive node.
func (m *MockProvider) Hang(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hung[method] = true
}

// Calls returns the methods requested so far, in order.
func (m *MockProvider) Calls() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	calls := make([]string, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns how many times method was requested.
func (m *MockProvider) CallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (m *MockProvider) set(method string, v interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[method] = v
}

func nonNil(accounts []string) []string {
	if accounts == nil {
		return []string{}
	}
	return accounts
}

// MockBinding is a mock implementation of Binding for testing.
type MockBinding struct {
	mu          sync.RWMutex
	totalMinted uint64
	totalErr    error
	txHash      string
	mintErr     error
	waitErr     error
	waitGate    chan struct{}
	mintHung    bool
	watchErr    error
	mintCalls   []string
	waitCalls   int
	sinks       []func(MintEvent)
	subs        []*MockSubscription
}

// NewMockBinding creates a mock binding whose mints succeed with txHash.
func NewMockBinding(txHash string) *MockBinding {
	return &MockBinding{txHash: txHash}
}

// TotalMinted returns the configured count.
func (m *MockBinding) TotalMinted(ctx context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalMinted, m.totalErr
}

// Mint records the signer account and returns the configured hash or error.
func (m *MockBinding) Mint(ctx context.Context, from string) (TxHandle, error) {
	m.mu.Lock()
	m.mintCalls = append(m.mintCalls, from)
	hung := m.mintHung
	m.mu.Unlock()

	if hung {
		<-ctx.Done()
		return TxHandle{}, ctx.Err()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.mintErr != nil {
		return TxHandle{}, m.mintErr
	}
	return TxHandle{Hash: m.txHash}, nil
}

// WaitMined returns the configured error, first blocking on the gate if one is set.
func (m *MockBinding) WaitMined(ctx context.Context, tx TxHandle) error {
	m.mu.Lock()
	m.waitCalls++
	gate := m.waitGate
	err := m.waitErr
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// WatchMinted registers sink and returns a subscription handle.
func (m *MockBinding) WatchMinted(ctx context.Context, sink func(MintEvent)) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watchErr != nil {
		return nil, m.watchErr
	}
	m.sinks = append(m.sinks, sink)
	sub := &MockSubscription{}
	m.subs = append(m.subs, sub)
	return sub, nil
}

// Emit delivers ev to every live subscription.
func (m *MockBinding) Emit(ev MintEvent) {
	m.mu.RLock()
	sinks := make([]func(MintEvent), 0, len(m.sinks))
	for i, sink := range m.sinks {
		if !m.subs[i].Cancelled() {
			sinks = append(sinks, sink)
		}
	}
	m.mu.RUnlock()

	for _, sink := range sinks {
		sink(ev)
	}
}

// SetTotalMinted configures the TotalMinted response.
func (m *MockBinding) SetTotalMinted(n uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalMinted = n
	m.totalErr = err
}

// SetMintError makes Mint fail, as if the signature was refused.
func (m *MockBinding) SetMintError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mintErr = err
}

// SetWaitError makes WaitMined fail, as if the transaction reverted.
func (m *MockBinding) SetWaitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waitErr = err
}

// HangMint makes Mint block until its context is done, like a node that never
// answers the send.
func (m *MockBinding) HangMint() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mintHung = true
}

// HoldMining makes WaitMined block until the returned function is called.
func (m *MockBinding) HoldMining() (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	m.waitGate = gate
	m.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// SetWatchError makes WatchMinted fail.
func (m *MockBinding) SetWatchError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchErr = err
}

// MintCalls returns the accounts Mint was called with.
func (m *MockBinding) MintCalls() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	calls := make([]string, len(m.mintCalls))
	copy(calls, m.mintCalls)
	return calls
}

// SubscriptionCount returns how many subscriptions were ever opened.
func (m *MockBinding) SubscriptionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

// Subscriptions returns every subscription handle handed out.
func (m *MockBinding) Subscriptions() []*MockSubscription {
	m.mu.RLock()
	defer m.mu.RUnlock()
	subs := make([]*MockSubscription, len(m.subs))
	copy(subs, m.subs)
	return subs
}

// MockSubscription records whether it was cancelled.
type MockSubscription struct {
	mu        sync.Mutex
	cancelled bool
}

// Unsubscribe marks the subscription cancelled.
func (s *MockSubscription) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
}

// Cancelled reports whether Unsubscribe was called.
func (s *MockSubscription) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}
