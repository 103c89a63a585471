package wallet

import (
	"sync"
	"time"
)

// Session is the wallet-session state owned by a Controller.
type Session struct {
	ProviderPresent   bool   `json:"provider_present"`
	Account           string `json:"account"`
	Connected         bool   `json:"connected"`
	ChainID           string `json:"chain_id,omitempty"`
	OnRequiredNetwork bool   `json:"on_required_network"`
}

// CanMint reports whether the session satisfies the precondition for a mint.
func (s Session) CanMint() bool {
	return s.ProviderPresent && s.Connected && s.OnRequiredNetwork
}

// MintStatus is the lifecycle state of a MintOperation.
type MintStatus string

const (
	MintIdle              MintStatus = "idle"
	MintAwaitingSignature MintStatus = "awaiting_signature"
	MintMining            MintStatus = "mining"
	MintConfirmed         MintStatus = "confirmed"
	MintFailed            MintStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s MintStatus) Terminal() bool {
	return s == MintConfirmed || s == MintFailed
}

// Active reports whether an operation in this state blocks a new mint.
func (s MintStatus) Active() bool {
	return s == MintAwaitingSignature || s == MintMining
}

// MintOperation tracks one user-initiated mint.
type MintOperation struct {
	ID          string     `json:"id,omitempty"`
	Status      MintStatus `json:"status"`
	Account     string     `json:"account,omitempty"`
	TxHash      string     `json:"tx_hash,omitempty"`
	ExplorerURL string     `json:"explorer_url,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at,omitempty"`
}

// Counter mirrors the contract's minted count. It never decreases.
type Counter struct {
	mu    sync.RWMutex
	value uint64
}

// Observe folds n into the counter and returns the resulting value and whether it changed.
// Values at or below the current one are ignored.
func (c *Counter) Observe(n uint64) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= c.value {
		return c.value, false
	}
	c.value = n
	return c.value, true
}

// Value returns the current count.
func (c *Counter) Value() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Snapshot is a point-in-time view of the controller for rendering.
type Snapshot struct {
	Session   Session       `json:"session"`
	Counter   uint64        `json:"counter"`
	Operation MintOperation `json:"operation"`
}
