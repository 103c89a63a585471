package wallet

import (
	"context"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
)

// JSON-RPC methods the controller issues against the wallet provider.
const (
	MethodAccounts        = "eth_accounts"
	MethodRequestAccounts = "eth_requestAccounts"
	MethodChainID         = "eth_chainId"
)

// Provider is the wallet provider the controller talks to.
// Request issues a single JSON-RPC call and decodes the result into result.
type Provider interface {
	Request(ctx context.Context, method string, result interface{}) error
}

// Binding is the typed client for the deployed NFT contract.
type Binding interface {
	// TotalMinted reads the authoritative number of tokens minted so far.
	TotalMinted(ctx context.Context) (uint64, error)

	// Mint asks the signer for from to sign and send a mint transaction.
	// An error here means the signature was refused or could not be produced.
	Mint(ctx context.Context, from string) (TxHandle, error)

	// WaitMined blocks until tx is included. A reverted transaction is an error.
	WaitMined(ctx context.Context, tx TxHandle) error

	// WatchMinted invokes sink once per mint event until the returned
	// subscription is cancelled.
	WatchMinted(ctx context.Context, sink func(MintEvent)) (Subscription, error)
}

// Subscription is a cancellable event registration.
type Subscription interface {
	Unsubscribe()
}

// TxHandle references a submitted transaction.
type TxHandle struct {
	Hash string `json:"hash"`
}

// MintEvent is one contract-emitted mint notification.
type MintEvent struct {
	Minter      string `json:"minter"`
	TokenID     uint64 `json:"token_id"`
	TxHash      string `json:"tx_hash,omitempty"`
	BlockNumber uint64 `json:"block_number,omitempty"`
}

// DetectProvider reports whether p is a usable provider. A nil interface or a
// typed nil pointer both mean no wallet is installed.
func DetectProvider(p Provider) (Provider, bool) {
	if p == nil {
		return nil, false
	}
	v := reflect.ValueOf(p)
	if v.Kind() == reflect.Ptr && v.IsNil() {
		return nil, false
	}
	return p, true
}

// SameChain compares two chain identifiers numerically, so "0x4", "0x04" and "4"
// are equal. Identifiers that do not parse as numbers are compared case-insensitively.
func SameChain(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	x, okA := math.ParseBig256(a)
	y, okB := math.ParseBig256(b)
	if okA && okB {
		return x.Cmp(y) == 0
	}
	return strings.EqualFold(a, b)
}
