package wallet

import (
	"errors"
	"fmt"
)

// Kind classifies a controller failure so callers can decide how to present it.
type Kind string

const (
	// KindProviderMissing means no wallet provider is available. User-correctable
	// by installing or configuring a wallet.
	KindProviderMissing Kind = "provider_missing"

	// KindAuthorizationRejected means the user declined a connect or signature prompt,
	// or the provider failed while asking.
	KindAuthorizationRejected Kind = "authorization_rejected"

	// KindWrongNetwork means the provider is on a chain other than the required one.
	KindWrongNetwork Kind = "wrong_network"

	// KindTransactionFailed means the mint transaction reverted or the provider
	// failed while it was mining.
	KindTransactionFailed Kind = "transaction_failed"

	// KindNotConnected means an operation that needs an account ran before one was authorized.
	KindNotConnected Kind = "not_connected"

	// KindMintInProgress means another mint operation has not reached a terminal state.
	KindMintInProgress Kind = "mint_in_progress"
)

// Error is returned by every Controller operation that fails.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, ErrWrongNetwork) works
// regardless of Op and the wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// Sentinels for errors.Is.
var (
	ErrProviderMissing       = &Error{Kind: KindProviderMissing}
	ErrAuthorizationRejected = &Error{Kind: KindAuthorizationRejected}
	ErrWrongNetwork          = &Error{Kind: KindWrongNetwork}
	ErrTransactionFailed     = &Error{Kind: KindTransactionFailed}
	ErrNotConnected          = &Error{Kind: KindNotConnected}
	ErrMintInProgress        = &Error{Kind: KindMintInProgress}
)

// KindOf returns the Kind of err, or "" if err is not a controller error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
