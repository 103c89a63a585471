package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/nftmint/service/wallet"
)

// sessionResponse is the JSON response for session routes.
type sessionResponse struct {
	wallet.Session
	CanMint bool   `json:"can_mint"`
	Counter uint64 `json:"counter"`
}

// networkResponse is the JSON response for POST /api/v1/session/network.
type networkResponse struct {
	OnRequiredNetwork bool   `json:"on_required_network"`
	ChainID           string `json:"chain_id,omitempty"`
	RequiredChainID   string `json:"required_chain_id"`
}

// counterResponse is the JSON response for GET /api/v1/counter.
type counterResponse struct {
	Counter uint64 `json:"counter"`
}

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error string      `json:"error"`
	Kind  wallet.Kind `json:"kind,omitempty"`
}

func toSessionResponse(ctl Controller, sess wallet.Session) sessionResponse {
	return sessionResponse{
		Session: sess,
		CanMint: sess.CanMint(),
		Counter: ctl.Counter(),
	}
}

// handleGetSession returns the current session without touching the provider.
// GET /api/v1/session
func handleGetSession(ctl Controller) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, toSessionResponse(ctl, ctl.Session()), http.StatusOK)
	})
}

// handleRestoreSession picks up an already-authorized account without prompting.
// POST /api/v1/session/restore
func handleRestoreSession(ctl Controller, timeout time.Duration, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		sess, err := ctl.RestoreSession(ctx)
		if err != nil {
			writeControllerError(w, r, err, logger)
			return
		}
		writeJSON(w, toSessionResponse(ctl, sess), http.StatusOK)
	})
}

// handleConnect asks the provider to authorize an account.
// POST /api/v1/session/connect
func handleConnect(ctl Controller, timeout time.Duration, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		sess, err := ctl.Connect(ctx)
		if err != nil {
			writeControllerError(w, r, err, logger)
			return
		}
		logger.InfoContext(r.Context(), "wallet connected", "account", sess.Account)
		writeJSON(w, toSessionResponse(ctl, sess), http.StatusOK)
	})
}

// handleCheckNetwork re-reads the provider's chain.
// POST /api/v1/session/network
func handleCheckNetwork(ctl Controller, requiredChainID string, timeout time.Duration, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		ok, err := ctl.CheckNetwork(ctx)
		if err != nil {
			writeControllerError(w, r, err, logger)
			return
		}
		writeJSON(w, networkResponse{
			OnRequiredNetwork: ok,
			ChainID:           ctl.Session().ChainID,
			RequiredChainID:   requiredChainID,
		}, http.StatusOK)
	})
}

// handleStartMint starts a mint and answers as soon as the signature has been
// requested. Progress is read back from GET /api/v1/mint.
// POST /api/v1/mint
func handleStartMint(ctl Controller, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The mint outlives this request. The controller bounds the network
		// check and signature request with its call timeout; mining has no deadline.
		ctx := context.WithoutCancel(r.Context())

		op, done, err := ctl.StartMint(ctx)
		if err != nil {
			writeControllerError(w, r, err, logger)
			return
		}

		go func() {
			final := <-done
			logger.Info("mint finished",
				"operation_id", final.ID,
				"status", final.Status,
				"tx_hash", final.TxHash,
			)
		}()

		logger.InfoContext(r.Context(), "mint started", "operation_id", op.ID, "account", op.Account)
		writeJSON(w, op, http.StatusAccepted)
	})
}

// handleGetOperation returns the most recent mint operation.
// GET /api/v1/mint
func handleGetOperation(ctl Controller) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, ctl.Operation(), http.StatusOK)
	})
}

// handleGetCounter returns the mirrored minted count.
// GET /api/v1/counter
func handleGetCounter(ctl Controller) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, counterResponse{Counter: ctl.Counter()}, http.StatusOK)
	})
}

// statusForKind maps a controller error kind to an HTTP status.
func statusForKind(kind wallet.Kind) int {
	switch kind {
	case wallet.KindProviderMissing:
		return http.StatusServiceUnavailable
	case wallet.KindAuthorizationRejected:
		return http.StatusForbidden
	case wallet.KindNotConnected, wallet.KindWrongNetwork, wallet.KindMintInProgress:
		return http.StatusConflict
	case wallet.KindTransactionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeControllerError writes a controller failure with its kind.
func writeControllerError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	kind := wallet.KindOf(err)
	status := statusForKind(kind)
	if status >= http.StatusInternalServerError && kind == "" {
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	} else {
		logger.DebugContext(r.Context(), "request rejected", "path", r.URL.Path, "kind", kind, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: err.Error(), Kind: kind})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(errorResponse{Error: message})
}
