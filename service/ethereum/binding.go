package ethereum

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/brojonat/nftmint/service/metrics"
	"github.com/brojonat/nftmint/service/wallet"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrNoSigner is returned by Mint when no keystore signer is configured.
var ErrNoSigner = errors.New("no signer configured")

// Backend is what Binding needs from a node: contract calls, transactions,
// log subscriptions and receipts. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Binding implements wallet.Binding on top of EpicNFT.
type Binding struct {
	nft     *EpicNFT
	backend Backend
	signer  *bind.TransactOpts
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]*types.Transaction
}

// NewBinding creates a binding. signer may be nil, in which case Mint always
// fails as a refused signature.
func NewBinding(nft *EpicNFT, backend Backend, signer *bind.TransactOpts, m *metrics.Metrics, logger *slog.Logger) *Binding {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Binding{
		nft:     nft,
		backend: backend,
		signer:  signer,
		metrics: m,
		logger:  logger.With("component", "epic_nft_binding", "contract", nft.Address().Hex()),
		pending: make(map[string]*types.Transaction),
	}
}

// TotalMinted reads getTotalNFTsMintedSoFar.
func (b *Binding) TotalMinted(ctx context.Context) (uint64, error) {
	start := time.Now()
	total, err := b.nft.TotalMinted(ctx)
	b.record("total_minted", err, start)
	if err != nil {
		return 0, fmt.Errorf("failed to read total minted: %w", err)
	}
	if !total.IsUint64() {
		return 0, fmt.Errorf("total minted %s overflows uint64", total)
	}
	return total.Uint64(), nil
}

// Mint signs and sends makeAnEpicNFT from the given account. The configured
// signer must control that account.
func (b *Binding) Mint(ctx context.Context, from string) (wallet.TxHandle, error) {
	if b.signer == nil {
		return wallet.TxHandle{}, ErrNoSigner
	}
	if !common.IsHexAddress(from) || common.HexToAddress(from) != b.signer.From {
		return wallet.TxHandle{}, fmt.Errorf("signer %s cannot sign for account %s", b.signer.From.Hex(), from)
	}

	opts := *b.signer
	opts.Context = ctx

	start := time.Now()
	tx, err := b.nft.Mint(&opts)
	b.record("mint", err, start)
	if err != nil {
		return wallet.TxHandle{}, fmt.Errorf("failed to send mint transaction: %w", err)
	}

	hash := tx.Hash().Hex()
	b.mu.Lock()
	b.pending[hash] = tx
	b.mu.Unlock()

	b.logger.InfoContext(ctx, "mint transaction sent",
		"tx_hash", hash,
		"from", opts.From.Hex(),
		"nonce", tx.Nonce(),
	)
	return wallet.TxHandle{Hash: hash}, nil
}

// WaitMined blocks until the transaction is included. A receipt with a failed
// status is reported as an error.
func (b *Binding) WaitMined(ctx context.Context, h wallet.TxHandle) error {
	b.mu.Lock()
	tx, ok := b.pending[h.Hash]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown transaction %s", h.Hash)
	}
	defer func() {
		b.mu.Lock()
		delete(b.pending, h.Hash)
		b.mu.Unlock()
	}()

	start := time.Now()
	receipt, err := bind.WaitMined(ctx, b.backend, tx)
	b.record("wait_mined", err, start)
	if err != nil {
		return fmt.Errorf("failed waiting for %s: %w", h.Hash, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("transaction %s reverted in block %s", h.Hash, receipt.BlockNumber)
	}

	b.logger.InfoContext(ctx, "mint transaction mined",
		"tx_hash", h.Hash,
		"block_number", receipt.BlockNumber,
		"gas_used", receipt.GasUsed,
	)
	return nil
}

// WatchMinted subscribes to NewEpicNFTMinted and calls sink for each decoded
// event until the subscription is cancelled or ctx is done. Logs that fail to
// decode are skipped.
func (b *Binding) WatchMinted(ctx context.Context, sink func(wallet.MintEvent)) (wallet.Subscription, error) {
	logs, sub, err := b.nft.WatchMinted(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to watch mint events: %w", err)
	}

	go func() {
		for {
			select {
			case lg := <-logs:
				ev, err := decodeMinted(b.nft, lg)
				if err != nil {
					b.logger.Warn("skipping undecodable mint log", "tx_hash", lg.TxHash.Hex(), "error", err)
					continue
				}
				sink(ev)
			case err, ok := <-sub.Err():
				if ok && err != nil {
					b.logger.Error("mint event subscription ended", "error", err)
				}
				return
			case <-ctx.Done():
				sub.Unsubscribe()
				return
			}
		}
	}()
	return sub, nil
}

func decodeMinted(nft *EpicNFT, lg types.Log) (wallet.MintEvent, error) {
	parsed, err := nft.ParseMinted(lg)
	if err != nil {
		return wallet.MintEvent{}, err
	}
	if !parsed.TokenId.IsUint64() {
		return wallet.MintEvent{}, fmt.Errorf("token id %s overflows uint64", parsed.TokenId)
	}
	return wallet.MintEvent{
		Minter:      parsed.Sender.Hex(),
		TokenID:     parsed.TokenId.Uint64(),
		TxHash:      lg.TxHash.Hex(),
		BlockNumber: lg.BlockNumber,
	}, nil
}

func (b *Binding) record(method string, err error, start time.Time) {
	if b.metrics != nil {
		b.metrics.RecordContractCall(method, err, time.Since(start).Seconds())
	}
}
