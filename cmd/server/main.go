package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/nftmint/service/config"
	"github.com/brojonat/nftmint/service/ethereum"
	"github.com/brojonat/nftmint/service/metrics"
	natspkg "github.com/brojonat/nftmint/service/nats"
	"github.com/brojonat/nftmint/service/server"
	"github.com/brojonat/nftmint/service/wallet"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"required_chain_id", cfg.RequiredChainID,
		"contract", cfg.ContractAddress,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics collector
	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

	// Keystore signer. Without one the session can connect but every mint is refused.
	var signer *bind.TransactOpts
	var accounts []common.Address
	if cfg.KeystorePath != "" {
		chainID, err := ethereum.ParseChainID(cfg.RequiredChainID)
		if err != nil {
			logger.Error("invalid required chain id", "error", err)
			os.Exit(1)
		}
		signer, err = ethereum.NewTransactor(cfg.KeystorePath, cfg.KeystorePassphrase, chainID)
		if err != nil {
			logger.Error("failed to load keystore", "path", cfg.KeystorePath, "error", err)
			os.Exit(1)
		}
		accounts = []common.Address{signer.From}
		logger.Info("loaded keystore signer", "account", signer.From.Hex())
	}

	// Wallet provider. An absent provider is a valid state the page reports.
	var provider wallet.Provider
	var binding wallet.Binding
	detectCtx, detectCancel := context.WithTimeout(ctx, cfg.RPCTimeout)
	ethProvider, present := ethereum.DetectProvider(detectCtx, cfg.EthRPCURL, accounts, metricsCollector, logger)
	detectCancel()
	if present {
		defer ethProvider.Close()

		ec := ethclient.NewClient(ethProvider.Client())
		nft, err := ethereum.NewEpicNFT(common.HexToAddress(cfg.ContractAddress), ec)
		if err != nil {
			logger.Error("failed to bind contract", "error", err)
			os.Exit(1)
		}
		provider = ethProvider
		binding = ethereum.NewBinding(nft, ec, signer, metricsCollector, logger)
		logger.Info("wallet provider detected", "url", cfg.EthRPCURL)
	} else {
		logger.Warn("no wallet provider detected, minting disabled", "url", cfg.EthRPCURL)
	}

	// NATS publisher for mint events
	var publisher natspkg.Publisher
	natsPublisher, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger)
	if err != nil {
		logger.Warn("NATS publisher unavailable, mint events will not be published", "error", err)
	} else {
		publisher = natsPublisher
		defer natsPublisher.Close()
	}

	// The relay reads the controller's counter, which exists only after construction.
	var ctl *wallet.Controller
	relay := relayMint(publisher, cfg.ContractAddress, cfg.ExplorerURL, func() uint64 { return ctl.Counter() }, logger)
	ctl = wallet.NewController(provider, binding, wallet.Options{
		RequiredChainID: cfg.RequiredChainID,
		ExplorerURL:     cfg.ExplorerURL,
		OnMinted:        relay,
		CallTimeout:     cfg.RPCTimeout,
		Metrics:         metricsCollector,
		Logger:          logger,
	})
	defer ctl.Close()

	// Pick up an already-authorized account without prompting.
	if present {
		restoreCtx, restoreCancel := context.WithTimeout(ctx, cfg.RPCTimeout)
		sess, err := ctl.RestoreSession(restoreCtx)
		restoreCancel()
		if err != nil {
			logger.Warn("failed to restore session", "error", err)
		} else {
			logger.Info("session restored", "connected", sess.Connected, "account", sess.Account)
		}
	}

	// SSE publisher for browser streaming
	ssePublisher, err := server.NewSSEPublisher(cfg.NATSURL, logger)
	if err != nil {
		logger.Warn("SSE publisher unavailable, streaming disabled", "error", err)
	}

	// Initialize HTTP server
	httpServer := server.New(cfg.ServerAddr, cfg, ctl, ssePublisher, metricsCollector, logger)
	if err := httpServer.WithTemplates(); err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	logger.Info("server initialized, all dependencies ready",
		"eth_rpc", cfg.EthRPCURL,
		"provider_present", present,
		"nats_url", cfg.NATSURL,
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// relayMint returns an event sink that publishes mint events to NATS.
// Publish failures are logged and dropped; the counter is unaffected.
func relayMint(publisher natspkg.Publisher, contract, explorerURL string, counter func() uint64, logger *slog.Logger) func(wallet.MintEvent) {
	return func(ev wallet.MintEvent) {
		if publisher == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		event := natspkg.FromWalletEvent(contract, ev, counter(), explorerURL)
		if err := publisher.PublishMint(ctx, event); err != nil {
			logger.Error("failed to publish mint event",
				"token_id", ev.TokenID,
				"minter", ev.Minter,
				"error", err,
			)
		}
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
