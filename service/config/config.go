package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Wallet provider configuration. An empty EthRPCURL means no wallet is
	// installed; the server still starts and reports it.
	EthRPCURL          string
	RequiredChainID    string
	KeystorePath       string
	KeystorePassphrase string
	RPCTimeout         time.Duration

	// Contract configuration
	ContractAddress string

	// NATS configuration
	NATSURL string

	// Page links
	ExplorerURL   string
	CollectionURL string
	TwitterHandle string
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Wallet provider configuration
	cfg.EthRPCURL = os.Getenv("ETH_RPC_URL")
	cfg.RequiredChainID = getEnvOrDefault("REQUIRED_CHAIN_ID", "0x4")
	if _, ok := math.ParseBig256(cfg.RequiredChainID); !ok {
		errs = append(errs, fmt.Errorf("REQUIRED_CHAIN_ID: invalid chain id %q", cfg.RequiredChainID))
	}
	cfg.KeystorePath = os.Getenv("KEYSTORE_PATH")
	cfg.KeystorePassphrase = os.Getenv("KEYSTORE_PASSPHRASE")

	rpcTimeout, err := parseDuration("RPC_TIMEOUT", "30s")
	if err != nil {
		errs = append(errs, err)
	} else if rpcTimeout < time.Second {
		errs = append(errs, fmt.Errorf("RPC_TIMEOUT: must be at least 1s, got %s", rpcTimeout))
	} else {
		cfg.RPCTimeout = rpcTimeout
	}

	// Contract configuration
	cfg.ContractAddress = os.Getenv("CONTRACT_ADDRESS")
	if cfg.ContractAddress == "" {
		errs = append(errs, fmt.Errorf("CONTRACT_ADDRESS is required"))
	} else if !common.IsHexAddress(cfg.ContractAddress) {
		errs = append(errs, fmt.Errorf("CONTRACT_ADDRESS: invalid address %q", cfg.ContractAddress))
	}

	// NATS configuration
	cfg.NATSURL = getEnvOrDefault("NATS_URL", "nats://localhost:4222")

	// Page links
	cfg.ExplorerURL = getEnvOrDefault("EXPLORER_URL", "https://rinkeby.etherscan.io")
	cfg.CollectionURL = os.Getenv("COLLECTION_URL")
	cfg.TwitterHandle = getEnvOrDefault("TWITTER_HANDLE", "_buildspace")

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.ContractAddress == "" {
		errs = append(errs, fmt.Errorf("ContractAddress is required"))
	} else if !common.IsHexAddress(c.ContractAddress) {
		errs = append(errs, fmt.Errorf("ContractAddress is not a hex address"))
	}

	if _, ok := math.ParseBig256(c.RequiredChainID); !ok || c.RequiredChainID == "" {
		errs = append(errs, fmt.Errorf("RequiredChainID is invalid"))
	}

	if c.KeystorePassphrase != "" && c.KeystorePath == "" {
		errs = append(errs, fmt.Errorf("KeystorePassphrase is set without KeystorePath"))
	}

	if c.RPCTimeout < time.Second {
		errs = append(errs, fmt.Errorf("RPCTimeout must be at least 1 second"))
	}

	if c.ExplorerURL == "" {
		errs = append(errs, fmt.Errorf("ExplorerURL is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}
