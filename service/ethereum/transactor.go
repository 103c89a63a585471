package ethereum

import (
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common/math"
)

// NewTransactor decrypts the keystore file at keyfile and returns a signer for chainID.
func NewTransactor(keyfile, passphrase string, chainID *big.Int) (*bind.TransactOpts, error) {
	f, err := os.Open(keyfile)
	if err != nil {
		return nil, fmt.Errorf("failed to open keystore %s: %w", keyfile, err)
	}
	defer f.Close()

	opts, err := bind.NewTransactorWithChainID(f, passphrase, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt keystore %s: %w", keyfile, err)
	}
	return opts, nil
}

// ParseChainID parses a hex ("0x4") or decimal ("4") chain id.
func ParseChainID(s string) (*big.Int, error) {
	id, ok := math.ParseBig256(s)
	if !ok || s == "" {
		return nil, fmt.Errorf("invalid chain id %q", s)
	}
	return id, nil
}
