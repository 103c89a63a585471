// Package ethereum adapts go-ethereum to the wallet controller: a JSON-RPC
// provider, a keystore signer and a typed binding for the EpicNFT contract.
package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/brojonat/nftmint/service/ethereum/contract"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// EpicNFT is a high-level wrapper around the on-chain EpicNFT contract.
type EpicNFT struct {
	abi      abi.ABI
	address  common.Address
	contract *bind.BoundContract
}

// MintedLog is the decoded NewEpicNFTMinted event.
type MintedLog struct {
	Sender  common.Address
	TokenId *big.Int
	Raw     types.Log
}

// NewEpicNFT binds an already-deployed EpicNFT contract. backend may be nil
// when only log decoding is needed.
func NewEpicNFT(addr common.Address, backend bind.ContractBackend) (*EpicNFT, error) {
	parsed, err := abi.JSON(strings.NewReader(contract.EpicNFTABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse EpicNFT ABI: %w", err)
	}
	return &EpicNFT{
		abi:      parsed,
		address:  addr,
		contract: bind.NewBoundContract(addr, parsed, backend, backend, backend),
	}, nil
}

// Address returns the contract address.
func (n *EpicNFT) Address() common.Address {
	return n.address
}

// Mint sends a makeAnEpicNFT transaction signed by opts.
func (n *EpicNFT) Mint(opts *bind.TransactOpts) (*types.Transaction, error) {
	return n.contract.Transact(opts, contract.MethodMint)
}

// TotalMinted returns the number of tokens minted so far.
func (n *EpicNFT) TotalMinted(ctx context.Context) (*big.Int, error) {
	var out []interface{}
	err := n.contract.Call(&bind.CallOpts{Context: ctx}, &out, contract.MethodTotalMinted)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// TokenURI returns the metadata URI of a token.
func (n *EpicNFT) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	var out []interface{}
	err := n.contract.Call(&bind.CallOpts{Context: ctx}, &out, "tokenURI", tokenID)
	if err != nil {
		return "", err
	}
	return out[0].(string), nil
}

// WatchMinted subscribes to NewEpicNFTMinted logs. The caller decodes them with ParseMinted.
func (n *EpicNFT) WatchMinted(ctx context.Context) (chan types.Log, event.Subscription, error) {
	return n.contract.WatchLogs(&bind.WatchOpts{Context: ctx}, contract.EventMinted)
}

// ParseMinted decodes a NewEpicNFTMinted log.
func (n *EpicNFT) ParseMinted(log types.Log) (*MintedLog, error) {
	out := new(MintedLog)
	if err := n.contract.UnpackLog(out, contract.EventMinted, log); err != nil {
		return nil, err
	}
	out.Raw = log
	return out, nil
}

// PackMint returns the calldata of a makeAnEpicNFT call.
func (n *EpicNFT) PackMint() ([]byte, error) {
	return n.abi.Pack(contract.MethodMint)
}
