package nats

import (
	"fmt"
	"strings"
	"time"

	"github.com/brojonat/nftmint/service/wallet"
)

// MintEvent represents a contract mint event published to NATS.
// This is published to the subject "mints.{contract_address}" in JetStream.
type MintEvent struct {
	// Contract and token identifiers
	ContractAddress string `json:"contract_address"`
	TokenID         uint64 `json:"token_id"`
	Minter          string `json:"minter"`

	// Chain location
	TxHash      string `json:"tx_hash,omitempty"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	ExplorerURL string `json:"explorer_url,omitempty"`

	// Counter as mirrored after the event was folded in
	Counter uint64 `json:"counter"`

	// Metadata
	PublishedAt time.Time `json:"published_at"`
}

// FromWalletEvent converts a controller mint event to a MintEvent for publishing.
// explorerURL may be empty.
func FromWalletEvent(contract string, ev wallet.MintEvent, counter uint64, explorerURL string) *MintEvent {
	event := &MintEvent{
		ContractAddress: contract,
		TokenID:         ev.TokenID,
		Minter:          ev.Minter,
		TxHash:          ev.TxHash,
		BlockNumber:     ev.BlockNumber,
		Counter:         counter,
		PublishedAt:     time.Now().UTC(),
	}
	if explorerURL != "" && ev.TxHash != "" {
		event.ExplorerURL = strings.TrimRight(explorerURL, "/") + "/tx/" + ev.TxHash
	}
	return event
}

// Subject returns the JetStream subject for a contract's mint events.
// Addresses are lowercased so checksummed and plain forms share a subject.
func Subject(contract string) string {
	return SubjectPrefix + strings.ToLower(contract)
}

// MsgID identifies a mint for JetStream deduplication. A token is minted once
// per contract, so a replayed chain log publishes nothing new.
func (e *MintEvent) MsgID() string {
	return fmt.Sprintf("%s/%d", strings.ToLower(e.ContractAddress), e.TokenID)
}
