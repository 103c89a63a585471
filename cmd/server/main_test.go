package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	natspkg "github.com/brojonat/nftmint/service/nats"
	"github.com/brojonat/nftmint/service/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testContract = "0x1234567890AbcdEF1234567890aBcdef12345678"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestRelayMint(t *testing.T) {
	publisher := natspkg.NewMockPublisher()
	relay := relayMint(publisher, testContract, "https://rinkeby.etherscan.io/", func() uint64 { return 8 }, discardLogger())

	relay(wallet.MintEvent{Minter: "0xaaa", TokenID: 8, TxHash: "0xfeed", BlockNumber: 100})

	events := publisher.GetPublishedEventsForContract(testContract)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(8), events[0].TokenID)
	assert.Equal(t, uint64(8), events[0].Counter)
	assert.Equal(t, "https://rinkeby.etherscan.io/tx/0xfeed", events[0].ExplorerURL)
	assert.Equal(t, []string{natspkg.Subject(testContract)}, publisher.Subjects())

	relay(wallet.MintEvent{Minter: "0xaaa", TokenID: 8, TxHash: "0xfeed", BlockNumber: 100})
	assert.Equal(t, 1, publisher.GetPublishedEventCount())
	assert.Equal(t, 1, publisher.DuplicateCount())
}

func TestRelayMint_PublishErrorIsDropped(t *testing.T) {
	publisher := natspkg.NewMockPublisher()
	publisher.SetPublishError(errors.New("nats down"))
	relay := relayMint(publisher, testContract, "", func() uint64 { return 1 }, discardLogger())

	assert.NotPanics(t, func() { relay(wallet.MintEvent{TokenID: 1}) })
	assert.Equal(t, 0, publisher.GetPublishedEventCount())
}

func TestRelayMint_NoPublisher(t *testing.T) {
	relay := relayMint(nil, testContract, "", func() uint64 { return 1 }, discardLogger())
	assert.NotPanics(t, func() { relay(wallet.MintEvent{TokenID: 1}) })
}

func TestSetupLogger(t *testing.T) {
	assert.True(t, setupLogger("debug").Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, setupLogger("warn").Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, setupLogger("bogus").Enabled(context.Background(), slog.LevelInfo))
}
