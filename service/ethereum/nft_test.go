package ethereum

import (
	"math/big"
	"testing"

	"github.com/brojonat/nftmint/service/ethereum/contract"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testContract = common.HexToAddress("0x1234567890abcdef1234567890abcdef12345678")

func mintedLog(t *testing.T, nft *EpicNFT, sender common.Address, tokenID *big.Int) types.Log {
	t.Helper()
	ev, ok := nft.abi.Events[contract.EventMinted]
	require.True(t, ok)
	data, err := ev.Inputs.Pack(sender, tokenID)
	require.NoError(t, err)
	return types.Log{
		Address:     testContract,
		Topics:      []common.Hash{ev.ID},
		Data:        data,
		TxHash:      common.HexToHash("0xabc1"),
		BlockNumber: 42,
	}
}

func TestEpicNFT_ABI(t *testing.T) {
	nft, err := NewEpicNFT(testContract, nil)
	require.NoError(t, err)
	assert.Equal(t, testContract, nft.Address())

	for _, name := range []string{contract.MethodMint, contract.MethodTotalMinted, "tokenURI"} {
		_, ok := nft.abi.Methods[name]
		assert.True(t, ok, "missing method %s", name)
	}

	calldata, err := nft.PackMint()
	require.NoError(t, err)
	assert.Equal(t, crypto.Keccak256([]byte("makeAnEpicNFT()"))[:4], calldata)

	ev := nft.abi.Events[contract.EventMinted]
	assert.Equal(t, crypto.Keccak256Hash([]byte("NewEpicNFTMinted(address,uint256)")), ev.ID)
}

func TestEpicNFT_ParseMinted(t *testing.T) {
	nft, err := NewEpicNFT(testContract, nil)
	require.NoError(t, err)

	sender := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	lg := mintedLog(t, nft, sender, big.NewInt(7))

	parsed, err := nft.ParseMinted(lg)
	require.NoError(t, err)
	assert.Equal(t, sender, parsed.Sender)
	assert.Equal(t, int64(7), parsed.TokenId.Int64())
	assert.Equal(t, uint64(42), parsed.Raw.BlockNumber)

	ev, err := decodeMinted(nft, lg)
	require.NoError(t, err)
	assert.Equal(t, sender.Hex(), ev.Minter)
	assert.Equal(t, uint64(7), ev.TokenID)
	assert.Equal(t, lg.TxHash.Hex(), ev.TxHash)
	assert.Equal(t, uint64(42), ev.BlockNumber)
}

func TestEpicNFT_ParseMintedRejectsOtherEvents(t *testing.T) {
	nft, err := NewEpicNFT(testContract, nil)
	require.NoError(t, err)

	lg := mintedLog(t, nft, common.Address{}, big.NewInt(1))
	lg.Topics[0] = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	_, err = nft.ParseMinted(lg)
	assert.Error(t, err)

	lg.Topics = nil
	_, err = nft.ParseMinted(lg)
	assert.Error(t, err)
}

func TestDecodeMinted_Overflow(t *testing.T) {
	nft, err := NewEpicNFT(testContract, nil)
	require.NoError(t, err)

	huge := new(big.Int).Lsh(big.NewInt(1), 70)
	_, err = decodeMinted(nft, mintedLog(t, nft, common.Address{}, huge))
	assert.ErrorContains(t, err, "overflows uint64")
}
