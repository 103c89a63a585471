// Package contract contains the ABI of the deployed EpicNFT collection contract.
package contract

// Method and event names on EpicNFT.
const (
	MethodMint        = "makeAnEpicNFT"
	MethodTotalMinted = "getTotalNFTsMintedSoFar"
	EventMinted       = "NewEpicNFTMinted"
)

// EpicNFTABI is the ABI of the EpicNFT contract. Only the members the minting
// page uses are included.
const EpicNFTABI = `[
	{
		"inputs": [],
		"name": "makeAnEpicNFT",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "getTotalNFTsMintedSoFar",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": false, "internalType": "address", "name": "sender",  "type": "address"},
			{"indexed": false, "internalType": "uint256", "name": "tokenId", "type": "uint256"}
		],
		"name": "NewEpicNFTMinted",
		"type": "event"
	},
	{
		"inputs": [{"internalType": "uint256", "name": "tokenId", "type": "uint256"}],
		"name": "tokenURI",
		"outputs": [{"internalType": "string", "name": "", "type": "string"}],
		"stateMutability": "view",
		"type": "function"
	}
]`
