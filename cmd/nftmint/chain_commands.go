package main

import (
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/nftmint/service/ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/urfave/cli/v2"
)

// chainCommands read the contract directly, bypassing the server.
func chainCommands() *cli.Command {
	return &cli.Command{
		Name:  "chain",
		Usage: "Read the NFT contract directly over JSON-RPC",
		Subcommands: []*cli.Command{
			chainCounterCommand(),
			chainTokenURICommand(),
			chainWatchCommand(),
		},
	}
}

func dialContract(c *cli.Context) (*ethereum.EpicNFT, *ethclient.Client, error) {
	rpcURL := c.String("eth-rpc-url")
	if rpcURL == "" {
		return nil, nil, fmt.Errorf("eth-rpc-url is required (set ETH_RPC_URL env var or use --eth-rpc-url)")
	}
	addr := c.String("contract-address")
	if !common.IsHexAddress(addr) {
		return nil, nil, fmt.Errorf("contract-address %q is not a hex address", addr)
	}

	ec, err := ethclient.DialContext(c.Context, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial %s: %w", rpcURL, err)
	}
	nft, err := ethereum.NewEpicNFT(common.HexToAddress(addr), ec)
	if err != nil {
		ec.Close()
		return nil, nil, err
	}
	return nft, ec, nil
}

func chainCounterCommand() *cli.Command {
	return &cli.Command{
		Name:  "counter",
		Usage: "Read getTotalNFTsMintedSoFar from the contract",
		Flags: []cli.Flag{timeoutFlag(15 * time.Second)},
		Action: func(c *cli.Context) error {
			nft, ec, err := dialContract(c)
			if err != nil {
				return err
			}
			defer ec.Close()

			ctx, cancel := requestContext(c)
			defer cancel()

			total, err := nft.TotalMinted(ctx)
			if err != nil {
				return fmt.Errorf("failed to read minted count: %w", err)
			}
			if c.Bool("json") {
				return printJSON(c.App.Writer, map[string]interface{}{
					"contract_address": nft.Address().Hex(),
					"counter":          total,
				})
			}
			fmt.Fprintf(c.App.Writer, "%s minted so far on %s\n", total, nft.Address().Hex())
			return nil
		},
	}
}

func chainTokenURICommand() *cli.Command {
	return &cli.Command{
		Name:      "token-uri",
		Usage:     "Read a token's metadata URI",
		ArgsUsage: "TOKEN_ID",
		Flags:     []cli.Flag{timeoutFlag(15 * time.Second)},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("token id is required")
			}
			tokenID, ok := new(big.Int).SetString(c.Args().First(), 10)
			if !ok || tokenID.Sign() < 0 {
				return fmt.Errorf("invalid token id %q", c.Args().First())
			}

			nft, ec, err := dialContract(c)
			if err != nil {
				return err
			}
			defer ec.Close()

			ctx, cancel := requestContext(c)
			defer cancel()

			uri, err := nft.TokenURI(ctx, tokenID)
			if err != nil {
				return fmt.Errorf("failed to read token uri: %w", err)
			}
			if c.Bool("json") {
				return printJSON(c.App.Writer, map[string]string{"token_id": tokenID.String(), "token_uri": uri})
			}
			fmt.Fprintln(c.App.Writer, uri)
			return nil
		},
	}
}

func chainWatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Watch NewEpicNFTMinted logs (requires a websocket RPC URL)",
		Action: func(c *cli.Context) error {
			nft, ec, err := dialContract(c)
			if err != nil {
				return err
			}
			defer ec.Close()

			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer cancel()

			logs, sub, err := nft.WatchMinted(ctx)
			if err != nil {
				return fmt.Errorf("failed to subscribe to mint logs: %w", err)
			}
			defer sub.Unsubscribe()

			if !c.Bool("json") {
				fmt.Fprintf(c.App.ErrWriter, "Watching %s... (Ctrl+C to stop)\n\n", nft.Address().Hex())
			}
			for {
				select {
				case lg := <-logs:
					minted, err := nft.ParseMinted(lg)
					if err != nil {
						fmt.Fprintf(c.App.ErrWriter, "Error decoding log: %v\n", err)
						continue
					}
					if c.Bool("json") {
						printJSON(c.App.Writer, map[string]interface{}{
							"minter":       minted.Sender.Hex(),
							"token_id":     minted.TokenId,
							"tx_hash":      lg.TxHash.Hex(),
							"block_number": lg.BlockNumber,
						})
						continue
					}
					fmt.Fprintf(c.App.Writer, "#%s minted by %s in %s\n", minted.TokenId, minted.Sender.Hex(), lg.TxHash.Hex())
				case err := <-sub.Err():
					if err == nil {
						return nil
					}
					return fmt.Errorf("subscription ended: %w", err)
				case <-ctx.Done():
					return nil
				}
			}
		},
	}
}
