package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/brojonat/nftmint/client"
	"github.com/brojonat/nftmint/service/wallet"
	"github.com/urfave/cli/v2"
)

func sessionCommands() *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Wallet session commands",
		Subcommands: []*cli.Command{
			sessionShowCommand(),
			sessionRestoreCommand(),
			sessionConnectCommand(),
			sessionNetworkCommand(),
		},
	}
}

func newClient(c *cli.Context) *client.Client {
	return client.NewClient(c.String("server-url"), nil, cliLogger(c))
}

func requestContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, c.Duration("timeout"))
}

func timeoutFlag(d time.Duration) cli.Flag {
	return &cli.DurationFlag{
		Name:    "timeout",
		Aliases: []string{"t"},
		Usage:   "Request timeout",
		Value:   d,
	}
}

func sessionShowCommand() *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Show the current session without touching the wallet",
		Flags: []cli.Flag{timeoutFlag(10 * time.Second)},
		Action: func(c *cli.Context) error {
			ctx, cancel := requestContext(c)
			defer cancel()

			sess, err := newClient(c).Session(ctx)
			if err != nil {
				return err
			}
			return printSession(c.App.Writer, sess, c.Bool("json"))
		},
	}
}

func sessionRestoreCommand() *cli.Command {
	return &cli.Command{
		Name:  "restore",
		Usage: "Pick up an already-authorized account without prompting",
		Flags: []cli.Flag{timeoutFlag(10 * time.Second)},
		Action: func(c *cli.Context) error {
			ctx, cancel := requestContext(c)
			defer cancel()

			sess, err := newClient(c).Restore(ctx)
			if err != nil {
				return describeError(err)
			}
			return printSession(c.App.Writer, sess, c.Bool("json"))
		},
	}
}

func sessionConnectCommand() *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "Request account authorization from the wallet",
		Flags: []cli.Flag{timeoutFlag(2 * time.Minute)},
		Action: func(c *cli.Context) error {
			ctx, cancel := requestContext(c)
			defer cancel()

			sess, err := newClient(c).Connect(ctx)
			if err != nil {
				return describeError(err)
			}
			return printSession(c.App.Writer, sess, c.Bool("json"))
		},
	}
}

func sessionNetworkCommand() *cli.Command {
	return &cli.Command{
		Name:  "network",
		Usage: "Re-check that the wallet is on the required network",
		Flags: []cli.Flag{timeoutFlag(10 * time.Second)},
		Action: func(c *cli.Context) error {
			ctx, cancel := requestContext(c)
			defer cancel()

			network, err := newClient(c).CheckNetwork(ctx)
			if err != nil {
				return describeError(err)
			}
			if c.Bool("json") {
				return printJSON(c.App.Writer, network)
			}
			if network.OnRequiredNetwork {
				fmt.Fprintf(c.App.Writer, "✓ On required network %s\n", network.RequiredChainID)
				return nil
			}
			fmt.Fprintf(c.App.Writer, "✗ Wallet is on chain %s, switch to %s to mint\n", network.ChainID, network.RequiredChainID)
			return nil
		},
	}
}

func mintCommand() *cli.Command {
	return &cli.Command{
		Name:  "mint",
		Usage: "Mint an NFT with the connected account",
		Flags: []cli.Flag{
			timeoutFlag(10 * time.Minute),
			&cli.BoolFlag{
				Name:    "wait",
				Aliases: []string{"w"},
				Usage:   "Block until the mint is confirmed or failed",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Polling interval when waiting",
				Value: 2 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := requestContext(c)
			defer cancel()

			cl := newClient(c)
			op, err := cl.Mint(ctx)
			if err != nil {
				return describeError(err)
			}

			jsonOutput := c.Bool("json")
			if !c.Bool("wait") {
				if jsonOutput {
					return printJSON(c.App.Writer, op)
				}
				fmt.Fprintf(c.App.Writer, "Mint %s started (%s)\n", op.ID, op.Status)
				return nil
			}

			final, err := cl.AwaitMint(ctx, op.ID, c.Duration("interval"), func(op *wallet.MintOperation) {
				if !jsonOutput {
					fmt.Fprintf(c.App.ErrWriter, "  %s\n", op.Status)
				}
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(c.App.Writer, final)
			}
			return printOperation(c.App.Writer, final)
		},
	}
}

func counterCommand() *cli.Command {
	return &cli.Command{
		Name:  "counter",
		Usage: "Show how many NFTs have been minted so far",
		Flags: []cli.Flag{timeoutFlag(10 * time.Second)},
		Action: func(c *cli.Context) error {
			ctx, cancel := requestContext(c)
			defer cancel()

			n, err := newClient(c).Counter(ctx)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(c.App.Writer, map[string]uint64{"counter": n})
			}
			fmt.Fprintf(c.App.Writer, "%d minted so far\n", n)
			return nil
		},
	}
}

// describeError adds a hint for the failures a user can act on.
func describeError(err error) error {
	switch client.KindOf(err) {
	case wallet.KindProviderMissing:
		return fmt.Errorf("%w\nhint: the server has no wallet provider; set ETH_RPC_URL", err)
	case wallet.KindAuthorizationRejected:
		return fmt.Errorf("%w\nhint: the wallet declined; approve the request and retry", err)
	case wallet.KindNotConnected:
		return fmt.Errorf("%w\nhint: run `nftmint session connect` first", err)
	case wallet.KindWrongNetwork:
		return fmt.Errorf("%w\nhint: switch the wallet network, then run `nftmint session network`", err)
	}
	return err
}

func printSession(w io.Writer, sess *client.Session, jsonOutput bool) error {
	if jsonOutput {
		return printJSON(w, sess)
	}
	if !sess.ProviderPresent {
		fmt.Fprintf(w, "No wallet provider detected\n")
		return nil
	}
	if sess.Connected {
		fmt.Fprintf(w, "Account:   %s\n", sess.Account)
	} else {
		fmt.Fprintf(w, "Account:   (not connected)\n")
	}
	if sess.ChainID != "" {
		fmt.Fprintf(w, "Chain:     %s (required: %t)\n", sess.ChainID, sess.OnRequiredNetwork)
	}
	fmt.Fprintf(w, "Can mint:  %t\n", sess.CanMint)
	fmt.Fprintf(w, "Minted:    %d\n", sess.Counter)
	return nil
}

func printOperation(w io.Writer, op *wallet.MintOperation) error {
	fmt.Fprintf(w, "Operation: %s\n", op.ID)
	fmt.Fprintf(w, "Status:    %s\n", op.Status)
	if op.TxHash != "" {
		fmt.Fprintf(w, "Tx:        %s\n", op.TxHash)
	}
	if op.ExplorerURL != "" {
		fmt.Fprintf(w, "Explorer:  %s\n", op.ExplorerURL)
	}
	if op.Status == wallet.MintFailed {
		return fmt.Errorf("mint failed: %s", op.Error)
	}
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
