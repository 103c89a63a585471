package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	natspkg "github.com/brojonat/nftmint/service/nats"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

var errStreamDone = errors.New("stream done")

func sseCommands() *cli.Command {
	return &cli.Command{
		Name:  "sse",
		Usage: "Server-Sent Events (SSE) streaming commands",
		Subcommands: []*cli.Command{
			streamCommand(),
		},
	}
}

func streamCommand() *cli.Command {
	return &cli.Command{
		Name:  "stream",
		Usage: "Stream mint events via SSE (HTTP)",
		Description: `Stream mint events from the server as they are published.

Filters are jq expressions evaluated against each event; an event is printed
only when every filter returns a truthy value.

Example:
  nftmint sse stream --jq '.token_id > 100' --jq '.minter == "0xabc..."' --count 1`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "jq",
				Usage: "jq filter that must be truthy for an event to be printed (repeatable)",
			},
			&cli.IntFlag{
				Name:  "count",
				Usage: "Exit after this many matching events (0 streams forever)",
			},
		},
		Action: func(c *cli.Context) error {
			filter, err := compileFilters(c.StringSlice("jq"))
			if err != nil {
				return err
			}
			jsonOutput := c.Bool("json")
			limit := c.Int("count")

			// Create context that cancels on interrupt
			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)
			go func() {
				select {
				case <-sigChan:
					cancel()
				case <-ctx.Done():
				}
			}()

			matched := 0
			err = newClient(c).StreamMints(ctx, func(eventType string, data []byte) error {
				switch eventType {
				case "connected":
					if !jsonOutput {
						fmt.Fprintf(c.App.ErrWriter, "✓ Connected, streaming mints... (Ctrl+C to stop)\n\n")
					}
					return nil
				case "error":
					var info struct {
						Error string `json:"error"`
					}
					json.Unmarshal(data, &info)
					return fmt.Errorf("server error: %s", info.Error)
				case "mint":
				default:
					return nil
				}

				ok, event, err := filter.match(data)
				if err != nil {
					fmt.Fprintf(c.App.ErrWriter, "Error handling event: %v\n", err)
					return nil
				}
				if !ok {
					return nil
				}

				matched++
				if jsonOutput {
					fmt.Fprintln(c.App.Writer, string(data))
				} else {
					printMintEvent(c.App.Writer, event)
				}
				if limit > 0 && matched >= limit {
					return errStreamDone
				}
				return nil
			})
			if errors.Is(err, errStreamDone) {
				return nil
			}
			if err != nil {
				return err
			}
			if ctx.Err() != nil && !jsonOutput {
				fmt.Fprintf(c.App.ErrWriter, "\nDisconnected\n")
			}
			return nil
		},
	}
}

// mintFilter holds compiled jq filters; all must be truthy for a match.
type mintFilter []*gojq.Code

func compileFilters(filters []string) (mintFilter, error) {
	compiled := make(mintFilter, len(filters))
	for i, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		compiled[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
	}
	return compiled, nil
}

// match decodes a mint event and evaluates every filter against it.
func (f mintFilter) match(data []byte) (bool, natspkg.MintEvent, error) {
	var event natspkg.MintEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return false, event, err
	}
	if len(f) == 0 {
		return true, event, nil
	}

	// gojq runs on generic JSON values, not structs.
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return false, event, err
	}
	for _, code := range f {
		v, ok := code.Run(doc).Next()
		if !ok {
			return false, event, nil
		}
		if err, isErr := v.(error); isErr {
			return false, event, fmt.Errorf("jq filter error: %w", err)
		}
		if !isTruthy(v) {
			return false, event, nil
		}
	}
	return true, event, nil
}

// isTruthy checks if a jq result value is truthy.
// In jq, false and null are falsy, everything else is truthy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

func printMintEvent(w io.Writer, event natspkg.MintEvent) {
	fmt.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintf(w, "Token:      #%d\n", event.TokenID)
	fmt.Fprintf(w, "Minter:     %s\n", event.Minter)
	fmt.Fprintf(w, "Contract:   %s\n", event.ContractAddress)
	if event.TxHash != "" {
		fmt.Fprintf(w, "Tx:         %s\n", event.TxHash)
	}
	if event.ExplorerURL != "" {
		fmt.Fprintf(w, "Explorer:   %s\n", event.ExplorerURL)
	}
	if event.BlockNumber != 0 {
		fmt.Fprintf(w, "Block:      %d\n", event.BlockNumber)
	}
	fmt.Fprintf(w, "Minted:     %d so far\n", event.Counter)
	if !event.PublishedAt.IsZero() {
		fmt.Fprintf(w, "Published:  %s\n", event.PublishedAt.Format(time.RFC3339))
	}
	fmt.Fprintln(w)
}
