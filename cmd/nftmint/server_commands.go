package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"
)

// healthReport joins the liveness probe with the wallet readiness the server reports.
type healthReport struct {
	ServerURL         string `json:"server_url"`
	Healthy           bool   `json:"healthy"`
	ProviderPresent   bool   `json:"provider_present"`
	Connected         bool   `json:"connected"`
	OnRequiredNetwork bool   `json:"on_required_network"`
	CanMint           bool   `json:"can_mint"`
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check server liveness and whether its wallet session can mint",
		Flags: []cli.Flag{timeoutFlag(5 * time.Second)},
		Action: func(c *cli.Context) error {
			serverURL := c.String("server-url")
			if serverURL == "" {
				return fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
			}

			ctx, cancel := requestContext(c)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL+"/health", nil)
			if err != nil {
				return fmt.Errorf("failed to build health request: %w", err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned unhealthy status: %d", resp.StatusCode)
			}

			sess, err := newClient(c).Session(ctx)
			if err != nil {
				return fmt.Errorf("server is up but the session is unreadable: %w", err)
			}

			report := healthReport{
				ServerURL:         serverURL,
				Healthy:           true,
				ProviderPresent:   sess.ProviderPresent,
				Connected:         sess.Connected,
				OnRequiredNetwork: sess.OnRequiredNetwork,
				CanMint:           sess.CanMint,
			}
			if c.Bool("json") {
				return printJSON(c.App.Writer, report)
			}

			w := c.App.Writer
			fmt.Fprintf(w, "✓ Server is healthy\n")
			fmt.Fprintf(w, "  URL:                 %s\n", report.ServerURL)
			fmt.Fprintf(w, "  Provider present:    %t\n", report.ProviderPresent)
			fmt.Fprintf(w, "  Connected:           %t\n", report.Connected)
			fmt.Fprintf(w, "  On required network: %t\n", report.OnRequiredNetwork)
			if !report.CanMint {
				fmt.Fprintf(w, "  Minting is unavailable until the wallet is connected on the required network\n")
			}
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "nftmint %s (commit %s, built %s)\n", version, commit, date)
			return nil
		},
	}
}
