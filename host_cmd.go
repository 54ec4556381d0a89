/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"time"

	"github.com/Seednode/junta/client"
	"github.com/Seednode/junta/protocol"
	"github.com/spf13/cobra"
)

// newHostCmd runs the authoritative host driver as a standalone client,
// for sessions where no browser host is available.
func newHostCmd(cfg *Config) *cobra.Command {
	var (
		serverURL string
		wait      bool
	)

	cmd := &cobra.Command{
		Use:           "host",
		Short:         "Run a headless authoritative host against a relay server.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.minPlayers < 1 {
				return fmt.Errorf("invalid minimum player count: %d", cfg.minPlayers)
			}

			ctx := cmd.Context()

			var host *client.Host
			shim := client.NewShim(serverURL, nil, func(env protocol.Envelope) {
				host.Handle(env)
			})
			host = client.NewHost(shim, cfg.minPlayers, !wait)

			created := make(chan struct{}, 1)
			host.OnSessionCreated = func(code string) {
				fmt.Printf("Session created: %s\n", code)
				select {
				case created <- struct{}{}:
				default:
				}
			}
			host.OnError = func(err error) {
				logf(cfg, "Host: %s", err.Error())
			}

			go shim.Run(ctx)
			defer shim.Close()

			// Sends are fire-and-forget and the dial may still be in
			// flight, so keep asking until the relay answers. A stray
			// duplicate leaves an orphan session for the reaper.
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()

			host.CreateSession()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-created:
					<-ctx.Done()
					return nil
				case <-ticker.C:
					host.CreateSession()
				}
			}
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&serverURL, "server", "ws://localhost:8080/ws", "relay server websocket endpoint")
	fs.IntVar(&cfg.minPlayers, "min-players", cfg.minPlayers, "minimum player count before the game auto-begins")
	fs.BoolVar(&wait, "wait", false, "do not auto-begin when the lobby fills; wait for manual start")

	return cmd
}
