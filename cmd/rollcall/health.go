package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/rollcall/internal/client"
	"github.com/alfredjeanlab/rollcall/internal/server"
	"github.com/alfredjeanlab/rollcall/internal/ui"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server and delivery channel health over gRPC",
	Long: `Check server and delivery channel health over gRPC.

Exits non-zero when the server is not serving, or with --channel when the
delivery session is not ready.`,
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		requireChannel, _ := cmd.Flags().GetBool("channel")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		hc, err := client.NewHealthClient(grpcAddr)
		if err != nil {
			return fmt.Errorf("connecting to %s: %w", grpcAddr, err)
		}
		defer hc.Close()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		overall, err := hc.Check(ctx, "")
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}
		chState, err := hc.Check(ctx, server.ChannelHealthService)
		if err != nil {
			return fmt.Errorf("checking channel health: %w", err)
		}

		if jsonOutput {
			if err := printJSON(map[string]string{"server": overall, "channel": chState}); err != nil {
				return err
			}
		} else {
			fmt.Printf("Server:  %s\n", ui.RenderStatus(overall, overall == "SERVING"))
			fmt.Printf("Channel: %s\n", ui.RenderStatus(chState, chState == "SERVING"))
		}

		if overall != "SERVING" {
			return fmt.Errorf("unhealthy: %s", overall)
		}
		if requireChannel && chState != "SERVING" {
			return fmt.Errorf("delivery channel not ready: %s", chState)
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().Bool("channel", false, "fail when the delivery channel is not ready")
	healthCmd.Flags().Duration("timeout", 5*time.Second, "health check timeout")
}
