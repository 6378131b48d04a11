package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/rollcall/internal/ui"
	"github.com/alfredjeanlab/rollcall/internal/verify"
)

var signCmd = &cobra.Command{
	Use:   "sign <body-file>",
	Short: "Compute the webhook signature for a payload",
	Long: `Compute the webhook signature for a payload file ("-" reads stdin).

With --post the signed body is sent to the server's webhook endpoint and the
result is printed.`,
	GroupID: "system",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, _ := cmd.Flags().GetString("secret")
		if secret == "" {
			return fmt.Errorf("no webhook secret (set --secret or ROLLCALL_WEBHOOK_SECRET)")
		}
		post, _ := cmd.Flags().GetBool("post")

		body, err := readBody(args[0])
		if err != nil {
			return err
		}
		sig := verify.New(secret).Sign(body)

		if !post {
			fmt.Println(sig)
			return nil
		}

		res, err := apiClient.Webhook(context.Background(), body, sig)
		if err != nil {
			return fmt.Errorf("posting webhook: %w", err)
		}
		if jsonOutput {
			return printJSON(res)
		}
		fmt.Printf("%s: %s\n", verify.SignatureHeader, ui.RenderMuted(sig))
		fmt.Printf("Outcome: %s\n", ui.RenderAccent(res.Outcome))
		if res.Row != nil {
			fmt.Printf("Roll:    %s\n", res.Row.Roll)
		}
		return nil
	},
}

func readBody(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return data, nil
}

func init() {
	signCmd.Flags().String("secret", os.Getenv("ROLLCALL_WEBHOOK_SECRET"), "webhook shared secret")
	signCmd.Flags().Bool("post", false, "post the signed body to the webhook endpoint")
}
