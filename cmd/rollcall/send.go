package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/rollcall/internal/client"
	"github.com/alfredjeanlab/rollcall/internal/model"
	"github.com/alfredjeanlab/rollcall/internal/ui"
)

var sendCmd = &cobra.Command{
	Use:   "send <roll-number> <contact>",
	Short: "Send a confirmation for a registration by hand",
	Long: `Send a confirmation for a registration by hand.

The registrant's details are given with --note flags using the same keys as
the payment notes (name, whatsapp_number, dob, guardian_name, address). The
ledger is not touched; only the messages are sent.`,
	GroupID: "registrations",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		notes, _ := cmd.Flags().GetStringToString("note")
		req := &client.ManualSendRequest{
			RollNumber: args[0],
			Contact:    args[1],
			Notes:      model.Notes(notes),
		}
		req.OrderID, _ = cmd.Flags().GetString("order-id")
		req.PaymentID, _ = cmd.Flags().GetString("payment-id")
		req.Currency, _ = cmd.Flags().GetString("currency")
		req.Method, _ = cmd.Flags().GetString("method")
		req.Email, _ = cmd.Flags().GetString("email")
		if cmd.Flags().Changed("amount") {
			amount, _ := cmd.Flags().GetInt64("amount")
			req.Amount = &amount
		}

		resp, err := apiClient.ManualSend(context.Background(), req)
		if err != nil {
			return fmt.Errorf("sending confirmation: %w", err)
		}

		if jsonOutput {
			return printJSON(resp)
		}
		fmt.Printf("%s %s (%d messages, delivery %s)\n",
			ui.RenderOK("Sent"), resp.Delivery.To, resp.Delivery.Sent, ui.RenderMuted(resp.Delivery.ID))
		return nil
	},
}

func init() {
	sendCmd.Flags().StringToString("note", nil, "registrant detail as key=value (repeatable)")
	sendCmd.Flags().String("order-id", "", "order ID shown on the receipt")
	sendCmd.Flags().String("payment-id", "", "payment ID shown on the receipt")
	sendCmd.Flags().Int64("amount", 0, "amount in minor units (paise, cents)")
	sendCmd.Flags().String("currency", "", "ISO currency code")
	sendCmd.Flags().String("method", "", "payment method")
	sendCmd.Flags().String("email", "", "payer email")
}
