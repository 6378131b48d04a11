package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/rollcall/internal/model"
	"github.com/alfredjeanlab/rollcall/internal/ui"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List recorded registrations",
	GroupID: "registrations",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := apiClient.ListRegistrations(context.Background())
		if err != nil {
			return fmt.Errorf("listing registrations: %w", err)
		}
		if jsonOutput {
			return printJSON(rows)
		}
		printRowTable(rows)
		return nil
	},
}

func printRowTable(rows []*model.LedgerRow) {
	if len(rows) == 0 {
		fmt.Println(ui.RenderMuted("No registrations."))
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROLL\tNAME\tPHONE\tAMOUNT\tPAYMENT\tRECORDED")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Roll, r.Name, r.Phone, r.Amount.StringFixed(2), r.PaymentID,
			r.Timestamp.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()
	fmt.Printf("\n%d registrations\n", len(rows))
}
