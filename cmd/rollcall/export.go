package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/rollcall/internal/client"
	"github.com/alfredjeanlab/rollcall/internal/model"
	"github.com/alfredjeanlab/rollcall/internal/store/postgres"
	ledgersync "github.com/alfredjeanlab/rollcall/internal/sync"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the ledger to stdout as JSONL or CSV",
	Long: `Write the ledger to stdout as JSONL or CSV.

Rows are read through the HTTP API unless --database-url is given, in which
case the ledger database is read directly.`,
	GroupID: "registrations",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		formatName, _ := cmd.Flags().GetString("format")
		format, err := ledgersync.ParseFormat(formatName)
		if err != nil {
			return err
		}

		var src ledgersync.RowLister = apiRows{apiClient}
		if dbURL, _ := cmd.Flags().GetString("database-url"); dbURL != "" {
			ledger, err := postgres.New(dbURL)
			if err != nil {
				return err
			}
			defer ledger.Close()
			src = ledger
		}

		if err := ledgersync.Export(context.Background(), src, format, os.Stdout); err != nil {
			return fmt.Errorf("exporting ledger: %w", err)
		}
		return nil
	},
}

// apiRows reads the ledger through the server's HTTP API.
type apiRows struct {
	c client.Client
}

func (a apiRows) ListRows(ctx context.Context) ([]*model.LedgerRow, error) {
	return a.c.ListRegistrations(ctx)
}

func init() {
	exportCmd.Flags().StringP("format", "f", "jsonl", "output format (jsonl or csv)")
	exportCmd.Flags().String("database-url", "", "read the ledger database directly")
}
