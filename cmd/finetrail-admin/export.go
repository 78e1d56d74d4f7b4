package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"finetrail/internal/export"
	"finetrail/internal/log"
)

func exportCmd(e *env) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the user's transactions to a CSV file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			snap, err := e.app.Service.Snapshot(ctx, e.userID)
			if err != nil {
				return fmt.Errorf("load ledger: %w", err)
			}
			if out == "" {
				out = export.Filename(e.userID, time.Now())
			}
			n, err := export.WriteFile(out, snap)
			if err != nil {
				return fmt.Errorf("export transactions: %w", err)
			}
			e.logger.InfoContext(ctx, "Transactions exported",
				log.FieldUserID, e.userID, log.FieldOperation, log.OpExport, log.FieldCount, n)
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d transactions to %s\n", n, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "destination file (default finetrail-<user>-<date>.csv)")
	return cmd
}
