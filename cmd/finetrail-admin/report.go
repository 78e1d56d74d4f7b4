package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"finetrail/internal/core"
)

func reportCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print dashboard totals, wallet balances and budget progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			snap, err := e.app.Service.Snapshot(ctx, e.userID)
			if err != nil {
				return fmt.Errorf("load ledger: %w", err)
			}
			view, err := core.BuildDashboard(snap)
			if err != nil {
				return fmt.Errorf("build dashboard: %w", err)
			}
			budgets, err := core.BuildBudgetViews(snap)
			if err != nil {
				return fmt.Errorf("build budgets: %w", err)
			}
			return renderReport(cmd.OutOrStdout(), e.userID, view, budgets, reportCurrency(snap.Wallets))
		},
	}
}

func reportCurrency(wallets []core.Wallet) string {
	if len(wallets) > 0 && wallets[0].Currency != "" {
		return wallets[0].Currency
	}
	return "USD"
}

func renderReport(out io.Writer, userID string, view core.DashboardView, budgets []core.BudgetView, currency string) error {
	t := view.Totals
	rate := "n/a"
	if t.HasIncome() {
		rate = core.FormatPercent(t.SavingsRate.Decimal)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Ledger of %s\n\n", userID)
	fmt.Fprintf(w, "Balance\t%s\n", core.FormatMoney(t.TotalBalance, currency))
	fmt.Fprintf(w, "Income\t%s\n", core.FormatMoney(t.TotalIncome, currency))
	fmt.Fprintf(w, "Expenses\t%s\n", core.FormatMoney(t.TotalExpense, currency))
	fmt.Fprintf(w, "Net savings\t%s\n", core.FormatMoney(t.NetSavings, currency))
	fmt.Fprintf(w, "Savings rate\t%s\n", rate)

	fmt.Fprintf(w, "\nWallets (%d)\n", view.WalletCount)
	if len(view.Wallets) == 0 {
		fmt.Fprintln(w, "  none")
	}
	for _, wv := range view.Wallets {
		fmt.Fprintf(w, "  %s\t%s\t%s\n", wv.Name, wv.Type.Label(), core.FormatMoney(wv.Balance, wv.Currency))
	}

	fmt.Fprintf(w, "\nBudgets (%d)\n", len(budgets))
	if len(budgets) == 0 {
		fmt.Fprintln(w, "  none")
	}
	for _, b := range budgets {
		p := b.Progress
		status := core.FormatMoney(p.Remaining, currency) + " left"
		if p.Exceeded {
			status = "over by " + core.FormatMoney(p.OverBy, currency)
		}
		name := strings.TrimSpace(b.CategoryEmoji + " " + b.CategoryName)
		fmt.Fprintf(w, "  %s\t%s / %s\t%s\t%s\n", name,
			core.FormatMoney(p.Spent, currency), core.FormatMoney(p.Limit, currency),
			core.FormatPercent(p.Percentage), status)
	}
	return w.Flush()
}
