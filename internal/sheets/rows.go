package sheets

import (
	"strings"
	"time"

	"finetrail/internal/core"
)

// TransactionHeader is the first row of the transactions range.
var TransactionHeader = []any{"Date", "Type", "Wallet", "Category", "Description", "Amount", "Currency", "Tags"}

// TransactionRows renders every transaction of snap, newest first, with a
// signed amount so the column sums to the net flow.
func TransactionRows(snap core.Snapshot) [][]any {
	views := core.BuildTransactionViews(snap, 0)
	rows := make([][]any, 0, len(views)+1)
	rows = append(rows, TransactionHeader)
	for _, v := range views {
		rows = append(rows, []any{
			core.DateOf(v.Date).String(),
			string(v.Type),
			v.WalletName,
			v.CategoryName,
			v.Description,
			v.SignedAmount().StringFixed(2),
			v.Currency,
			strings.Join(v.Tags, ", "),
		})
	}
	return rows
}

// SummaryRows renders the dashboard totals followed by one line per wallet.
func SummaryRows(snap core.Snapshot, now time.Time) ([][]any, error) {
	d, err := core.BuildDashboard(snap)
	if err != nil {
		return nil, err
	}
	rate := "n/a"
	if d.Totals.HasIncome() {
		rate = core.FormatPercent(d.Totals.SavingsRate.Decimal)
	}
	rows := [][]any{
		{"Metric", "Value"},
		{"Total income", d.Totals.TotalIncome.StringFixed(2)},
		{"Total expense", d.Totals.TotalExpense.StringFixed(2)},
		{"Net savings", d.Totals.NetSavings.StringFixed(2)},
		{"Total balance", d.Totals.TotalBalance.StringFixed(2)},
		{"Savings rate", rate},
		{"Wallets", d.WalletCount},
		{"Updated", now.UTC().Format(time.RFC3339)},
		{"", ""},
		{"Wallet", "Balance"},
	}
	for _, w := range d.Wallets {
		rows = append(rows, []any{w.Name, w.Balance.StringFixed(2)})
	}
	return rows, nil
}
