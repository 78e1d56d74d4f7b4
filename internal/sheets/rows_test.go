package sheets

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finetrail/internal/core"
)

func demo() core.Snapshot {
	day := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	return core.Snapshot{
		UserID: "alice",
		Wallets: []core.Wallet{
			{ID: "cash", Name: "Cash", Type: core.Cash, Currency: "USD", InitialAmount: decimal.NewFromInt(500)},
			{ID: "bank", Name: "Bank Account", Type: core.Bank, Currency: "USD", InitialAmount: decimal.NewFromInt(5000)},
		},
		Categories: []core.Category{
			{ID: "food", Name: "Food & Dining", Type: core.Expense},
		},
		Transactions: []core.Transaction{
			{ID: "t1", WalletID: "bank", Type: core.Income, Amount: decimal.NewFromInt(5000), Date: day},
			{ID: "t2", WalletID: "cash", CategoryID: "food", Type: core.Expense, Amount: decimal.RequireFromString("45.5"),
				Date: day.Add(2 * time.Hour), Description: "Lunch", Tags: []string{"food", "lunch"}},
		},
	}
}

func TestTransactionRows(t *testing.T) {
	rows := TransactionRows(demo())

	require.Len(t, rows, 3)
	assert.Equal(t, TransactionHeader, rows[0])
	assert.Equal(t, []any{"2024-01-15", "expense", "Cash", "Food & Dining", "Lunch", "-45.50", "USD", "food, lunch"}, rows[1])
	assert.Equal(t, "Uncategorized", rows[2][3])
	assert.Equal(t, "5000.00", rows[2][5])
}

func TestTransactionRowsEmpty(t *testing.T) {
	rows := TransactionRows(core.Snapshot{UserID: "nobody"})
	assert.Equal(t, [][]any{TransactionHeader}, rows)
}

func TestSummaryRows(t *testing.T) {
	now := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	rows, err := SummaryRows(demo(), now)
	require.NoError(t, err)

	assert.Equal(t, []any{"Total balance", "10454.50"}, rows[4])
	assert.Equal(t, []any{"Savings rate", "99.1%"}, rows[5])
	assert.Equal(t, []any{"Wallets", 2}, rows[6])
	assert.Equal(t, []any{"Updated", "2024-02-01T08:00:00Z"}, rows[7])
	assert.Equal(t, []any{"Cash", "454.50"}, rows[len(rows)-2])
	assert.Equal(t, []any{"Bank Account", "10000.00"}, rows[len(rows)-1])
}

func TestSummaryRowsWithoutIncome(t *testing.T) {
	snap := demo()
	snap.Transactions = snap.Transactions[1:]
	rows, err := SummaryRows(snap, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []any{"Savings rate", "n/a"}, rows[5])
}

func TestSummaryRowsRejectsMalformed(t *testing.T) {
	snap := demo()
	snap.Transactions[0].Type = "transfer"
	_, err := SummaryRows(snap, time.Now())
	assert.Error(t, err)
}
