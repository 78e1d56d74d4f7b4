package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func demoSnapshot() Snapshot {
	return Snapshot{
		UserID: "u1",
		Wallets: []Wallet{
			{ID: "cash", Name: "Cash", Currency: "USD", InitialAmount: dec("500")},
			{ID: "bank", Name: "Bank Account", Currency: "USD", InitialAmount: dec("5000")},
		},
		Categories: []Category{
			{ID: "salary", Name: "Salary", Type: Income, Emoji: "💰"},
			{ID: "food", Name: "Food & Dining", Type: Expense, Emoji: "🍔", Color: "#f97316"},
			{ID: "rent", Name: "Rent", Type: Expense},
		},
		Transactions: []Transaction{
			income("t1", "bank", "salary", "5000", at(2025, 1, 1, 9)),
			expense("t2", "cash", "food", "45.50", at(2025, 1, 2, 13)),
			expense("t3", "cash", "food", "10", at(2025, 1, 2, 8)),
			expense("t4", "bank", "", "3", at(2025, 1, 3, 8)),
		},
		Budgets: []Budget{
			{ID: "b1", CategoryID: "food", Amount: dec("50"), StartDate: NewDate(2025, 1, 1), EndDate: NewDate(2025, 1, 31)},
			{ID: "b2", CategoryID: "gone", Amount: dec("10"), StartDate: NewDate(2025, 1, 1), EndDate: NewDate(2025, 1, 31)},
		},
	}
}

func TestBuildWalletViews(t *testing.T) {
	views, err := BuildWalletViews(demoSnapshot())
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "444.50", views[0].Balance.StringFixed(2))
	assert.Equal(t, "9997.00", views[1].Balance.StringFixed(2))
}

func TestBuildCategoryViews(t *testing.T) {
	views, err := BuildCategoryViews(demoSnapshot())
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, 2, views[1].Count)
	assert.Equal(t, "55.50", views[1].Total.StringFixed(2))
	assert.Zero(t, views[2].Count)

	in, out := SplitByType(views)
	assert.Len(t, in, 1)
	assert.Len(t, out, 2)
}

func TestBuildBudgetViews(t *testing.T) {
	views, err := BuildBudgetViews(demoSnapshot())
	require.NoError(t, err)
	require.Len(t, views, 2)

	food := views[0]
	assert.Equal(t, "Food & Dining", food.CategoryName)
	assert.Equal(t, "🍔", food.CategoryEmoji)
	assert.True(t, food.Progress.Exceeded)
	assert.Equal(t, "5.50", food.Progress.OverBy.StringFixed(2))

	orphan := views[1]
	assert.Equal(t, "Uncategorized", orphan.CategoryName)
	assert.Equal(t, "📁", orphan.CategoryEmoji)
	assert.True(t, orphan.Progress.Spent.IsZero())
}

func TestBuildTransactionViewsNewestFirst(t *testing.T) {
	views := BuildTransactionViews(demoSnapshot(), 0)
	require.Len(t, views, 4)
	ids := []string{views[0].ID, views[1].ID, views[2].ID, views[3].ID}
	assert.Equal(t, []string{"t4", "t2", "t3", "t1"}, ids)

	assert.Equal(t, "Uncategorized", views[0].CategoryName)
	assert.Equal(t, "Bank Account", views[0].WalletName)
	assert.Equal(t, "Food & Dining", views[1].CategoryName)
	assert.Equal(t, "USD", views[1].Currency)

	limited := BuildTransactionViews(demoSnapshot(), 2)
	assert.Len(t, limited, 2)
}

func TestSortNewestFirstTieBreaks(t *testing.T) {
	day := at(2025, 5, 1, 0)
	txs := []Transaction{
		{ID: "a", Date: day, CreatedAt: day.Add(time.Minute)},
		{ID: "c", Date: day, CreatedAt: day.Add(time.Hour)},
		{ID: "b", Date: day, CreatedAt: day.Add(time.Minute)},
	}
	SortNewestFirst(txs)
	assert.Equal(t, "c", txs[0].ID)
	assert.Equal(t, "b", txs[1].ID)
	assert.Equal(t, "a", txs[2].ID)
}

func TestGroupByDay(t *testing.T) {
	groups := GroupByDay(BuildTransactionViews(demoSnapshot(), HistoryLimit))
	require.Len(t, groups, 3)
	assert.Equal(t, NewDate(2025, 1, 3), groups[0].Date)
	assert.Len(t, groups[1].Items, 2)
	assert.Equal(t, NewDate(2025, 1, 1), groups[2].Date)
	assert.Empty(t, GroupByDay(nil))
}

func TestBuildDashboard(t *testing.T) {
	s := demoSnapshot()
	d, err := BuildDashboard(s)
	require.NoError(t, err)
	assert.Equal(t, 2, d.WalletCount)
	assert.Len(t, d.Wallets, 2)
	assert.Len(t, d.Recent, 4)
	assert.Equal(t, "10441.50", d.Totals.TotalBalance.StringFixed(2))
	assert.True(t, d.Totals.HasIncome())

	for i := 0; i < 10; i++ {
		s.Transactions = append(s.Transactions, expense("x", "cash", "", "1", at(2024, 1, 1, 0)))
	}
	d, err = BuildDashboard(s)
	require.NoError(t, err)
	assert.Len(t, d.Recent, RecentLimit)
}
