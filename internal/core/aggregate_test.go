package core

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

func expense(id, wallet, category, amount string, when time.Time) Transaction {
	return Transaction{ID: id, WalletID: wallet, CategoryID: category, Type: Expense, Amount: dec(amount), Date: when}
}

func income(id, wallet, category, amount string, when time.Time) Transaction {
	return Transaction{ID: id, WalletID: wallet, CategoryID: category, Type: Income, Amount: dec(amount), Date: when}
}

func TestWalletBalanceScenario(t *testing.T) {
	w := Wallet{ID: "cash", InitialAmount: dec("500")}
	txs := []Transaction{
		income("t1", "cash", "salary", "5000", at(2025, 1, 1, 9)),
		expense("t2", "cash", "food", "45.50", at(2025, 1, 2, 13)),
	}
	got, err := ComputeWalletBalance(w, txs)
	require.NoError(t, err)
	assert.Equal(t, "5454.50", got.StringFixed(2))
}

func TestWalletBalanceIgnoresOtherWallets(t *testing.T) {
	w := Wallet{ID: "cash", InitialAmount: dec("10")}
	txs := []Transaction{
		expense("t1", "bank", "", "999", at(2025, 1, 1, 0)),
		income("t2", "cash", "", "5", at(2025, 1, 1, 0)),
	}
	got, err := ComputeWalletBalance(w, txs)
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("15")))
}

func TestWalletBalanceCanGoNegative(t *testing.T) {
	w := Wallet{ID: "cc", Type: CreditCard, InitialAmount: decimal.Zero}
	got, err := ComputeWalletBalance(w, []Transaction{expense("t1", "cc", "", "120.10", at(2025, 1, 1, 0))})
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("-120.10")))
}

func TestWalletBalanceFoldIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		w := Wallet{ID: "w", InitialAmount: decimal.New(rng.Int63n(1_000_00)-50_000, -2)}
		var txs []Transaction
		in, out := decimal.Zero, decimal.Zero
		for i := 0; i < rng.Intn(30); i++ {
			amt := decimal.New(rng.Int63n(100_000), -2)
			if rng.Intn(2) == 0 {
				txs = append(txs, Transaction{WalletID: "w", Type: Income, Amount: amt})
				in = in.Add(amt)
			} else {
				txs = append(txs, Transaction{WalletID: "w", Type: Expense, Amount: amt})
				out = out.Add(amt)
			}
		}
		got, err := ComputeWalletBalance(w, txs)
		require.NoError(t, err)
		assert.True(t, got.Equal(w.InitialAmount.Add(in).Sub(out)), "round %d", round)

		rng.Shuffle(len(txs), func(i, j int) { txs[i], txs[j] = txs[j], txs[i] })
		shuffled, err := ComputeWalletBalance(w, txs)
		require.NoError(t, err)
		assert.True(t, got.Equal(shuffled), "order must not matter")
	}
}

func TestWalletBalanceRejectsMalformed(t *testing.T) {
	w := Wallet{ID: "w"}
	_, err := ComputeWalletBalance(w, []Transaction{{WalletID: "w", Type: Expense, Amount: dec("-1")}})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ComputeWalletBalance(w, []Transaction{{WalletID: "w", Type: "refund", Amount: dec("1")}})
	assert.ErrorIs(t, err, ErrInvalidType)
}

func januaryBudget(limit string) Budget {
	return Budget{
		ID:         "b1",
		CategoryID: "food",
		Amount:     dec(limit),
		Period:     "monthly",
		StartDate:  NewDate(2025, 1, 1),
		EndDate:    NewDate(2025, 1, 31),
	}
}

func TestBudgetProgressScenario(t *testing.T) {
	txs := []Transaction{
		expense("t1", "cash", "food", "80", at(2025, 1, 5, 12)),
		expense("t2", "cash", "food", "150", at(2025, 1, 20, 18)),
	}
	p, err := ComputeBudgetProgress(januaryBudget("200"), txs)
	require.NoError(t, err)
	assert.True(t, p.Spent.Equal(dec("230")))
	assert.True(t, p.Remaining.IsZero())
	assert.True(t, p.Percentage.Equal(dec("100")))
	assert.True(t, p.Exceeded)
	assert.True(t, p.OverBy.Equal(dec("30")))
}

func TestBudgetProgressFilters(t *testing.T) {
	txs := []Transaction{
		expense("in", "cash", "food", "50", at(2025, 1, 10, 0)),
		expense("other-cat", "cash", "rent", "1000", at(2025, 1, 10, 0)),
		income("income", "cash", "food", "70", at(2025, 1, 10, 0)),
		expense("before", "cash", "food", "20", at(2024, 12, 31, 23)),
		expense("after", "cash", "food", "20", at(2025, 2, 1, 0)),
		expense("uncategorized", "cash", "", "20", at(2025, 1, 10, 0)),
	}
	p, err := ComputeBudgetProgress(januaryBudget("200"), txs)
	require.NoError(t, err)
	assert.True(t, p.Spent.Equal(dec("50")))
	assert.True(t, p.Remaining.Equal(dec("150")))
	assert.True(t, p.Percentage.Equal(dec("25")))
	assert.False(t, p.Exceeded)
	assert.True(t, p.OverBy.IsZero())
}

func TestBudgetProgressInclusiveBoundaries(t *testing.T) {
	txs := []Transaction{
		expense("start", "cash", "food", "10", at(2025, 1, 1, 0)),
		expense("end", "cash", "food", "15", time.Date(2025, 1, 31, 23, 59, 59, 0, time.UTC)),
	}
	p, err := ComputeBudgetProgress(januaryBudget("100"), txs)
	require.NoError(t, err)
	assert.True(t, p.Spent.Equal(dec("25")))
}

func TestBudgetProgressZeroLimit(t *testing.T) {
	p, err := ComputeBudgetProgress(januaryBudget("0"), nil)
	require.NoError(t, err)
	assert.True(t, p.Percentage.IsZero())
	assert.False(t, p.Exceeded)
	assert.True(t, p.Remaining.IsZero())

	p, err = ComputeBudgetProgress(januaryBudget("0"), []Transaction{expense("t", "cash", "food", "0.01", at(2025, 1, 2, 0))})
	require.NoError(t, err)
	assert.True(t, p.Percentage.Equal(dec("100")))
	assert.True(t, p.Exceeded)
	assert.True(t, p.OverBy.Equal(dec("0.01")))
}

func TestBudgetProgressRejectsMalformed(t *testing.T) {
	neg := januaryBudget("-1")
	_, err := ComputeBudgetProgress(neg, nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	inverted := januaryBudget("10")
	inverted.StartDate, inverted.EndDate = inverted.EndDate, inverted.StartDate
	_, err = ComputeBudgetProgress(inverted, nil)
	assert.ErrorIs(t, err, ErrInvalidDateRange)
	assert.True(t, IsValidation(err))
}

func TestBudgetProgressBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 100; round++ {
		b := januaryBudget(decimal.New(rng.Int63n(50_000), -2).String())
		var txs []Transaction
		for i := 0; i < rng.Intn(10); i++ {
			txs = append(txs, expense("t", "w", "food", decimal.New(rng.Int63n(20_000), -2).String(), at(2025, 1, 1+rng.Intn(31), 0)))
		}
		p, err := ComputeBudgetProgress(b, txs)
		require.NoError(t, err)
		assert.False(t, p.Spent.IsNegative())
		assert.True(t, p.Remaining.Equal(decimal.Max(b.Amount.Sub(p.Spent), decimal.Zero)))
		assert.False(t, p.Percentage.IsNegative())
		assert.True(t, p.Percentage.LessThanOrEqual(dec("100")))
		assert.Equal(t, p.Spent.GreaterThan(b.Amount), p.Exceeded)
	}
}

func TestCategoryTotals(t *testing.T) {
	c := Category{ID: "food", Type: Expense}
	txs := []Transaction{
		expense("t1", "cash", "food", "10", at(2020, 1, 1, 0)),
		expense("t2", "bank", "food", "15.25", at(2025, 6, 1, 0)),
		expense("t3", "bank", "rent", "900", at(2025, 6, 1, 0)),
		expense("t4", "bank", "", "1", at(2025, 6, 1, 0)),
	}
	got, err := ComputeCategoryTotals(c, txs)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Count)
	assert.True(t, got.Total.Equal(dec("25.25")))

	empty, err := ComputeCategoryTotals(Category{ID: "none"}, txs)
	require.NoError(t, err)
	assert.Zero(t, empty.Count)
	assert.True(t, empty.Total.IsZero())
}

func TestDashboardTotalsScenario(t *testing.T) {
	wallets := []Wallet{
		{ID: "cash", InitialAmount: dec("500")},
		{ID: "bank", InitialAmount: dec("5000")},
		{ID: "cc", InitialAmount: decimal.Zero},
	}
	txs := []Transaction{
		income("t1", "bank", "salary", "5000", at(2025, 1, 1, 0)),
		expense("t2", "cash", "food", "45.50", at(2025, 1, 2, 0)),
	}
	got, err := ComputeDashboardTotals(wallets, txs)
	require.NoError(t, err)
	assert.True(t, got.TotalIncome.Equal(dec("5000")))
	assert.True(t, got.TotalExpense.Equal(dec("45.50")))
	assert.True(t, got.NetSavings.Equal(dec("4954.50")))
	assert.True(t, got.TotalBalance.Equal(dec("10454.50")))
	require.True(t, got.HasIncome())
	assert.Equal(t, "99.09", got.SavingsRate.Decimal.Round(2).String())
}

func TestDashboardTotalsWithoutIncome(t *testing.T) {
	got, err := ComputeDashboardTotals(
		[]Wallet{{ID: "cash", InitialAmount: dec("20")}},
		[]Transaction{expense("t1", "cash", "", "5", at(2025, 1, 1, 0))},
	)
	require.NoError(t, err)
	assert.False(t, got.HasIncome())
	assert.False(t, got.SavingsRate.Valid)
	assert.True(t, got.NetSavings.Equal(dec("-5")))
	assert.True(t, got.TotalBalance.Equal(dec("15")))

	empty, err := ComputeDashboardTotals(nil, nil)
	require.NoError(t, err)
	assert.True(t, empty.TotalBalance.IsZero())
	assert.False(t, empty.HasIncome())
}

func TestDashboardTotalsRejectsMalformed(t *testing.T) {
	_, err := ComputeDashboardTotals(nil, []Transaction{{Type: Income, Amount: dec("-2")}})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestAggregatesAreIdempotent(t *testing.T) {
	wallets := []Wallet{{ID: "cash", InitialAmount: dec("500")}}
	txs := []Transaction{
		income("t1", "cash", "salary", "5000", at(2025, 1, 1, 0)),
		expense("t2", "cash", "food", "45.50", at(2025, 1, 2, 0)),
	}
	b := januaryBudget("40")
	c := Category{ID: "food"}

	bal1, _ := ComputeWalletBalance(wallets[0], txs)
	bal2, _ := ComputeWalletBalance(wallets[0], txs)
	assert.True(t, bal1.Equal(bal2))

	p1, _ := ComputeBudgetProgress(b, txs)
	p2, _ := ComputeBudgetProgress(b, txs)
	assert.Equal(t, p1, p2)

	c1, _ := ComputeCategoryTotals(c, txs)
	c2, _ := ComputeCategoryTotals(c, txs)
	assert.Equal(t, c1, c2)

	d1, _ := ComputeDashboardTotals(wallets, txs)
	d2, _ := ComputeDashboardTotals(wallets, txs)
	assert.Equal(t, d1, d2)

	assert.Equal(t, "45.50", txs[1].Amount.StringFixed(2), "inputs are not mutated")
}
