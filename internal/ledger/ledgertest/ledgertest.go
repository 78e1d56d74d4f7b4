// Package ledgertest holds the behaviour every ledger.Store must share.
package ledgertest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finetrail/internal/core"
	"finetrail/internal/ledger"
)

// Opener returns a fresh, empty store for one subtest.
type Opener func(t *testing.T) ledger.Store

// Run exercises store against the ledger contract.
func Run(t *testing.T, open Opener) {
	tests := map[string]func(*testing.T, ledger.Store){
		"wallet round trip":             walletRoundTrip,
		"category ordering":             categoryOrdering,
		"category names are unique":     categoryNamesUnique,
		"transaction dates are utc":     transactionDatesUTC,
		"transaction crud":              transactionCRUD,
		"transactions newest first":     transactionsNewestFirst,
		"budget round trip":             budgetRoundTrip,
		"wallet delete cascades":        walletDeleteCascades,
		"category delete detaches":      categoryDeleteDetaches,
		"users are isolated":            usersAreIsolated,
		"users are listed":              usersAreListed,
		"missing rows report not found": missingRows,
		"empty user lists are non nil":  emptyLists,
	}
	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			t.Cleanup(func() { _ = store.Close() })
			fn(t, store)
		})
	}
}

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// MustWallet creates a wallet for userID.
func MustWallet(t *testing.T, s ledger.Store, userID, name, initial string) core.Wallet {
	t.Helper()
	w, err := s.CreateWallet(context.Background(), core.Wallet{
		UserID: userID, Name: name, Type: core.Cash, Currency: "USD", InitialAmount: amount(initial),
		Color:  "#10b981", Icon: "💵",
	})
	require.NoError(t, err)
	return w
}

// MustCategory creates a category for userID.
func MustCategory(t *testing.T, s ledger.Store, userID, name string, typ core.TransactionType) core.Category {
	t.Helper()
	c, err := s.CreateCategory(context.Background(), core.Category{
		UserID: userID, Name: name, Type: typ, Color: "#64748b", Emoji: "📁",
	})
	require.NoError(t, err)
	return c
}

// MustTransaction creates a transaction for userID.
func MustTransaction(t *testing.T, s ledger.Store, userID, walletID, categoryID string, typ core.TransactionType, amt string, when time.Time) core.Transaction {
	t.Helper()
	tx, err := s.CreateTransaction(context.Background(), core.Transaction{
		UserID: userID, WalletID: walletID, CategoryID: categoryID, Type: typ,
		Amount: amount(amt), Date: when, Description: "test", Tags: []string{"a", "b"},
	})
	require.NoError(t, err)
	return tx
}

func walletRoundTrip(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	first := MustWallet(t, s, "u1", "Cash", "500")
	second := MustWallet(t, s, "u1", "Bank Account", "5000.25")
	require.NotEmpty(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	got, err := s.GetWallet(ctx, "u1", second.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bank Account", got.Name)
	assert.True(t, got.InitialAmount.Equal(amount("5000.25")))
	assert.Equal(t, core.Cash, got.Type)
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, "💵", got.Icon)

	list, err := s.ListWallets(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)

	require.NoError(t, s.DeleteWallet(ctx, "u1", first.ID))
	_, err = s.GetWallet(ctx, "u1", first.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func categoryOrdering(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	MustCategory(t, s, "u1", "rent", core.Expense)
	MustCategory(t, s, "u1", "Food", core.Expense)
	salary := MustCategory(t, s, "u1", "Salary", core.Income)

	list, err := s.ListCategories(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"Food", "rent", "Salary"}, []string{list[0].Name, list[1].Name, list[2].Name})

	got, err := s.GetCategory(ctx, "u1", salary.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Income, got.Type)
	assert.Equal(t, "📁", got.Emoji)
}

func categoryNamesUnique(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	MustCategory(t, s, "u1", "Food", core.Expense)

	_, err := s.CreateCategory(ctx, core.Category{UserID: "u1", Name: "food", Type: core.Income})
	assert.ErrorIs(t, err, ledger.ErrDuplicate)

	MustCategory(t, s, "u2", "Food", core.Expense)
	cats, err := s.ListCategories(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, cats, 1)
}

func transactionDatesUTC(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	w := MustWallet(t, s, "u1", "Cash", "0")
	rome := time.FixedZone("CEST", 2*60*60)
	when := time.Date(2025, 4, 1, 1, 0, 0, 0, rome)
	tx := MustTransaction(t, s, "u1", w.ID, "", core.Expense, "1", when)

	got, err := s.GetTransaction(ctx, "u1", tx.ID)
	require.NoError(t, err)
	assert.True(t, got.Date.Equal(when))
	assert.Equal(t, time.UTC, got.Date.Location())
	assert.Equal(t, core.NewDate(2025, time.March, 31), core.DateOf(got.Date))
}

func transactionCRUD(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	w := MustWallet(t, s, "u1", "Cash", "0")
	food := MustCategory(t, s, "u1", "Food", core.Expense)
	when := time.Date(2025, 1, 2, 13, 30, 0, 0, time.UTC)
	tx := MustTransaction(t, s, "u1", w.ID, food.ID, core.Expense, "45.50", when)

	got, err := s.GetTransaction(ctx, "u1", tx.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(amount("45.50")))
	assert.True(t, got.Date.Equal(when))
	assert.Equal(t, []string{"a", "b"}, got.Tags)
	assert.Equal(t, food.ID, got.CategoryID)

	got.Amount = amount("50")
	got.Description = "lunch"
	got.Tags = []string{"lunch"}
	got.CategoryID = ""
	updated, err := s.UpdateTransaction(ctx, got)
	require.NoError(t, err)
	assert.True(t, updated.CreatedAt.Equal(tx.CreatedAt))

	again, err := s.GetTransaction(ctx, "u1", tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "lunch", again.Description)
	assert.Equal(t, []string{"lunch"}, again.Tags)
	assert.Empty(t, again.CategoryID)
	assert.True(t, again.Amount.Equal(amount("50")))

	require.NoError(t, s.DeleteTransaction(ctx, "u1", tx.ID))
	assert.ErrorIs(t, s.DeleteTransaction(ctx, "u1", tx.ID), ledger.ErrNotFound)
}

func transactionsNewestFirst(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	w := MustWallet(t, s, "u1", "Cash", "0")
	old := MustTransaction(t, s, "u1", w.ID, "", core.Income, "1", time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	newest := MustTransaction(t, s, "u1", w.ID, "", core.Expense, "2", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	mid := MustTransaction(t, s, "u1", w.ID, "", core.Expense, "3", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))

	list, err := s.ListTransactions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{newest.ID, mid.ID, old.ID}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func budgetRoundTrip(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	food := MustCategory(t, s, "u1", "Food", core.Expense)
	first, err := s.CreateBudget(ctx, core.Budget{
		UserID:    "u1", CategoryID: food.ID, Amount: amount("200"), Period: "monthly",
		StartDate: core.NewDate(2025, 1, 1), EndDate: core.NewDate(2025, 1, 31),
	})
	require.NoError(t, err)
	second, err := s.CreateBudget(ctx, core.Budget{
		UserID:    "u1", CategoryID: food.ID, Amount: amount("50"), Period: "weekly",
		StartDate: core.NewDate(2025, 2, 1), EndDate: core.NewDate(2025, 2, 7),
	})
	require.NoError(t, err)

	got, err := s.GetBudget(ctx, "u1", first.ID)
	require.NoError(t, err)
	assert.Equal(t, core.NewDate(2025, 1, 1), got.StartDate)
	assert.Equal(t, core.NewDate(2025, 1, 31), got.EndDate)
	assert.Equal(t, "monthly", got.Period)
	assert.True(t, got.Amount.Equal(amount("200")))

	list, err := s.ListBudgets(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	require.NoError(t, s.DeleteBudget(ctx, "u1", first.ID))
	list, err = s.ListBudgets(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func walletDeleteCascades(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	cash := MustWallet(t, s, "u1", "Cash", "0")
	bank := MustWallet(t, s, "u1", "Bank", "0")
	MustTransaction(t, s, "u1", cash.ID, "", core.Expense, "1", time.Now())
	kept := MustTransaction(t, s, "u1", bank.ID, "", core.Expense, "1", time.Now())

	require.NoError(t, s.DeleteWallet(ctx, "u1", cash.ID))
	list, err := s.ListTransactions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, kept.ID, list[0].ID)
}

func categoryDeleteDetaches(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	w := MustWallet(t, s, "u1", "Cash", "0")
	food := MustCategory(t, s, "u1", "Food", core.Expense)
	tx := MustTransaction(t, s, "u1", w.ID, food.ID, core.Expense, "9", time.Now())
	_, err := s.CreateBudget(ctx, core.Budget{
		UserID:    "u1", CategoryID: food.ID, Amount: amount("10"), Period: "monthly",
		StartDate: core.NewDate(2025, 1, 1), EndDate: core.NewDate(2025, 1, 31),
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteCategory(ctx, "u1", food.ID))

	got, err := s.GetTransaction(ctx, "u1", tx.ID)
	require.NoError(t, err)
	assert.Empty(t, got.CategoryID)
	budgets, err := s.ListBudgets(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, budgets)
}

func usersAreIsolated(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	w := MustWallet(t, s, "alice", "Cash", "1")
	c := MustCategory(t, s, "alice", "Food", core.Expense)
	tx := MustTransaction(t, s, "alice", w.ID, c.ID, core.Expense, "1", time.Now())

	_, err := s.GetWallet(ctx, "bob", w.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	_, err = s.GetTransaction(ctx, "bob", tx.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	assert.ErrorIs(t, s.DeleteWallet(ctx, "bob", w.ID), ledger.ErrNotFound)
	assert.ErrorIs(t, s.DeleteCategory(ctx, "bob", c.ID), ledger.ErrNotFound)

	stolen := tx
	stolen.UserID = "bob"
	_, err = s.UpdateTransaction(ctx, stolen)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	list, err := s.ListWallets(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, list)

	still, err := s.GetWallet(ctx, "alice", w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.ID, still.ID)
}

func usersAreListed(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	MustWallet(t, s, "carol", "Cash", "1")
	MustCategory(t, s, "alice", "Food", core.Expense)
	MustWallet(t, s, "alice", "Bank", "2")

	users, err = s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "carol"}, users)
}

func missingRows(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	_, err := s.GetCategory(ctx, "u1", "nope")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	_, err = s.GetBudget(ctx, "u1", "nope")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	assert.ErrorIs(t, s.DeleteBudget(ctx, "u1", "nope"), ledger.ErrNotFound)
	assert.ErrorIs(t, s.DeleteTransaction(ctx, "u1", "nope"), ledger.ErrNotFound)
	_, err = s.UpdateTransaction(ctx, core.Transaction{ID: "nope", UserID: "u1"})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func emptyLists(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	wallets, err := s.ListWallets(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, wallets)
	txs, err := s.ListTransactions(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, txs)
	cats, err := s.ListCategories(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, cats)
	budgets, err := s.ListBudgets(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, budgets)
	assert.NoError(t, s.Ping(ctx))
}
