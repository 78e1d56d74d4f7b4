// Package ledger declares the per-user persistence ports for wallets,
// categories, transactions and budgets.
//
// Every method takes the acting user id explicitly; rows owned by another
// user are reported as ErrNotFound.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"finetrail/internal/core"
)

var (
	// ErrNotFound is returned for missing or foreign-owned rows.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a user already has a category of the
	// same name, compared case-insensitively.
	ErrDuplicate = errors.New("already exists")
)

// Entity names used in events and logs.
const (
	EntityWallet      = "wallet"
	EntityCategory    = "category"
	EntityTransaction = "transaction"
	EntityBudget      = "budget"
)

type (
	// WalletRepository lists wallets in creation order.
	WalletRepository interface {
		ListWallets(ctx context.Context, userID string) ([]core.Wallet, error)
		GetWallet(ctx context.Context, userID, id string) (core.Wallet, error)
		CreateWallet(ctx context.Context, w core.Wallet) (core.Wallet, error)
		// DeleteWallet also deletes the wallet's transactions.
		DeleteWallet(ctx context.Context, userID, id string) error
	}

	// CategoryRepository lists categories by name.
	CategoryRepository interface {
		ListCategories(ctx context.Context, userID string) ([]core.Category, error)
		GetCategory(ctx context.Context, userID, id string) (core.Category, error)
		// CreateCategory fails with ErrDuplicate when the name is taken.
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		// DeleteCategory clears the category of its transactions and deletes
		// its budgets.
		DeleteCategory(ctx context.Context, userID, id string) error
	}

	// TransactionRepository lists transactions newest first.
	TransactionRepository interface {
		ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
		CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, userID, id string) error
	}

	// BudgetRepository lists budgets newest first.
	BudgetRepository interface {
		ListBudgets(ctx context.Context, userID string) ([]core.Budget, error)
		GetBudget(ctx context.Context, userID, id string) (core.Budget, error)
		CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
		DeleteBudget(ctx context.Context, userID, id string) error
	}

	// UserDirectory lists every user owning at least one wallet or category,
	// sorted.
	UserDirectory interface {
		ListUsers(ctx context.Context) ([]string, error)
	}

	Store interface {
		UserDirectory
		WalletRepository
		CategoryRepository
		TransactionRepository
		BudgetRepository
		Ping(ctx context.Context) error
		Close() error
	}
)

// Stamp fills the id and creation time of a new row when they are unset.
func Stamp(id *string, createdAt *time.Time, now time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if createdAt.IsZero() {
		*createdAt = now.UTC()
	}
}
