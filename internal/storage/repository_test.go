package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	msqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finetrail/internal/core"
	"finetrail/internal/ledger"
	"finetrail/internal/ledger/ledgertest"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "finetrail.db"), nil)
	require.NoError(t, err)
	return repo
}

func TestSQLiteRepositoryContract(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T) ledger.Store { return newTestRepository(t) })
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finetrail.db")
	repo, err := NewSQLiteRepository(path, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	require.NoError(t, RunMigrations(DSN(path)))
	version, dirty, err := SchemaVersion(DSN(path))
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)
}

// migrateTo applies the embedded migrations up to version on a fresh file.
func migrateTo(t *testing.T, dsn string, version uint) {
	t.Helper()
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()
	driver, err := msqlite.WithInstance(db, &msqlite.Config{})
	require.NoError(t, err)
	src, err := iofs.New(migrationsFS, "migrations")
	require.NoError(t, err)
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	require.NoError(t, err)
	if err := m.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		require.NoError(t, err)
	}
}

func TestUniqueNamesMigrationFoldsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finetrail.db")
	dsn := DSN(path)
	migrateTo(t, dsn, 1)

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	for _, stmt := range []string{
		`INSERT INTO wallets (id, user_id, name, type, created_at) VALUES ('w1', 'u1', 'Cash', 'cash', '2025-01-01T00:00:00.000000000Z')`,
		`INSERT INTO categories (id, user_id, name, type, created_at) VALUES ('c1', 'u1', 'Food', 'expense', '2025-01-01T00:00:00.000000000Z')`,
		`INSERT INTO categories (id, user_id, name, type, created_at) VALUES ('c2', 'u1', 'food', 'expense', '2025-01-02T00:00:00.000000000Z')`,
		`INSERT INTO categories (id, user_id, name, type, created_at) VALUES ('c3', 'u2', 'Food', 'expense', '2025-01-02T00:00:00.000000000Z')`,
		`INSERT INTO transactions (id, user_id, wallet_id, category_id, type, amount, date, created_at)
		 VALUES ('t1', 'u1', 'w1', 'c2', 'expense', '5', '2025-01-03T00:00:00.000000000Z', '2025-01-03T00:00:00.000000000Z')`,
		`INSERT INTO budgets (id, user_id, category_id, amount, start_date, end_date, created_at)
		 VALUES ('b1', 'u1', 'c2', '100', '2025-01-01', '2025-01-31', '2025-01-03T00:00:00.000000000Z')`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	require.NoError(t, db.Close())

	repo, err := NewSQLiteRepository(path, nil)
	require.NoError(t, err)
	defer repo.Close()
	ctx := context.Background()

	cats, err := repo.ListCategories(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "c1", cats[0].ID)

	tx, err := repo.GetTransaction(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, "c1", tx.CategoryID)

	budgets, err := repo.ListBudgets(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Equal(t, "c1", budgets[0].CategoryID)

	other, err := repo.ListCategories(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, other, 1)

	_, err = repo.CreateCategory(ctx, core.Category{UserID: "u1", Name: "FOOD", Type: core.Expense})
	assert.ErrorIs(t, err, ledger.ErrDuplicate)
}

func TestDataSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finetrail.db")
	repo, err := NewSQLiteRepository(path, nil)
	require.NoError(t, err)
	w := ledgertest.MustWallet(t, repo, "u1", "Cash", "500")
	ledgertest.MustTransaction(t, repo, "u1", w.ID, "", core.Expense, "45.50", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Close())

	reopened, err := NewSQLiteRepository(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	txs, err := reopened.ListTransactions(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "45.50", txs[0].Amount.StringFixed(2))
	assert.Equal(t, []string{"a", "b"}, txs[0].Tags)
}

func TestForeignKeysRejectUnknownWallet(t *testing.T) {
	repo := newTestRepository(t)
	defer repo.Close()

	_, err := repo.CreateTransaction(context.Background(), core.Transaction{
		UserID: "u1", WalletID: "missing", Type: core.Income,
		Amount: core.Transaction{}.Amount, Date: time.Now(),
	})
	assert.Error(t, err)
}

func TestTimestampLayoutSortsLexically(t *testing.T) {
	early := formatTimestamp(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	late := formatTimestamp(time.Date(2025, 1, 2, 3, 4, 5, 100, time.UTC))
	assert.Less(t, early, late)
	assert.Len(t, early, len(late))

	parsed, err := parseTimestamp(late)
	require.NoError(t, err)
	assert.Equal(t, 100, parsed.Nanosecond())

	_, err = parseTimestamp("yesterday")
	assert.Error(t, err)
}
