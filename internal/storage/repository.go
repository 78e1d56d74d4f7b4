// Package storage is the SQLite implementation of ledger.Store.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"finetrail/internal/core"
	"finetrail/internal/ledger"
	"finetrail/internal/log"
)

// timestampLayout is fixed width so that text ordering matches time ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

var _ ledger.Store = (*SQLiteRepository)(nil)

// DSN builds the modernc connection string with foreign keys enforced.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// NewSQLiteRepository opens dbPath, creating its directory, and migrates it.
func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
		now:    time.Now,
	}, nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM wallets UNION SELECT user_id FROM categories ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	users := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("storage: %w", core.ErrMissingUser)
	}
	return nil
}

func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.ErrNotFound
	}
	return err
}

// Wallets

const walletColumns = `id, user_id, name, type, currency, initial_amount, color, icon, created_at`

func scanWallet(row interface{ Scan(...any) error }) (core.Wallet, error) {
	var (
		w       core.Wallet
		typ     string
		created string
	)
	if err := row.Scan(&w.ID, &w.UserID, &w.Name, &typ, &w.Currency, &w.InitialAmount, &w.Color, &w.Icon, &created); err != nil {
		return core.Wallet{}, err
	}
	w.Type = core.WalletType(typ)
	var err error
	w.CreatedAt, err = parseTimestamp(created)
	return w, err
}

func (r *SQLiteRepository) ListWallets(ctx context.Context, userID string) ([]core.Wallet, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = ? ORDER BY created_at, rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	out := []core.Wallet{}
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetWallet(ctx context.Context, userID, id string) (core.Wallet, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = ? AND id = ?`, userID, id)
	w, err := scanWallet(row)
	if err != nil {
		return core.Wallet{}, notFound(err)
	}
	return w, nil
}

func (r *SQLiteRepository) CreateWallet(ctx context.Context, w core.Wallet) (core.Wallet, error) {
	if err := requireUser(w.UserID); err != nil {
		return core.Wallet{}, err
	}
	ledger.Stamp(&w.ID, &w.CreatedAt, r.now())
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wallets (`+walletColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.UserID, w.Name, string(w.Type), w.Currency, w.InitialAmount, w.Color, w.Icon, formatTimestamp(w.CreatedAt))
	if err != nil {
		return core.Wallet{}, fmt.Errorf("insert wallet: %w", err)
	}
	r.logger.DebugContext(ctx, "Wallet saved", log.FieldUserID, w.UserID, log.FieldEntityID, w.ID)
	return w, nil
}

func (r *SQLiteRepository) DeleteWallet(ctx context.Context, userID, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM transactions WHERE user_id = ? AND wallet_id = ? AND EXISTS (SELECT 1 FROM wallets WHERE id = ? AND user_id = ?)`,
			userID, id, id, userID); err != nil {
			return fmt.Errorf("delete wallet transactions: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM wallets WHERE user_id = ? AND id = ?`, userID, id)
		if err != nil {
			return fmt.Errorf("delete wallet: %w", err)
		}
		return affectedOne(res)
	})
}

// Categories

const categoryColumns = `id, user_id, name, type, color, emoji, is_default, created_at`

func scanCategory(row interface{ Scan(...any) error }) (core.Category, error) {
	var (
		c       core.Category
		typ     string
		created string
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &typ, &c.Color, &c.Emoji, &c.IsDefault, &created); err != nil {
		return core.Category{}, err
	}
	c.Type = core.TransactionType(typ)
	var err error
	c.CreatedAt, err = parseTimestamp(created)
	return c, err
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = ? ORDER BY name COLLATE NOCASE, rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := []core.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, userID, id string) (core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = ? AND id = ?`, userID, id)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, notFound(err)
	}
	return c, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := requireUser(c.UserID); err != nil {
		return core.Category{}, err
	}
	ledger.Stamp(&c.ID, &c.CreatedAt, r.now())
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, string(c.Type), c.Color, c.Emoji, c.IsDefault, formatTimestamp(c.CreatedAt))
	if isUniqueViolation(err) {
		return core.Category{}, fmt.Errorf("category %q: %w", c.Name, ledger.ErrDuplicate)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, userID, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE user_id = ? AND id = ?`, userID, id)
		if err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		if err := affectedOne(res); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE transactions SET category_id = NULL WHERE user_id = ? AND category_id = ?`, userID, id); err != nil {
			return fmt.Errorf("detach category transactions: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM budgets WHERE user_id = ? AND category_id = ?`, userID, id); err != nil {
			return fmt.Errorf("delete category budgets: %w", err)
		}
		return nil
	})
}

// Transactions

const transactionColumns = `id, user_id, wallet_id, category_id, type, amount, date, description, tags, created_at`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t        core.Transaction
		category sql.NullString
		typ      string
		date     string
		tags     string
		created  string
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.WalletID, &category, &typ, &t.Amount, &date, &t.Description, &tags, &created); err != nil {
		return core.Transaction{}, err
	}
	t.CategoryID = category.String
	t.Type = core.TransactionType(typ)

	var err error
	if t.Date, err = parseTimestamp(date); err != nil {
		return core.Transaction{}, err
	}
	if t.CreatedAt, err = parseTimestamp(created); err != nil {
		return core.Transaction{}, err
	}
	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		return core.Transaction{}, fmt.Errorf("decode tags: %w", err)
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	return t, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? ORDER BY date DESC, created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? AND id = ?`, userID, id)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, notFound(err)
	}
	return t, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := requireUser(t.UserID); err != nil {
		return core.Transaction{}, err
	}
	ledger.Stamp(&t.ID, &t.CreatedAt, r.now())
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return core.Transaction{}, err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.WalletID, nullable(t.CategoryID), string(t.Type), t.Amount,
		formatTimestamp(t.Date), t.Description, tags, formatTimestamp(t.CreatedAt))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	r.logger.DebugContext(ctx, "Transaction saved",
		log.FieldUserID, t.UserID, log.FieldEntityID, t.ID, log.FieldAmount, t.Amount.StringFixed(2))
	return t, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return core.Transaction{}, err
	}
	err = r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE transactions
			    SET wallet_id = ?, category_id = ?, type = ?, amount = ?, date = ?, description = ?, tags = ?
			  WHERE user_id = ? AND id = ?`,
			t.WalletID, nullable(t.CategoryID), string(t.Type), t.Amount, formatTimestamp(t.Date),
			t.Description, tags, t.UserID, t.ID)
		if err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		if err := affectedOne(res); err != nil {
			return err
		}
		var created string
		if err := tx.QueryRowContext(ctx,
			`SELECT created_at FROM transactions WHERE id = ?`, t.ID).Scan(&created); err != nil {
			return fmt.Errorf("read created_at: %w", err)
		}
		t.CreatedAt, err = parseTimestamp(created)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return affectedOne(res)
}

// Budgets

const budgetColumns = `id, user_id, category_id, amount, period, start_date, end_date, created_at`

func scanBudget(row interface{ Scan(...any) error }) (core.Budget, error) {
	var (
		b                   core.Budget
		start, end, created string
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Amount, &b.Period, &start, &end, &created); err != nil {
		return core.Budget{}, err
	}
	var err error
	if b.StartDate, err = core.ParseDate(start); err != nil {
		return core.Budget{}, err
	}
	if b.EndDate, err = core.ParseDate(end); err != nil {
		return core.Budget{}, err
	}
	b.CreatedAt, err = parseTimestamp(created)
	return b, err
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID string) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	out := []core.Budget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, userID, id string) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? AND id = ?`, userID, id)
	b, err := scanBudget(row)
	if err != nil {
		return core.Budget{}, notFound(err)
	}
	return b, nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := requireUser(b.UserID); err != nil {
		return core.Budget{}, err
	}
	ledger.Stamp(&b.ID, &b.CreatedAt, r.now())
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.CategoryID, b.Amount, b.Period,
		b.StartDate.String(), b.EndDate.String(), formatTimestamp(b.CreatedAt))
	if err != nil {
		return core.Budget{}, fmt.Errorf("insert budget: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return affectedOne(res)
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		(code == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE"))
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
