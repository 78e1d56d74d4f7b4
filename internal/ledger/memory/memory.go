// Package memory is an in-process ledger.Store used for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"finetrail/internal/core"
	"finetrail/internal/ledger"
)

type userData struct {
	wallets      []core.Wallet
	categories   []core.Category
	transactions []core.Transaction
	budgets      []core.Budget
}

type Store struct {
	mu    sync.RWMutex
	users map[string]*userData
	now   func() time.Time
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{users: make(map[string]*userData), now: time.Now}
}

// data returns the user's bucket, creating it when create is set.
func (s *Store) data(userID string, create bool) *userData {
	d, ok := s.users[userID]
	if !ok && create {
		d = &userData{}
		s.users[userID] = d
	}
	return d
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("memory: %w", core.ErrMissingUser)
	}
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) ListUsers(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := []string{}
	for id, d := range s.users {
		if len(d.wallets)+len(d.categories) > 0 {
			users = append(users, id)
		}
	}
	sort.Strings(users)
	return users, nil
}

// Wallets

func (s *Store) ListWallets(_ context.Context, userID string) ([]core.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := s.data(userID, false)
	if d == nil {
		return []core.Wallet{}, nil
	}
	return append([]core.Wallet{}, d.wallets...), nil
}

func (s *Store) GetWallet(_ context.Context, userID, id string) (core.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d := s.data(userID, false); d != nil {
		for _, w := range d.wallets {
			if w.ID == id {
				return w, nil
			}
		}
	}
	return core.Wallet{}, ledger.ErrNotFound
}

func (s *Store) CreateWallet(_ context.Context, w core.Wallet) (core.Wallet, error) {
	if err := requireUser(w.UserID); err != nil {
		return core.Wallet{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ledger.Stamp(&w.ID, &w.CreatedAt, s.now())
	d := s.data(w.UserID, true)
	d.wallets = append(d.wallets, w)
	return w, nil
}

func (s *Store) DeleteWallet(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.data(userID, false)
	if d == nil {
		return ledger.ErrNotFound
	}
	idx := indexOf(d.wallets, func(w core.Wallet) bool { return w.ID == id })
	if idx < 0 {
		return ledger.ErrNotFound
	}
	d.wallets = append(d.wallets[:idx], d.wallets[idx+1:]...)
	d.transactions = filter(d.transactions, func(tx core.Transaction) bool { return tx.WalletID != id })
	return nil
}

// Categories

func (s *Store) ListCategories(_ context.Context, userID string) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := s.data(userID, false)
	if d == nil {
		return []core.Category{}, nil
	}
	out := append([]core.Category{}, d.categories...)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, userID, id string) (core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d := s.data(userID, false); d != nil {
		for _, c := range d.categories {
			if c.ID == id {
				return c, nil
			}
		}
	}
	return core.Category{}, ledger.ErrNotFound
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	if err := requireUser(c.UserID); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.data(c.UserID, true)
	if indexOf(d.categories, func(x core.Category) bool { return strings.EqualFold(x.Name, c.Name) }) >= 0 {
		return core.Category{}, fmt.Errorf("category %q: %w", c.Name, ledger.ErrDuplicate)
	}
	ledger.Stamp(&c.ID, &c.CreatedAt, s.now())
	d.categories = append(d.categories, c)
	return c, nil
}

func (s *Store) DeleteCategory(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.data(userID, false)
	if d == nil {
		return ledger.ErrNotFound
	}
	idx := indexOf(d.categories, func(c core.Category) bool { return c.ID == id })
	if idx < 0 {
		return ledger.ErrNotFound
	}
	d.categories = append(d.categories[:idx], d.categories[idx+1:]...)
	for i := range d.transactions {
		if d.transactions[i].CategoryID == id {
			d.transactions[i].CategoryID = ""
		}
	}
	d.budgets = filter(d.budgets, func(b core.Budget) bool { return b.CategoryID != id })
	return nil
}

// Transactions

func (s *Store) ListTransactions(_ context.Context, userID string) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := s.data(userID, false)
	if d == nil {
		return []core.Transaction{}, nil
	}
	out := make([]core.Transaction, len(d.transactions))
	for i, tx := range d.transactions {
		out[i] = cloneTx(tx)
	}
	core.SortNewestFirst(out)
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, userID, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d := s.data(userID, false); d != nil {
		for _, tx := range d.transactions {
			if tx.ID == id {
				return cloneTx(tx), nil
			}
		}
	}
	return core.Transaction{}, ledger.ErrNotFound
}

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := requireUser(tx.UserID); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ledger.Stamp(&tx.ID, &tx.CreatedAt, s.now())
	tx.Date = tx.Date.UTC()
	tx = cloneTx(tx)
	d := s.data(tx.UserID, true)
	d.transactions = append(d.transactions, tx)
	return cloneTx(tx), nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.data(tx.UserID, false)
	if d == nil {
		return core.Transaction{}, ledger.ErrNotFound
	}
	idx := indexOf(d.transactions, func(t core.Transaction) bool { return t.ID == tx.ID })
	if idx < 0 {
		return core.Transaction{}, ledger.ErrNotFound
	}
	tx.CreatedAt = d.transactions[idx].CreatedAt
	tx.Date = tx.Date.UTC()
	d.transactions[idx] = cloneTx(tx)
	return cloneTx(tx), nil
}

func (s *Store) DeleteTransaction(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.data(userID, false)
	if d == nil {
		return ledger.ErrNotFound
	}
	idx := indexOf(d.transactions, func(t core.Transaction) bool { return t.ID == id })
	if idx < 0 {
		return ledger.ErrNotFound
	}
	d.transactions = append(d.transactions[:idx], d.transactions[idx+1:]...)
	return nil
}

// Budgets

func (s *Store) ListBudgets(_ context.Context, userID string) ([]core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := s.data(userID, false)
	if d == nil {
		return []core.Budget{}, nil
	}
	out := make([]core.Budget, 0, len(d.budgets))
	for i := len(d.budgets) - 1; i >= 0; i-- {
		out = append(out, d.budgets[i])
	}
	return out, nil
}

func (s *Store) GetBudget(_ context.Context, userID, id string) (core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d := s.data(userID, false); d != nil {
		for _, b := range d.budgets {
			if b.ID == id {
				return b, nil
			}
		}
	}
	return core.Budget{}, ledger.ErrNotFound
}

func (s *Store) CreateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	if err := requireUser(b.UserID); err != nil {
		return core.Budget{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ledger.Stamp(&b.ID, &b.CreatedAt, s.now())
	d := s.data(b.UserID, true)
	d.budgets = append(d.budgets, b)
	return b, nil
}

func (s *Store) DeleteBudget(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.data(userID, false)
	if d == nil {
		return ledger.ErrNotFound
	}
	idx := indexOf(d.budgets, func(b core.Budget) bool { return b.ID == id })
	if idx < 0 {
		return ledger.ErrNotFound
	}
	d.budgets = append(d.budgets[:idx], d.budgets[idx+1:]...)
	return nil
}

func cloneTx(tx core.Transaction) core.Transaction {
	tx.Tags = append([]string{}, tx.Tags...)
	return tx
}

func indexOf[T any](items []T, match func(T) bool) int {
	for i, it := range items {
		if match(it) {
			return i
		}
	}
	return -1
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := items[:0]
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}
