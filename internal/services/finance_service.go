// Package services orchestrates ledger reads and writes across the store,
// the snapshot cache and the event publisher.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"finetrail/internal/amqp"
	"finetrail/internal/cache"
	"finetrail/internal/core"
	"finetrail/internal/ledger"
	"finetrail/internal/log"
	"finetrail/internal/seed"
)

const (
	defaultCacheSize = 256
	defaultCurrency  = "USD"
	snapshotSuffix   = ":snapshot"
)

// Publisher announces committed ledger changes.
type Publisher interface {
	Publish(ctx context.Context, ev *amqp.Event) error
}

type Options struct {
	CacheTTL  time.Duration
	CacheSize int
	// AutoSeed creates the default categories the first time a user with an
	// empty ledger is read.
	AutoSeed bool
}

// FinanceService is the single entry point used by the HTTP handlers, the
// admin CLI and the mirror worker.
type FinanceService struct {
	store     ledger.Store
	snapshots *cache.LRUCache[core.Snapshot]
	publisher Publisher
	seeder    *seed.Seeder
	logger    *log.Logger
	mutations *log.StructuredLogger
	autoSeed  bool

	// seeding collapses concurrent first reads of a user into one seed run.
	seeding singleflight.Group

	mu          sync.Mutex
	seeded      map[string]bool
	generations map[string]uint64
}

// NewFinanceService wires the service. publisher may be nil, in which case
// no events are sent.
func NewFinanceService(store ledger.Store, publisher Publisher, logger *log.Logger, opts Options) *FinanceService {
	if logger == nil {
		logger = log.Discard()
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	logger = logger.WithComponent(log.ComponentLedger)
	return &FinanceService{
		store:       store,
		snapshots:   cache.NewLRUCache[core.Snapshot](opts.CacheSize, opts.CacheTTL),
		publisher:   publisher,
		seeder:      seed.NewSeeder(store, logger),
		logger:      logger,
		mutations:   log.NewStructuredLogger(logger),
		autoSeed:    opts.AutoSeed,
		seeded:      make(map[string]bool),
		generations: make(map[string]uint64),
	}
}

// SnapshotCache exposes the cache so it can be registered with a cache.Manager.
func (s *FinanceService) SnapshotCache() *cache.LRUCache[core.Snapshot] {
	return s.snapshots
}

func (s *FinanceService) Store() ledger.Store {
	return s.store
}

// Snapshot returns everything userID owns. The four queries run concurrently
// and the result is cached until the next mutation for that user.
func (s *FinanceService) Snapshot(ctx context.Context, userID string) (core.Snapshot, error) {
	if strings.TrimSpace(userID) == "" {
		return core.Snapshot{}, core.ErrMissingUser
	}
	key := userID + snapshotSuffix
	if snap, ok := s.snapshots.Get(key); ok {
		return snap, nil
	}
	gen := s.generation(userID)

	snap, err := s.load(ctx, userID)
	if err != nil {
		return core.Snapshot{}, err
	}
	if s.needsSeed(snap) {
		if err := s.seedDefaults(ctx, userID); err != nil {
			return core.Snapshot{}, err
		}
		if snap.Categories, err = s.store.ListCategories(ctx, userID); err != nil {
			return core.Snapshot{}, fmt.Errorf("list categories: %w", err)
		}
	}

	// A write that committed while we were loading makes snap stale.
	s.mu.Lock()
	if s.generations[userID] == gen {
		s.snapshots.Set(key, snap)
	}
	s.mu.Unlock()
	return snap, nil
}

func (s *FinanceService) generation(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[userID]
}

func (s *FinanceService) load(ctx context.Context, userID string) (core.Snapshot, error) {
	snap := core.Snapshot{UserID: userID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if snap.Wallets, err = s.store.ListWallets(gctx, userID); err != nil {
			return fmt.Errorf("list wallets: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if snap.Categories, err = s.store.ListCategories(gctx, userID); err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if snap.Transactions, err = s.store.ListTransactions(gctx, userID); err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if snap.Budgets, err = s.store.ListBudgets(gctx, userID); err != nil {
			return fmt.Errorf("list budgets: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.Snapshot{}, err
	}
	return snap, nil
}

// needsSeed reports whether snap is an empty ledger that auto-seeding may
// fill. Whether seeding already ran is decided by seedDefaults.
func (s *FinanceService) needsSeed(snap core.Snapshot) bool {
	if !s.autoSeed {
		return false
	}
	return len(snap.Wallets)+len(snap.Categories)+len(snap.Transactions)+len(snap.Budgets) == 0
}

// seedDefaults creates the default categories of userID at most once per
// process. Concurrent callers wait for the same run.
func (s *FinanceService) seedDefaults(ctx context.Context, userID string) error {
	_, err, _ := s.seeding.Do(userID, func() (any, error) {
		s.mu.Lock()
		done := s.seeded[userID]
		s.mu.Unlock()
		if done {
			return nil, nil
		}

		specs, err := seed.DefaultCategories()
		if err != nil {
			return nil, fmt.Errorf("load default categories: %w", err)
		}
		if _, err := s.seeder.SeedCategories(ctx, userID, specs); err != nil {
			return nil, fmt.Errorf("seed categories: %w", err)
		}
		s.mu.Lock()
		s.seeded[userID] = true
		s.mu.Unlock()
		return nil, nil
	})
	return err
}

// Views

func (s *FinanceService) Dashboard(ctx context.Context, userID string) (core.DashboardView, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return core.DashboardView{}, err
	}
	return core.BuildDashboard(snap)
}

func (s *FinanceService) Wallets(ctx context.Context, userID string) ([]core.WalletView, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return core.BuildWalletViews(snap)
}

func (s *FinanceService) Categories(ctx context.Context, userID string) ([]core.CategoryView, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return core.BuildCategoryViews(snap)
}

func (s *FinanceService) Budgets(ctx context.Context, userID string) ([]core.BudgetView, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return core.BuildBudgetViews(snap)
}

// Transactions returns the newest transactions grouped by calendar day.
func (s *FinanceService) Transactions(ctx context.Context, userID string) ([]core.DayGroup, error) {
	views, err := s.TransactionViews(ctx, userID, core.HistoryLimit)
	if err != nil {
		return nil, err
	}
	return core.GroupByDay(views), nil
}

func (s *FinanceService) RecentTransactions(ctx context.Context, userID string) ([]core.TransactionView, error) {
	return s.TransactionViews(ctx, userID, core.RecentLimit)
}

// TransactionViews returns up to limit joined transactions, newest first.
// A limit <= 0 returns all of them.
func (s *FinanceService) TransactionViews(ctx context.Context, userID string, limit int) ([]core.TransactionView, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return core.BuildTransactionViews(snap, limit), nil
}

// Commands

func (s *FinanceService) CreateWallet(ctx context.Context, userID string, w core.Wallet) (core.Wallet, error) {
	w.ID = ""
	w.UserID = userID
	w.Name = strings.TrimSpace(w.Name)
	w.Currency = strings.ToUpper(strings.TrimSpace(w.Currency))
	if w.Currency == "" {
		w.Currency = defaultCurrency
	}
	if err := w.Validate(); err != nil {
		return core.Wallet{}, err
	}
	created, err := s.store.CreateWallet(ctx, w)
	if err != nil {
		return core.Wallet{}, fmt.Errorf("create wallet: %w", err)
	}
	s.committed(ctx, userID, ledger.EntityWallet, amqp.OpCreated, created.ID)
	return created, nil
}

func (s *FinanceService) DeleteWallet(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteWallet(ctx, userID, id); err != nil {
		return fmt.Errorf("delete wallet: %w", err)
	}
	s.committed(ctx, userID, ledger.EntityWallet, amqp.OpDeleted, id)
	return nil
}

func (s *FinanceService) CreateCategory(ctx context.Context, userID string, c core.Category) (core.Category, error) {
	c.ID = ""
	c.UserID = userID
	c.Name = strings.TrimSpace(c.Name)
	c.IsDefault = false
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	created, err := s.store.CreateCategory(ctx, c)
	if errors.Is(err, ledger.ErrDuplicate) {
		return core.Category{}, &core.ValidationError{Field: "name", Err: core.ErrDuplicateName}
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	s.committed(ctx, userID, ledger.EntityCategory, amqp.OpCreated, created.ID)
	return created, nil
}

func (s *FinanceService) DeleteCategory(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteCategory(ctx, userID, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	s.committed(ctx, userID, ledger.EntityCategory, amqp.OpDeleted, id)
	return nil
}

func (s *FinanceService) CreateTransaction(ctx context.Context, userID string, tx core.Transaction) (core.Transaction, error) {
	tx.ID = ""
	if err := s.checkTransaction(ctx, userID, &tx); err != nil {
		return core.Transaction{}, err
	}
	created, err := s.store.CreateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	s.committed(ctx, userID, ledger.EntityTransaction, amqp.OpCreated, created.ID)
	return created, nil
}

// UpdateTransaction replaces every editable field of the transaction tx.ID.
func (s *FinanceService) UpdateTransaction(ctx context.Context, userID string, tx core.Transaction) (core.Transaction, error) {
	if strings.TrimSpace(tx.ID) == "" {
		return core.Transaction{}, ledger.ErrNotFound
	}
	if err := s.checkTransaction(ctx, userID, &tx); err != nil {
		return core.Transaction{}, err
	}
	updated, err := s.store.UpdateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	s.committed(ctx, userID, ledger.EntityTransaction, amqp.OpUpdated, updated.ID)
	return updated, nil
}

func (s *FinanceService) DeleteTransaction(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteTransaction(ctx, userID, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.committed(ctx, userID, ledger.EntityTransaction, amqp.OpDeleted, id)
	return nil
}

// checkTransaction normalises tx and verifies the wallet and category it
// references belong to userID and fit its type. Dates are kept in UTC so
// budget windows cut on the same day boundary whatever the backend.
func (s *FinanceService) checkTransaction(ctx context.Context, userID string, tx *core.Transaction) error {
	tx.UserID = userID
	tx.Date = tx.Date.UTC()
	tx.Description = strings.TrimSpace(tx.Description)
	tx.Tags = core.NormalizeTags(tx.Tags)
	if err := tx.Validate(); err != nil {
		return err
	}
	if _, err := s.store.GetWallet(ctx, userID, tx.WalletID); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return &core.ValidationError{Field: "walletId", Err: core.ErrMissingWallet}
		}
		return fmt.Errorf("get wallet: %w", err)
	}
	if tx.CategoryID == "" {
		return nil
	}
	c, err := s.store.GetCategory(ctx, userID, tx.CategoryID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return &core.ValidationError{Field: "categoryId", Err: core.ErrMissingCategory}
		}
		return fmt.Errorf("get category: %w", err)
	}
	return tx.CheckCategory(c)
}

// CreateBudget accepts only expense categories.
func (s *FinanceService) CreateBudget(ctx context.Context, userID string, b core.Budget) (core.Budget, error) {
	b.ID = ""
	b.UserID = userID
	b.Period = strings.TrimSpace(b.Period)
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	c, err := s.store.GetCategory(ctx, userID, b.CategoryID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return core.Budget{}, &core.ValidationError{Field: "categoryId", Err: core.ErrMissingCategory}
		}
		return core.Budget{}, fmt.Errorf("get category: %w", err)
	}
	if c.Type != core.Expense {
		return core.Budget{}, &core.ValidationError{Field: "categoryId", Err: core.ErrCategoryTypeMismatch}
	}
	created, err := s.store.CreateBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	s.committed(ctx, userID, ledger.EntityBudget, amqp.OpCreated, created.ID)
	return created, nil
}

func (s *FinanceService) DeleteBudget(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteBudget(ctx, userID, id); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	s.committed(ctx, userID, ledger.EntityBudget, amqp.OpDeleted, id)
	return nil
}

// SeedDemo writes the demo ledger for userID.
func (s *FinanceService) SeedDemo(ctx context.Context, userID string) (seed.DemoResult, error) {
	res, err := s.seeder.SeedDemo(ctx, userID)
	s.Invalidate(userID)
	if err != nil {
		return res, err
	}
	s.publish(ctx, amqp.NewEvent(amqp.OpResync, "", userID, ""))
	return res, nil
}

// Invalidate drops every cached entry of userID.
func (s *FinanceService) Invalidate(userID string) {
	s.mu.Lock()
	s.generations[userID]++
	s.mu.Unlock()
	s.snapshots.DeletePrefix(userID + ":")
}

// committed runs after the store accepted a write: the cache entry is
// dropped first so the publish never races a stale read.
func (s *FinanceService) committed(ctx context.Context, userID, entity string, op amqp.Op, id string) {
	s.Invalidate(userID)
	s.mutations.LogMutation(ctx, userID, entity, string(op), id)
	s.publish(ctx, amqp.NewEvent(op, entity, userID, id))
}

func (s *FinanceService) publish(ctx context.Context, ev *amqp.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldError, err, log.FieldMessageOp, ev.RoutingKey(), log.FieldUserID, ev.UserID)
	}
}

func (s *FinanceService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Close closes the store and the publisher when it can be closed.
func (s *FinanceService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	return errors.Join(errs...)
}
