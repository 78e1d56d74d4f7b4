// Package seed creates the default categories every user starts with and the
// optional demo ledger.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"finetrail/internal/core"
	"finetrail/internal/ledger"
	"finetrail/internal/log"
)

//go:embed categories.yaml
var defaultCategoriesYAML []byte

// DefaultColor is used for categories declared without a color.
const DefaultColor = "#64748b"

type CategorySpec struct {
	Name  string               `yaml:"name"`
	Emoji string               `yaml:"emoji"`
	Color string               `yaml:"color"`
	Type  core.TransactionType `yaml:"type"`
}

type categoryFile struct {
	Categories []CategorySpec `yaml:"categories"`
}

// DefaultCategories returns the embedded default category set.
func DefaultCategories() ([]CategorySpec, error) {
	return ParseCategories(defaultCategoriesYAML)
}

// LoadCategoriesFile reads a category set from a YAML file on disk.
func LoadCategoriesFile(path string) ([]CategorySpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories file: %w", err)
	}
	return ParseCategories(data)
}

// ParseCategories decodes and validates a category set. Names must be unique
// ignoring case.
func ParseCategories(data []byte) ([]CategorySpec, error) {
	var f categoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse categories: %w", err)
	}
	seen := make(map[string]struct{}, len(f.Categories))
	for i := range f.Categories {
		c := &f.Categories[i]
		c.Name = strings.TrimSpace(c.Name)
		if c.Color == "" {
			c.Color = DefaultColor
		}
		if err := (core.Category{Name: c.Name, Type: c.Type}).Validate(); err != nil {
			return nil, fmt.Errorf("category %d (%q): %w", i, c.Name, err)
		}
		key := strings.ToLower(c.Name)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("category %q declared twice", c.Name)
		}
		seen[key] = struct{}{}
	}
	return f.Categories, nil
}

// Seeder writes seed data straight to a store.
type Seeder struct {
	store  ledger.Store
	logger *log.Logger
	now    func() time.Time
}

func NewSeeder(store ledger.Store, logger *log.Logger) *Seeder {
	if logger == nil {
		logger = log.Discard()
	}
	return &Seeder{store: store, logger: logger.WithComponent(log.ComponentSeed), now: time.Now}
}

// SeedCategories creates the categories userID does not have yet, matched by
// name, and returns how many were created.
func (s *Seeder) SeedCategories(ctx context.Context, userID string, specs []CategorySpec) (int, error) {
	existing, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list categories: %w", err)
	}
	have := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		have[strings.ToLower(c.Name)] = struct{}{}
	}

	created := 0
	for _, spec := range specs {
		if _, ok := have[strings.ToLower(spec.Name)]; ok {
			continue
		}
		_, err := s.store.CreateCategory(ctx, core.Category{
			UserID:    userID,
			Name:      spec.Name,
			Type:      spec.Type,
			Color:     spec.Color,
			Emoji:     spec.Emoji,
			IsDefault: true,
		})
		if errors.Is(err, ledger.ErrDuplicate) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("create category %q: %w", spec.Name, err)
		}
		created++
	}
	if created > 0 {
		s.logger.InfoContext(ctx, "Default categories created",
			log.FieldUserID, userID, log.FieldOperation, log.OpSeed, log.FieldCount, created)
	}
	return created, nil
}

// DemoResult summarises what SeedDemo wrote.
type DemoResult struct {
	Categories   int
	Wallets      int
	Transactions int
}

type demoWallet struct {
	name    string
	typ     core.WalletType
	color   string
	icon    string
	initial string
}

var demoWallets = []demoWallet{
	{"Cash", core.Cash, "#10b981", "💵", "500"},
	{"Bank Account", core.Bank, "#3b82f6", "🏦", "5000"},
	{"Credit Card", core.CreditCard, "#8b5cf6", "💳", "0"},
}

// SeedDemo creates default categories, three wallets and two transactions.
// Wallets and transactions are skipped when the user already has wallets.
func (s *Seeder) SeedDemo(ctx context.Context, userID string) (DemoResult, error) {
	var res DemoResult
	specs, err := DefaultCategories()
	if err != nil {
		return res, err
	}
	if res.Categories, err = s.SeedCategories(ctx, userID, specs); err != nil {
		return res, err
	}

	wallets, err := s.store.ListWallets(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("list wallets: %w", err)
	}
	if len(wallets) > 0 {
		return res, nil
	}

	byName := map[string]core.Wallet{}
	for _, dw := range demoWallets {
		w, err := s.store.CreateWallet(ctx, core.Wallet{
			UserID:        userID,
			Name:          dw.name,
			Type:          dw.typ,
			Currency:      "USD",
			InitialAmount: decimal.RequireFromString(dw.initial),
			Color:         dw.color,
			Icon:          dw.icon,
		})
		if err != nil {
			return res, fmt.Errorf("create wallet %q: %w", dw.name, err)
		}
		byName[dw.name] = w
		res.Wallets++
	}

	categories, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("list categories: %w", err)
	}
	catByName := map[string]string{}
	for _, c := range categories {
		catByName[c.Name] = c.ID
	}

	now := s.now().UTC()
	demo := []core.Transaction{
		{
			WalletID:    byName["Bank Account"].ID,
			CategoryID:  catByName["Salary"],
			Type:        core.Income,
			Amount:      decimal.NewFromInt(5000),
			Description: "Monthly salary",
			Tags:        []string{"salary", "monthly"},
		},
		{
			WalletID:    byName["Cash"].ID,
			CategoryID:  catByName["Food & Dining"],
			Type:        core.Expense,
			Amount:      decimal.RequireFromString("45.50"),
			Description: "Lunch at restaurant",
			Tags:        []string{"food", "lunch"},
		},
	}
	for _, tx := range demo {
		tx.UserID = userID
		tx.Date = now
		if _, err := s.store.CreateTransaction(ctx, tx); err != nil {
			return res, fmt.Errorf("create demo transaction: %w", err)
		}
		res.Transactions++
	}

	s.logger.InfoContext(ctx, "Demo ledger created",
		log.FieldUserID, userID, log.FieldOperation, log.OpSeed, "wallets", res.Wallets, "transactions", res.Transactions)
	return res, nil
}
