package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

const (
	// RecentLimit is the number of transactions shown on the dashboard.
	RecentLimit = 5
	// HistoryLimit caps the transactions page.
	HistoryLimit = 100

	uncategorized = "Uncategorized"
	fallbackEmoji = "📁"
)

// Snapshot is everything one user owns, read at a single point in time.
type Snapshot struct {
	UserID       string
	Wallets      []Wallet
	Categories   []Category
	Transactions []Transaction
	Budgets      []Budget
}

type (
	WalletView struct {
		Wallet
		Balance decimal.Decimal `json:"balance"`
	}

	CategoryView struct {
		Category
		CategoryTotals
	}

	BudgetView struct {
		Budget
		CategoryName  string         `json:"categoryName"`
		CategoryEmoji string         `json:"categoryEmoji"`
		CategoryColor string         `json:"categoryColor,omitempty"`
		Progress      BudgetProgress `json:"progress"`
	}

	TransactionView struct {
		Transaction
		CategoryName  string `json:"categoryName"`
		CategoryEmoji string `json:"categoryEmoji"`
		CategoryColor string `json:"categoryColor,omitempty"`
		WalletName    string `json:"walletName"`
		Currency      string `json:"currency"`
	}

	DayGroup struct {
		Date  Date              `json:"date"`
		Items []TransactionView `json:"items"`
	}

	DashboardView struct {
		Totals      DashboardTotals   `json:"totals"`
		WalletCount int               `json:"walletCount"`
		Wallets     []WalletView      `json:"wallets"`
		Recent      []TransactionView `json:"recent"`
	}
)

// BuildWalletViews attaches the derived balance to every wallet.
func BuildWalletViews(s Snapshot) ([]WalletView, error) {
	byWallet := groupByWallet(s.Transactions)
	out := make([]WalletView, 0, len(s.Wallets))
	for _, w := range s.Wallets {
		bal, err := ComputeWalletBalance(w, byWallet[w.ID])
		if err != nil {
			return nil, err
		}
		out = append(out, WalletView{Wallet: w, Balance: bal})
	}
	return out, nil
}

// BuildCategoryViews attaches lifetime count and total to every category.
func BuildCategoryViews(s Snapshot) ([]CategoryView, error) {
	byCategory := make(map[string][]Transaction)
	for _, tx := range s.Transactions {
		if tx.CategoryID != "" {
			byCategory[tx.CategoryID] = append(byCategory[tx.CategoryID], tx)
		}
	}
	out := make([]CategoryView, 0, len(s.Categories))
	for _, c := range s.Categories {
		totals, err := ComputeCategoryTotals(c, byCategory[c.ID])
		if err != nil {
			return nil, err
		}
		out = append(out, CategoryView{Category: c, CategoryTotals: totals})
	}
	return out, nil
}

// SplitByType partitions category views into income and expense lists.
func SplitByType(views []CategoryView) (income, expense []CategoryView) {
	for _, v := range views {
		if v.Type == Income {
			income = append(income, v)
		} else {
			expense = append(expense, v)
		}
	}
	return income, expense
}

// BuildBudgetViews computes the progress of every budget.
func BuildBudgetViews(s Snapshot) ([]BudgetView, error) {
	cats := indexCategories(s.Categories)
	out := make([]BudgetView, 0, len(s.Budgets))
	for _, b := range s.Budgets {
		p, err := ComputeBudgetProgress(b, s.Transactions)
		if err != nil {
			return nil, err
		}
		v := BudgetView{Budget: b, Progress: p, CategoryName: uncategorized, CategoryEmoji: fallbackEmoji}
		if c, ok := cats[b.CategoryID]; ok {
			v.CategoryName = c.Name
			v.CategoryColor = c.Color
			if c.Emoji != "" {
				v.CategoryEmoji = c.Emoji
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// BuildTransactionViews returns at most limit transactions, newest first,
// joined with their wallet and category. A limit <= 0 means no limit.
func BuildTransactionViews(s Snapshot, limit int) []TransactionView {
	cats := indexCategories(s.Categories)
	wallets := make(map[string]Wallet, len(s.Wallets))
	for _, w := range s.Wallets {
		wallets[w.ID] = w
	}

	txs := make([]Transaction, len(s.Transactions))
	copy(txs, s.Transactions)
	SortNewestFirst(txs)
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}

	out := make([]TransactionView, 0, len(txs))
	for _, tx := range txs {
		v := TransactionView{Transaction: tx, CategoryName: uncategorized, CategoryEmoji: fallbackEmoji}
		if c, ok := cats[tx.CategoryID]; ok {
			v.CategoryName = c.Name
			v.CategoryColor = c.Color
			if c.Emoji != "" {
				v.CategoryEmoji = c.Emoji
			}
		}
		if w, ok := wallets[tx.WalletID]; ok {
			v.WalletName = w.Name
			v.Currency = w.Currency
		}
		out = append(out, v)
	}
	return out
}

// GroupByDay buckets already sorted views by calendar day, keeping order.
func GroupByDay(views []TransactionView) []DayGroup {
	var groups []DayGroup
	for _, v := range views {
		day := DateOf(v.Date)
		if n := len(groups); n > 0 && groups[n-1].Date.Equal(day.Time) {
			groups[n-1].Items = append(groups[n-1].Items, v)
			continue
		}
		groups = append(groups, DayGroup{Date: day, Items: []TransactionView{v}})
	}
	return groups
}

// BuildDashboard assembles totals, wallet balances and recent activity.
func BuildDashboard(s Snapshot) (DashboardView, error) {
	totals, err := ComputeDashboardTotals(s.Wallets, s.Transactions)
	if err != nil {
		return DashboardView{}, err
	}
	wallets, err := BuildWalletViews(s)
	if err != nil {
		return DashboardView{}, err
	}
	return DashboardView{
		Totals:      totals,
		WalletCount: len(s.Wallets),
		Wallets:     wallets,
		Recent:      BuildTransactionViews(s, RecentLimit),
	}, nil
}

// SortNewestFirst orders by date, then creation time, then id, all descending.
func SortNewestFirst(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

func indexCategories(cs []Category) map[string]Category {
	out := make(map[string]Category, len(cs))
	for _, c := range cs {
		out[c.ID] = c
	}
	return out
}
