package core

import (
	"github.com/shopspring/decimal"
)

// BudgetProgress is the derived consumption of a budget.
type BudgetProgress struct {
	Limit      decimal.Decimal `json:"limit"`
	Spent      decimal.Decimal `json:"spent"`
	Remaining  decimal.Decimal `json:"remaining"`
	Percentage decimal.Decimal `json:"percentage"` // clamped to [0, 100]
	Exceeded   bool            `json:"exceeded"`
	OverBy     decimal.Decimal `json:"overBy"`
}

// CategoryTotals counts and sums the lifetime transactions of a category.
type CategoryTotals struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// DashboardTotals are the user wide figures shown on the dashboard.
// SavingsRate is invalid (null) when there is no income.
type DashboardTotals struct {
	TotalIncome  decimal.Decimal     `json:"totalIncome"`
	TotalExpense decimal.Decimal     `json:"totalExpense"`
	TotalBalance decimal.Decimal     `json:"totalBalance"`
	NetSavings   decimal.Decimal     `json:"netSavings"`
	SavingsRate  decimal.NullDecimal `json:"savingsRate"`
}

// HasIncome reports whether a savings rate could be computed.
func (t DashboardTotals) HasIncome() bool {
	return t.SavingsRate.Valid
}

// checkAggregatable rejects transactions the folds cannot interpret.
func checkAggregatable(tx Transaction) error {
	if !tx.Type.Valid() {
		return invalid("type", ErrInvalidType)
	}
	if tx.Amount.IsNegative() {
		return invalid("amount", ErrInvalidAmount)
	}
	return nil
}

// ComputeWalletBalance folds the transactions of w onto its initial amount.
// Transactions of other wallets are ignored, so the full list may be passed.
func ComputeWalletBalance(w Wallet, txs []Transaction) (decimal.Decimal, error) {
	balance := w.InitialAmount
	for _, tx := range txs {
		if tx.WalletID != w.ID {
			continue
		}
		if err := checkAggregatable(tx); err != nil {
			return decimal.Zero, err
		}
		balance = balance.Add(tx.SignedAmount())
	}
	return balance, nil
}

// ComputeBudgetProgress sums the expenses of the budget category whose
// calendar day falls within the budget window, bounds included.
func ComputeBudgetProgress(b Budget, txs []Transaction) (BudgetProgress, error) {
	if b.Amount.IsNegative() {
		return BudgetProgress{}, invalid("amount", ErrInvalidAmount)
	}
	if b.EndDate.Before(b.StartDate.Time) {
		return BudgetProgress{}, invalid("endDate", ErrInvalidDateRange)
	}

	spent := decimal.Zero
	for _, tx := range txs {
		if err := checkAggregatable(tx); err != nil {
			return BudgetProgress{}, err
		}
		if tx.Type != Expense || tx.CategoryID == "" || tx.CategoryID != b.CategoryID {
			continue
		}
		if !DateOf(tx.Date).Within(b.StartDate, b.EndDate) {
			continue
		}
		spent = spent.Add(tx.Amount)
	}

	p := BudgetProgress{
		Limit:      b.Amount,
		Spent:      spent,
		Remaining:  decimal.Max(b.Amount.Sub(spent), decimal.Zero),
		Percentage: percentOfLimit(spent, b.Amount),
		Exceeded:   spent.GreaterThan(b.Amount),
		OverBy:     decimal.Zero,
	}
	if p.Exceeded {
		p.OverBy = spent.Sub(b.Amount)
	}
	return p, nil
}

// percentOfLimit is min(spent/limit*100, 100). A zero limit reads as empty
// until anything is spent, then as full.
func percentOfLimit(spent, limit decimal.Decimal) decimal.Decimal {
	if limit.IsZero() {
		if spent.IsPositive() {
			return hundred
		}
		return decimal.Zero
	}
	pct := spent.Mul(hundred).Div(limit)
	return decimal.Min(pct, hundred)
}

// ComputeCategoryTotals counts and sums every transaction of c, with no date
// filtering.
func ComputeCategoryTotals(c Category, txs []Transaction) (CategoryTotals, error) {
	totals := CategoryTotals{Total: decimal.Zero}
	for _, tx := range txs {
		if tx.CategoryID == "" || tx.CategoryID != c.ID {
			continue
		}
		if err := checkAggregatable(tx); err != nil {
			return CategoryTotals{}, err
		}
		totals.Count++
		totals.Total = totals.Total.Add(tx.Amount)
	}
	return totals, nil
}

// ComputeDashboardTotals sums income and expense across all transactions and
// the balances of every wallet.
func ComputeDashboardTotals(wallets []Wallet, txs []Transaction) (DashboardTotals, error) {
	income, expense := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		if err := checkAggregatable(tx); err != nil {
			return DashboardTotals{}, err
		}
		switch tx.Type {
		case Income:
			income = income.Add(tx.Amount)
		case Expense:
			expense = expense.Add(tx.Amount)
		}
	}

	byWallet := groupByWallet(txs)
	balance := decimal.Zero
	for _, w := range wallets {
		b, err := ComputeWalletBalance(w, byWallet[w.ID])
		if err != nil {
			return DashboardTotals{}, err
		}
		balance = balance.Add(b)
	}

	totals := DashboardTotals{
		TotalIncome:  income,
		TotalExpense: expense,
		TotalBalance: balance,
		NetSavings:   income.Sub(expense),
	}
	if income.IsPositive() {
		totals.SavingsRate = decimal.NewNullDecimal(totals.NetSavings.Mul(hundred).Div(income))
	}
	return totals, nil
}

func groupByWallet(txs []Transaction) map[string][]Transaction {
	out := make(map[string][]Transaction)
	for _, tx := range txs {
		out[tx.WalletID] = append(out[tx.WalletID], tx)
	}
	return out
}
