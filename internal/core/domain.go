package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Cash       WalletType = "cash"
	Bank       WalletType = "bank"
	CreditCard WalletType = "credit_card"
	Crypto     WalletType = "crypto"
)

const (
	maxNameLength        = 100
	maxDescriptionLength = 200
	maxTags              = 20
	maxTagLength         = 40
)

type (
	// TransactionType classifies both transactions and categories, so a
	// category accepts only transactions of its own type.
	TransactionType string

	WalletType string

	Wallet struct {
		ID            string          `json:"id"`
		UserID        string          `json:"userId"`
		Name          string          `json:"name"`
		Type          WalletType      `json:"type"`
		Currency      string          `json:"currency"`
		InitialAmount decimal.Decimal `json:"initialAmount"`
		Color         string          `json:"color,omitempty"`
		Icon          string          `json:"icon,omitempty"`
		CreatedAt     time.Time       `json:"createdAt"`
	}

	Category struct {
		ID        string          `json:"id"`
		UserID    string          `json:"userId"`
		Name      string          `json:"name"`
		Type      TransactionType `json:"type"`
		Color     string          `json:"color,omitempty"`
		Emoji     string          `json:"emoji,omitempty"`
		IsDefault bool            `json:"isDefault"`
		CreatedAt time.Time       `json:"createdAt"`
	}

	Transaction struct {
		ID          string          `json:"id"`
		UserID      string          `json:"userId"`
		WalletID    string          `json:"walletId"`
		CategoryID  string          `json:"categoryId,omitempty"` // empty when uncategorized
		Type        TransactionType `json:"type"`
		Amount      decimal.Decimal `json:"amount"`
		Date        time.Time       `json:"date"`
		Description string          `json:"description,omitempty"`
		Tags        []string        `json:"tags"`
		CreatedAt   time.Time       `json:"createdAt"`
	}

	Budget struct {
		ID         string          `json:"id"`
		UserID     string          `json:"userId"`
		CategoryID string          `json:"categoryId"`
		Amount     decimal.Decimal `json:"amount"`
		Period     string          `json:"period"` // descriptive label only
		StartDate  Date            `json:"startDate"`
		EndDate    Date            `json:"endDate"`
		CreatedAt  time.Time       `json:"createdAt"`
	}
)

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidType          = errors.New("invalid transaction type")
	ErrInvalidWalletType    = errors.New("invalid wallet type")
	ErrInvalidCurrency      = errors.New("invalid currency code")
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidDateRange     = errors.New("end date before start date")
	ErrEmptyName            = errors.New("empty name")
	ErrDuplicateName        = errors.New("name already in use")
	ErrNameTooLong          = errors.New("name too long (max 100 characters)")
	ErrDescriptionTooLong   = errors.New("description too long (max 200 characters)")
	ErrInvalidTags          = errors.New("invalid tags")
	ErrMissingUser          = errors.New("missing user")
	ErrMissingWallet        = errors.New("missing wallet reference")
	ErrMissingCategory      = errors.New("missing category reference")
	ErrCategoryTypeMismatch = errors.New("category type does not match transaction type")
)

// ValidationError ties a sentinel error to the offending field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (t WalletType) Valid() bool {
	switch t {
	case Cash, Bank, CreditCard, Crypto:
		return true
	default:
		return false
	}
}

// Label returns the human readable name of the wallet type.
func (t WalletType) Label() string {
	switch t {
	case CreditCard:
		return "Credit Card"
	case Crypto:
		return "Cryptocurrency"
	case Bank:
		return "Bank Account"
	case Cash:
		return "Cash"
	default:
		return strings.ReplaceAll(string(t), "_", " ")
	}
}

// SignedAmount returns the amount as it affects a wallet balance.
func (tx Transaction) SignedAmount() decimal.Decimal {
	if tx.Type == Expense {
		return tx.Amount.Neg()
	}
	return tx.Amount
}

func (w Wallet) Validate() error {
	if err := validateName(w.Name); err != nil {
		return err
	}
	if !w.Type.Valid() {
		return invalid("type", ErrInvalidWalletType)
	}
	if !validCurrency(w.Currency) {
		return invalid("currency", ErrInvalidCurrency)
	}
	return nil
}

func (c Category) Validate() error {
	if err := validateName(c.Name); err != nil {
		return err
	}
	if !c.Type.Valid() {
		return invalid("type", ErrInvalidType)
	}
	return nil
}

// Validate checks a transaction before it is written. The referenced wallet
// and category are checked against the store by the caller.
func (tx Transaction) Validate() error {
	if !tx.Type.Valid() {
		return invalid("type", ErrInvalidType)
	}
	if !tx.Amount.IsPositive() {
		return invalid("amount", ErrInvalidAmount)
	}
	if strings.TrimSpace(tx.WalletID) == "" {
		return invalid("walletId", ErrMissingWallet)
	}
	if tx.Date.IsZero() {
		return invalid("date", ErrInvalidDate)
	}
	if len(tx.Description) > maxDescriptionLength {
		return invalid("description", ErrDescriptionTooLong)
	}
	if len(tx.Tags) > maxTags {
		return invalid("tags", ErrInvalidTags)
	}
	for _, tag := range tx.Tags {
		if tag == "" || len(tag) > maxTagLength {
			return invalid("tags", ErrInvalidTags)
		}
	}
	return nil
}

// CheckCategory enforces that the transaction fits the category it references.
func (tx Transaction) CheckCategory(c Category) error {
	if c.Type != tx.Type {
		return invalid("categoryId", ErrCategoryTypeMismatch)
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.CategoryID) == "" {
		return invalid("categoryId", ErrMissingCategory)
	}
	if !b.Amount.IsPositive() {
		return invalid("amount", ErrInvalidAmount)
	}
	if err := b.StartDate.Validate(); err != nil {
		return invalid("startDate", err)
	}
	if err := b.EndDate.Validate(); err != nil {
		return invalid("endDate", err)
	}
	if b.EndDate.Before(b.StartDate.Time) {
		return invalid("endDate", ErrInvalidDateRange)
	}
	return nil
}

// NormalizeTags trims, drops empties and de-duplicates while keeping order.
func NormalizeTags(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("name", ErrEmptyName)
	}
	if len(name) > maxNameLength {
		return invalid("name", ErrNameTooLong)
	}
	return nil
}

func validCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
