package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDateValidate(t *testing.T) {
	assert.NoError(t, NewDate(2025, 1, 1).Validate())
	assert.ErrorIs(t, Date{}.Validate(), ErrInvalidDate)
}

func TestDateOfDropsClock(t *testing.T) {
	d := DateOf(time.Date(2025, 3, 14, 23, 59, 59, 0, time.UTC))
	assert.Equal(t, NewDate(2025, 3, 14), d)
	assert.Equal(t, "2025-03-14", d.String())
}

func TestDateWithin(t *testing.T) {
	start, end := NewDate(2025, 1, 1), NewDate(2025, 1, 31)
	assert.True(t, start.Within(start, end))
	assert.True(t, end.Within(start, end))
	assert.False(t, NewDate(2024, 12, 31).Within(start, end))
	assert.False(t, NewDate(2025, 2, 1).Within(start, end))
}

func TestDateJSON(t *testing.T) {
	b, err := NewDate(2025, 6, 1).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2025-06-01"`, string(b))

	var d Date
	require.NoError(t, d.UnmarshalJSON([]byte(`"2025-06-01"`)))
	assert.Equal(t, NewDate(2025, 6, 1), d)
	assert.Error(t, d.UnmarshalJSON([]byte(`"06/01/2025"`)))
}

func TestWalletValidate(t *testing.T) {
	good := Wallet{Name: "Cash", Type: Cash, Currency: "USD"}
	require.NoError(t, good.Validate())

	cases := map[string]struct {
		w    Wallet
		want error
	}{
		"empty name":     {Wallet{Name: " ", Type: Cash, Currency: "USD"}, ErrEmptyName},
		"long name":      {Wallet{Name: strings.Repeat("x", 101), Type: Cash, Currency: "USD"}, ErrNameTooLong},
		"bad type":       {Wallet{Name: "x", Type: "piggy", Currency: "USD"}, ErrInvalidWalletType},
		"bad currency":   {Wallet{Name: "x", Type: Bank, Currency: "usd"}, ErrInvalidCurrency},
		"short currency": {Wallet{Name: "x", Type: Bank, Currency: "US"}, ErrInvalidCurrency},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := tc.w.Validate()
			assert.ErrorIs(t, err, tc.want)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestCategoryValidate(t *testing.T) {
	assert.NoError(t, Category{Name: "Food", Type: Expense}.Validate())
	assert.ErrorIs(t, Category{Name: "Food", Type: "gift"}.Validate(), ErrInvalidType)
	assert.ErrorIs(t, Category{Type: Income}.Validate(), ErrEmptyName)
}

func TestTransactionValidate(t *testing.T) {
	base := Transaction{
		WalletID: "w1",
		Type:     Expense,
		Amount:   dec("45.50"),
		Date:     time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC),
		Tags:     []string{"food"},
	}
	require.NoError(t, base.Validate())

	mutate := func(f func(*Transaction)) Transaction {
		tx := base
		f(&tx)
		return tx
	}
	cases := map[string]struct {
		tx   Transaction
		want error
	}{
		"bad type":    {mutate(func(tx *Transaction) { tx.Type = "transfer" }), ErrInvalidType},
		"zero amount": {mutate(func(tx *Transaction) { tx.Amount = decimal.Zero }), ErrInvalidAmount},
		"negative":    {mutate(func(tx *Transaction) { tx.Amount = dec("-1") }), ErrInvalidAmount},
		"no wallet":   {mutate(func(tx *Transaction) { tx.WalletID = "" }), ErrMissingWallet},
		"no date":     {mutate(func(tx *Transaction) { tx.Date = time.Time{} }), ErrInvalidDate},
		"long desc":   {mutate(func(tx *Transaction) { tx.Description = strings.Repeat("d", 201) }), ErrDescriptionTooLong},
		"empty tag":   {mutate(func(tx *Transaction) { tx.Tags = []string{""} }), ErrInvalidTags},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, tc.tx.Validate(), tc.want)
		})
	}
}

func TestCheckCategory(t *testing.T) {
	tx := Transaction{Type: Income}
	assert.NoError(t, tx.CheckCategory(Category{Type: Income}))

	err := tx.CheckCategory(Category{Type: Expense})
	assert.ErrorIs(t, err, ErrCategoryTypeMismatch)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "categoryId", ve.Field)
	assert.Equal(t, "categoryId: category type does not match transaction type", err.Error())
}

func TestBudgetValidate(t *testing.T) {
	good := Budget{CategoryID: "c1", Amount: dec("200"), StartDate: NewDate(2025, 1, 1), EndDate: NewDate(2025, 1, 31)}
	require.NoError(t, good.Validate())

	sameDay := good
	sameDay.EndDate = good.StartDate
	assert.NoError(t, sameDay.Validate())

	inverted := good
	inverted.EndDate = NewDate(2024, 12, 31)
	assert.ErrorIs(t, inverted.Validate(), ErrInvalidDateRange)

	noCat := good
	noCat.CategoryID = ""
	assert.ErrorIs(t, noCat.Validate(), ErrMissingCategory)

	zero := good
	zero.Amount = decimal.Zero
	assert.ErrorIs(t, zero.Validate(), ErrInvalidAmount)
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Food ", "lunch", "", "food", "LUNCH"})
	assert.Equal(t, []string{"food", "lunch"}, got)
	assert.Empty(t, NormalizeTags(nil))
}

func TestWalletTypeLabel(t *testing.T) {
	assert.Equal(t, "Credit Card", CreditCard.Label())
	assert.Equal(t, "Bank Account", Bank.Label())
}
