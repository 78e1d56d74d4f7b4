// Package export writes a user's transactions as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"finetrail/internal/core"
)

// TagSeparator joins tags inside the tags column.
const TagSeparator = "|"

// Row is one exported transaction. Amounts are unsigned; Type carries the
// direction.
type Row struct {
	Date        string `csv:"date"`
	Type        string `csv:"type"`
	Wallet      string `csv:"wallet"`
	Category    string `csv:"category"`
	Description string `csv:"description"`
	Amount      string `csv:"amount"`
	Currency    string `csv:"currency"`
	Tags        string `csv:"tags"`
	ID          string `csv:"id"`
}

// Rows flattens every transaction of snap, newest first.
func Rows(snap core.Snapshot) []Row {
	views := core.BuildTransactionViews(snap, 0)
	rows := make([]Row, 0, len(views))
	for _, v := range views {
		rows = append(rows, Row{
			Date:        core.DateOf(v.Date).String(),
			Type:        string(v.Type),
			Wallet:      v.WalletName,
			Category:    v.CategoryName,
			Description: v.Description,
			Amount:      v.Amount.StringFixed(2),
			Currency:    v.Currency,
			Tags:        strings.Join(v.Tags, TagSeparator),
			ID:          v.ID,
		})
	}
	return rows
}

// Write marshals the transactions of snap to w, header included.
func Write(w io.Writer, snap core.Snapshot) (int, error) {
	rows := Rows(snap)
	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(csv.NewWriter(w))); err != nil {
		return 0, fmt.Errorf("write transactions csv: %w", err)
	}
	return len(rows), nil
}

// WriteFile writes the export to path, creating its directory.
func WriteFile(path string, snap core.Snapshot) (int, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return 0, fmt.Errorf("create export directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create export file: %w", err)
	}
	n, err := Write(f, snap)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close export file: %w", cerr)
	}
	return n, err
}

// Read parses an export back into rows.
func Read(r io.Reader) ([]Row, error) {
	var rows []Row
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("read transactions csv: %w", err)
	}
	return rows, nil
}

// Filename is the suggested download name, e.g. "finetrail-alice-2025-03-01.csv".
func Filename(userID string, now time.Time) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, userID)
	return fmt.Sprintf("finetrail-%s-%s.csv", safe, now.Format("2006-01-02"))
}
