// Package memory is an in-process sheets.LedgerMirror. It keeps the last
// rendered rows per user, which is enough for local runs and tests.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"finetrail/internal/core"
	"finetrail/internal/sheets"
)

// Sheet is what the mirror holds for one user.
type Sheet struct {
	Transactions [][]any
	Summary      [][]any
	Writes       int
}

type Mirror struct {
	mu       sync.Mutex
	sheets   map[string]Sheet
	now      func() time.Time
	failNext int
}

var _ sheets.LedgerMirror = (*Mirror)(nil)

var ErrInjected = errors.New("memory mirror: injected failure")

func New() *Mirror {
	return &Mirror{sheets: make(map[string]Sheet), now: time.Now}
}

func (m *Mirror) MirrorLedger(_ context.Context, snap core.Snapshot) error {
	if snap.UserID == "" {
		return core.ErrMissingUser
	}
	summary, err := sheets.SummaryRows(snap, m.now())
	if err != nil {
		return err
	}
	rows := sheets.TransactionRows(snap)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext > 0 {
		m.failNext--
		return ErrInjected
	}
	prev := m.sheets[snap.UserID]
	m.sheets[snap.UserID] = Sheet{Transactions: rows, Summary: summary, Writes: prev.Writes + 1}
	return nil
}

// FailNext makes the next n MirrorLedger calls return ErrInjected.
func (m *Mirror) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

// Sheet returns the mirrored content of userID.
func (m *Mirror) Sheet(userID string) (Sheet, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sheets[userID]
	return s, ok
}

// Users returns how many users have been mirrored.
func (m *Mirror) Users() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sheets)
}
