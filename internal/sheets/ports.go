// Package sheets declares the spreadsheet mirror port and the row layout
// shared by its adapters.
package sheets

import (
	"context"

	"finetrail/internal/core"
)

// LedgerMirror publishes a read-only copy of one user's ledger.
type LedgerMirror interface {
	// MirrorLedger replaces the user's transactions and summary ranges with
	// the content of snap.
	MirrorLedger(ctx context.Context, snap core.Snapshot) error
}
