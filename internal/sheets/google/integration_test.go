//go:build integration

package google

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"finetrail/internal/log"
)

// Run with: go test -tags=integration ./internal/sheets/google
func TestIntegration_MirrorLedger(t *testing.T) {
	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	opts := Options{
		SpreadsheetID:   spreadsheetID,
		Prefix:          "Integration",
		CredentialsJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		CredentialsFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	}
	if opts.CredentialsJSON == "" && opts.CredentialsFile == "" {
		t.Skip("service account credentials not configured, skipping integration test")
	}

	ctx := context.Background()
	c, err := New(ctx, opts, log.Discard())
	require.NoError(t, err)
	require.NoError(t, c.MirrorLedger(ctx, snapshot("integration-user")))
}
