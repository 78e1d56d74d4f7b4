// Package google mirrors ledgers into a Google Sheets spreadsheet, one tab
// per user.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finetrail/internal/core"
	"finetrail/internal/log"
	ports "finetrail/internal/sheets"
)

const (
	transactionsColumns = "A:H"
	summaryColumns      = "J:K"
	maxTabTitle         = 100
	defaultTabsTTL      = 10 * time.Minute
)

type Options struct {
	SpreadsheetID   string
	Prefix          string
	CredentialsJSON string
	CredentialsFile string
	// ClientOptions replace the credential options when set; tests point the
	// client at a local server this way.
	ClientOptions []goption.ClientOption
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	prefix        string
	logger        *log.Logger
	now           func() time.Time

	// Tab titles known to exist, refreshed from the spreadsheet metadata
	// once tabsExpiresAt has passed.
	mu            sync.Mutex
	tabs          map[string]bool
	tabsExpiresAt time.Time
	tabsTTL       time.Duration
}

var _ ports.LedgerMirror = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	clientOpts := opts.ClientOptions
	if len(clientOpts) == 0 {
		creds, err := credentials(opts)
		if err != nil {
			return nil, err
		}
		clientOpts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}
	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", opts.SpreadsheetID)

	prefix := strings.TrimSpace(opts.Prefix)
	if prefix == "" {
		prefix = "Ledger"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		prefix:        prefix,
		logger:        logger,
		now:           time.Now,
		tabs:          make(map[string]bool),
		tabsTTL:       defaultTabsTTL,
	}, nil
}

// credentials reads inline JSON first, then the credentials file.
func credentials(opts Options) ([]byte, error) {
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		return []byte(opts.CredentialsJSON), nil
	case strings.TrimSpace(opts.CredentialsFile) != "":
		data, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// MirrorLedger rewrites the user's tab: transactions in A:H, summary in J:K.
func (c *Client) MirrorLedger(ctx context.Context, snap core.Snapshot) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if strings.TrimSpace(snap.UserID) == "" {
		return core.ErrMissingUser
	}
	summary, err := ports.SummaryRows(snap, c.now())
	if err != nil {
		return fmt.Errorf("build summary: %w", err)
	}
	rows := ports.TransactionRows(snap)

	tab := c.TabTitle(snap.UserID)
	if err := c.ensureTab(ctx, tab); err != nil {
		return err
	}

	txRange := quoteTab(tab) + "!" + transactionsColumns
	sumRange := quoteTab(tab) + "!" + summaryColumns

	_, err = c.svc.Spreadsheets.Values.BatchClear(c.spreadsheetID, &gsheet.BatchClearValuesRequest{
		Ranges: []string{txRange, sumRange},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", tab, err)
	}

	_, err = c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data: []*gsheet.ValueRange{
			{Range: quoteTab(tab) + "!A1", Values: rows},
			{Range: quoteTab(tab) + "!J1", Values: summary},
		},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", tab, err)
	}

	c.logger.InfoContext(ctx, "Ledger mirrored",
		log.FieldUserID, snap.UserID, log.FieldSheetsRange, txRange, log.FieldCount, len(rows)-1)
	return nil
}

// TabTitle is "<prefix> <user>" with characters Sheets rejects in titles
// replaced and the length capped.
func (c *Client) TabTitle(userID string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', '*', '?', '/', '\\', ':', '\'':
			return '_'
		}
		return r
	}, strings.TrimSpace(userID))
	title := c.prefix + " " + clean
	if r := []rune(title); len(r) > maxTabTitle {
		title = string(r[:maxTabTitle])
	}
	return title
}

func quoteTab(title string) string {
	return "'" + title + "'"
}

func (c *Client) ensureTab(ctx context.Context, title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.now().After(c.tabsExpiresAt) {
		if err := c.refreshTabsLocked(ctx); err != nil {
			return err
		}
	}
	if c.tabs[title] {
		return nil
	}

	_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	c.tabs[title] = true
	c.logger.InfoContext(ctx, "Sheet created", "title", title)
	return nil
}

func (c *Client) refreshTabsLocked(ctx context.Context) error {
	resp, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet metadata: %w", err)
	}
	tabs := make(map[string]bool, len(resp.Sheets))
	for _, s := range resp.Sheets {
		if s.Properties != nil {
			tabs[s.Properties.Title] = true
		}
	}
	c.tabs = tabs
	c.tabsExpiresAt = c.now().Add(c.tabsTTL)
	return nil
}

// InvalidateTabs forces the next write to re-read the sheet titles.
func (c *Client) InvalidateTabs() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tabsExpiresAt = time.Time{}
}
