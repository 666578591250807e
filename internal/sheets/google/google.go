package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"installments/internal/cache"
	"installments/internal/config"
	"installments/internal/core"
	ports "installments/internal/sheets"
)

const (
	installmentColumns = "A:J"
	statusColumns      = "A:E"
	rowCacheSize       = 1000
	rowCacheTTL        = 10 * time.Minute
)

// Client mirrors installments and card statuses into a spreadsheet. Rows are
// keyed by installment id (column A) and by period plus card id (columns A and B).
type Client struct {
	svc               *gsheet.Service
	spreadsheetID     string
	installmentsSheet string
	statusSheet       string

	// serializes find-then-write so two events for one id never append twice
	mu             sync.Mutex
	installmentRow *cache.LRUCache[int64, int]
	statusRow      *cache.LRUCache[string, int]
}

var _ ports.Exporter = (*Client)(nil)

// Options configures a Client built around an existing service.
type Options struct {
	SpreadsheetID     string
	InstallmentsSheet string
	StatusSheet       string
}

// NewFromConfig creates a Sheets client authenticated with the configured
// service account.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Client, error) {
	if err := cfg.ValidateSheets(); err != nil {
		return nil, err
	}
	creds, err := credentialsJSON(ctx, cfg)
	if err != nil {
		return nil, err
	}
	// The token source rides on the pooled transport; passing both an HTTP
	// client and credentials to NewService would drop the credentials.
	base := context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	sa, err := googleoauth.CredentialsFromJSON(base, creds, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}
	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(oauth2.NewClient(base, sa.TokenSource)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"installments_sheet", cfg.GoogleSheetName,
		"status_sheet", cfg.GoogleStatusSheetName)

	return New(svc, Options{
		SpreadsheetID:     cfg.GoogleSpreadsheetID,
		InstallmentsSheet: cfg.GoogleSheetName,
		StatusSheet:       cfg.GoogleStatusSheetName,
	})
}

// New wraps an existing service. Tests point it at a fake endpoint.
func New(svc *gsheet.Service, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if opts.InstallmentsSheet == "" {
		opts.InstallmentsSheet = "Installments"
	}
	if opts.StatusSheet == "" {
		opts.StatusSheet = "Card Status"
	}
	return &Client{
		svc:               svc,
		spreadsheetID:     opts.SpreadsheetID,
		installmentsSheet: opts.InstallmentsSheet,
		statusSheet:       opts.StatusSheet,
		installmentRow:    cache.NewLRUCache[int64, int](rowCacheSize, rowCacheTTL),
		statusRow:         cache.NewLRUCache[string, int](rowCacheSize, rowCacheTTL),
	}, nil
}

// RegisterCaches hands the row caches to a cleanup manager.
func (c *Client) RegisterCaches(m *cache.Manager) {
	m.Register(c.installmentRow)
	m.Register(c.statusRow)
}

func credentialsJSON(ctx context.Context, cfg *config.Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.GoogleServiceAccountJSON) != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		return []byte(cfg.GoogleServiceAccountJSON), nil
	case cfg.GoogleServiceAccountFile != "":
		data, err := os.ReadFile(cfg.GoogleServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Read service account credentials", "path", cfg.GoogleServiceAccountFile, "size", len(data))
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// newHTTPClientWithPooling keeps connections to the Sheets API warm between
// sync batches.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

func (c *Client) UpsertInstallment(ctx context.Context, inst core.Installment) (string, error) {
	if inst.ID <= 0 {
		return "", errors.New("installment without id")
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := strconv.FormatInt(inst.ID, 10)
	row, ok := c.installmentRow.Get(inst.ID)
	if !ok {
		var err error
		row, err = c.findRow(ctx, c.installmentsSheet, installmentColumns, func(cells []string) bool {
			return cell(cells, 0) == key
		})
		if err != nil {
			return "", err
		}
	}

	ref, row, err := c.writeRow(ctx, c.installmentsSheet, installmentColumns, row, installmentValues(inst))
	if err != nil {
		return "", err
	}
	c.installmentRow.Set(inst.ID, row)
	return ref, nil
}

// DeleteInstallment clears the row rather than removing it so cached row
// numbers of other installments stay valid.
func (c *Client) DeleteInstallment(ctx context.Context, id int64) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := strconv.FormatInt(id, 10)
	row, ok := c.installmentRow.Get(id)
	if !ok {
		var err error
		row, err = c.findRow(ctx, c.installmentsSheet, installmentColumns, func(cells []string) bool {
			return cell(cells, 0) == key
		})
		if err != nil {
			return err
		}
	}
	c.installmentRow.Delete(id)
	if row == 0 {
		slog.DebugContext(ctx, "Installment row not found, nothing to clear", "installment_id", id)
		return nil
	}

	rng := rowRange(c.installmentsSheet, installmentColumns, row)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	return nil
}

func (c *Client) UpsertStatus(ctx context.Context, st core.MonthlyStatus, cardName string) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	period := st.Period.String()
	cardID := strconv.FormatInt(st.CardID, 10)
	key := period + "|" + cardID
	row, ok := c.statusRow.Get(key)
	if !ok {
		var err error
		row, err = c.findRow(ctx, c.statusSheet, statusColumns, func(cells []string) bool {
			return cell(cells, 0) == period && cell(cells, 1) == cardID
		})
		if err != nil {
			return "", err
		}
	}

	ref, row, err := c.writeRow(ctx, c.statusSheet, statusColumns, row, statusValues(st, cardName))
	if err != nil {
		return "", err
	}
	c.statusRow.Set(key, row)
	return ref, nil
}

// findRow returns the 1-based row whose cells match, or 0.
func (c *Client) findRow(ctx context.Context, sheet, columns string, match func([]string) bool) (int, error) {
	rng := fmt.Sprintf("%s!%s", sheet, columns)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", rng, err)
	}
	return matchRow(resp.Values, match), nil
}

// writeRow updates row in place, or appends when row is 0.
func (c *Client) writeRow(ctx context.Context, sheet, columns string, row int, values []any) (string, int, error) {
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	if row > 0 {
		rng := rowRange(sheet, columns, row)
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
			return "", 0, fmt.Errorf("update %s: %w", rng, err)
		}
		return rng, row, nil
	}

	rng := fmt.Sprintf("%s!%s", sheet, columns)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", 0, fmt.Errorf("append to %s: %w", sheet, err)
	}
	if resp.Updates == nil {
		return "", 0, fmt.Errorf("append to %s: empty response", sheet)
	}
	row, err = rowFromRange(resp.Updates.UpdatedRange)
	if err != nil {
		return "", 0, err
	}
	return resp.Updates.UpdatedRange, row, nil
}
