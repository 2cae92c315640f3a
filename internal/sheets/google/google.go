// Package google mirrors ledger transactions into a Google Sheets tab, one
// row per transaction keyed by id in column A.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"carteira/internal/core"
	"carteira/internal/log"
	ports "carteira/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	defaultSheetName     = "Transactions"
	defaultRowCacheValid = 2 * time.Minute
)

// Config selects the spreadsheet and the service account used to reach it.
// When neither credential field is set GOOGLE_APPLICATION_CREDENTIALS is read.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountFile string
	ServiceAccountJSON string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger

	// Row cache: id -> 1-based row, plus the last used row of column A.
	mu                 sync.Mutex
	rows               map[string]int
	cachedRowCount     int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
	sheetID            *int64
}

var _ ports.TransactionMirror = (*Client)(nil)

// New builds a client authenticated with service account credentials.
func New(ctx context.Context, cfg Config) (*Client, error) {
	creds, err := credentialsJSON(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithOptions(ctx, cfg,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

// NewWithOptions builds a client from explicit API options. Credentials in
// cfg are ignored.
func NewWithOptions(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = defaultSheetName
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	logger := log.ForComponent(log.ComponentSheets)
	logger.InfoContext(ctx, "Google Sheets service created", "sheet", sheet)

	return &Client{
		svc:                svc,
		spreadsheetID:      id,
		sheetName:          sheet,
		logger:             logger,
		cacheValidDuration: defaultRowCacheValid,
	}, nil
}

func credentialsJSON(cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.ServiceAccountJSON)
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// Upsert writes tx to its existing row, or appends a row after the last one.
// The header row is written first when the sheet is empty.
func (c *Client) Upsert(ctx context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadRowsLocked(ctx); err != nil {
		return "", err
	}

	row, exists := c.rows[tx.ID]
	if !exists {
		row = c.cachedRowCount + 1
	}
	ref := rowRange(c.sheetName, row)

	vr := &gsheet.ValueRange{Values: [][]any{transactionRow(tx)}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, ref, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		c.invalidateLocked()
		return "", fmt.Errorf("write row %d: %w", row, err)
	}

	c.rows[tx.ID] = row
	if row > c.cachedRowCount {
		c.cachedRowCount = row
	}
	return ref, nil
}

// Remove deletes the row holding id and shifts the rows below it up.
func (c *Client) Remove(ctx context.Context, id string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadRowsLocked(ctx); err != nil {
		return err
	}
	row, ok := c.rows[id]
	if !ok {
		return nil
	}

	sheetID, err := c.sheetIDLocked(ctx)
	if err != nil {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
					// Zero is a valid sheet id and start index.
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	c.invalidateLocked()
	if err != nil {
		return fmt.Errorf("delete row %d: %w", row, err)
	}

	c.logger.DebugContext(ctx, "Removed mirrored transaction",
		log.FieldTransactionID, id,
		"row", row)
	return nil
}

// InvalidateRowCache forces the next call to re-read column A.
func (c *Client) InvalidateRowCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked()
}

func (c *Client) invalidateLocked() {
	c.rows = nil
	c.cacheExpiresAt = time.Time{}
}

func (c *Client) loadRowsLocked(ctx context.Context) error {
	if c.rows != nil && time.Now().Before(c.cacheExpiresAt) {
		return nil
	}

	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.sheetName+"!A:A").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("read ids: %w", err)
	}

	if len(resp.Values) == 0 {
		vr := &gsheet.ValueRange{Values: [][]any{headerRow()}}
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rowRange(c.sheetName, 1), vr).
			ValueInputOption("RAW").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		c.rows = map[string]int{}
		c.cachedRowCount = 1
	} else {
		c.rows = indexRows(resp.Values)
		c.cachedRowCount = len(resp.Values)
	}

	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	return nil
}

func (c *Client) sheetIDLocked(ctx context.Context) (int64, error) {
	if c.sheetID != nil {
		return *c.sheetID, nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == c.sheetName {
			id := s.Properties.SheetId
			c.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", c.sheetName)
}
