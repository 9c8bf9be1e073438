package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"tutorkasse/internal/core"
	ports "tutorkasse/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	defaultSheetName = "Kasse"
	defaultLayoutTTL = 2 * time.Minute
	valueInput       = "USER_ENTERED"
)

// Config selects the spreadsheet and the credentials used to reach it.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	LayoutTTL       time.Duration
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	// header layout cache, refreshed at most every layoutTTL
	mu              sync.Mutex
	layout          ports.Layout
	hasLayout       bool
	layoutExpiresAt time.Time
	layoutTTL       time.Duration
}

var _ ports.LedgerStore = (*Client)(nil)

// New creates a Sheets client. Credentials come from cfg unless opts already
// configure authentication (tests pass WithoutAuthentication and an endpoint).
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if len(opts) == 0 {
		creds, err := credentials(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts,
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return newClient(svc, cfg), nil
}

func newClient(svc *gsheet.Service, cfg Config) *Client {
	name := strings.TrimSpace(cfg.SheetName)
	if name == "" {
		name = defaultSheetName
	}
	ttl := cfg.LayoutTTL
	if ttl <= 0 {
		ttl = defaultLayoutTTL
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		sheetName:     name,
		layoutTTL:     ttl,
	}
}

func credentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

func (c *Client) rng(a1 string) string {
	return fmt.Sprintf("'%s'!%s", c.sheetName, a1)
}

// ReadAll loads the whole sheet. Malformed cells are coerced and logged.
func (c *Client) ReadAll(ctx context.Context) ([]core.Entry, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.rng("A:Z")).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("SERIAL_NUMBER").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.sheetName, err)
	}
	rows := toRows(resp.Values)
	if len(rows) > 0 {
		if l, ok := ports.ParseHeader(rows[0]); ok {
			c.storeLayout(l)
		}
	}
	entries, issues := ports.DecodeTable(rows)
	for _, is := range issues {
		slog.WarnContext(ctx, "Sheet cell coerced", "component", "sheets", "sheet", c.sheetName, "issue", is.String())
	}
	return entries, nil
}

// Append adds one row after the last row of the sheet, in the sheet's own
// column order. An empty sheet gets the canonical header first.
func (c *Client) Append(ctx context.Context, e core.Entry) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	layout, err := c.headerLayout(ctx)
	if err != nil {
		return "", err
	}
	if !layout.Has(ports.ColID) {
		slog.DebugContext(ctx, "Sheet has no ID column, id will be derived on read", "component", "sheets", "entry_id", e.ID)
	}
	vr := &gsheet.ValueRange{Values: [][]any{escapeFormulas(layout.Values(e))}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.rng("A1"), vr).
		ValueInputOption(valueInput).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", c.sheetName, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return c.sheetName, nil
}

// ReplaceAll writes the canonical header and entries from A1, then clears
// whatever the old table left below and to the right of them. A failed write
// leaves the previous rows in place.
func (c *Client) ReplaceAll(ctx context.Context, entries []core.Entry) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	layout := ports.CanonicalLayout()
	values := make([][]any, 0, len(entries)+1)
	header := make([]any, len(ports.Header))
	for i, h := range ports.Header {
		header[i] = h
	}
	values = append(values, header)
	for _, e := range ports.EnsureIDs(entries) {
		values = append(values, escapeFormulas(layout.Values(e)))
	}

	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.rng("A1"), &gsheet.ValueRange{Values: values}).
		ValueInputOption(valueInput).
		Context(ctx).Do(); err != nil {
		c.InvalidateLayout()
		return fmt.Errorf("write %s: %w", c.sheetName, err)
	}
	c.storeLayout(layout)

	req := &gsheet.BatchClearValuesRequest{Ranges: c.leftoverRanges(len(values), layout.Width())}
	if _, err := c.svc.Spreadsheets.Values.BatchClear(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear leftover rows of %s: %w", c.sheetName, err)
	}
	return nil
}

// leftoverRanges covers the cells of a previous, larger table: every row after
// rows and, when the sheet is wider than width, the columns right of it.
func (c *Client) leftoverRanges(rows, width int) []string {
	ranges := []string{c.rng(fmt.Sprintf("A%d:Z", rows+1))}
	if width < 26 {
		col := string(rune('A' + width))
		ranges = append(ranges, c.rng(fmt.Sprintf("%s1:Z%d", col, rows)))
	}
	return ranges
}

// headerLayout returns the cached header layout or reads row 1.
func (c *Client) headerLayout(ctx context.Context) (ports.Layout, error) {
	c.mu.Lock()
	if c.hasLayout && time.Now().Before(c.layoutExpiresAt) {
		l := c.layout
		c.mu.Unlock()
		return l, nil
	}
	c.mu.Unlock()

	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.rng("1:1")).Context(ctx).Do()
	if err != nil {
		return ports.Layout{}, fmt.Errorf("read header of %s: %w", c.sheetName, err)
	}
	rows := toRows(resp.Values)
	if len(rows) > 0 {
		if l, ok := ports.ParseHeader(rows[0]); ok {
			c.storeLayout(l)
			return l, nil
		}
		return ports.Layout{}, fmt.Errorf("sheet %s has an unrecognised header", c.sheetName)
	}

	header := make([]any, len(ports.Header))
	for i, h := range ports.Header {
		header[i] = h
	}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.rng("A1"), &gsheet.ValueRange{Values: [][]any{header}}).
		ValueInputOption(valueInput).Context(ctx).Do(); err != nil {
		return ports.Layout{}, fmt.Errorf("write header of %s: %w", c.sheetName, err)
	}
	l := ports.CanonicalLayout()
	c.storeLayout(l)
	return l, nil
}

func (c *Client) storeLayout(l ports.Layout) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layout = l
	c.hasLayout = true
	c.layoutExpiresAt = time.Now().Add(c.layoutTTL)
}

// InvalidateLayout forces the next Append to re-read the header row.
func (c *Client) InvalidateLayout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasLayout = false
	c.layoutExpiresAt = time.Time{}
}

func toRows(values [][]any) [][]string {
	rows := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = ports.CellString(v)
		}
		rows[i] = cells
	}
	return rows
}

// escapeFormulas keeps user text from being evaluated as a formula.
func escapeFormulas(values []any) []any {
	for i, v := range values {
		s, ok := v.(string)
		if ok && s != "" && strings.ContainsRune("=+-@", rune(s[0])) {
			values[i] = "'" + s
		}
	}
	return values
}
