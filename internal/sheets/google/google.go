package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"spendwise/internal/log"
	"spendwise/internal/sheets"
)

const lastColumn = "G"

// Client writes the expense mirror into one sheet of a spreadsheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
}

var _ sheets.ExpenseMirror = (*Client)(nil)

// Credentials selects the service account used to reach the spreadsheet.
// JSON wins over File.
type Credentials struct {
	JSON string
	File string
}

// NewFromCredentials creates a client authenticated as a service account.
func NewFromCredentials(ctx context.Context, spreadsheetID, sheet string, creds Credentials) (*Client, error) {
	credentialsJSON, err := creds.load()
	if err != nil {
		return nil, err
	}
	return New(ctx, spreadsheetID, sheet,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

// New creates a client with explicit client options.
func New(ctx context.Context, spreadsheetID, sheet string, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheet = strings.TrimSpace(sheet)
	if sheet == "" {
		return nil, errors.New("missing sheet name")
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheet: sheet}, nil
}

func (c Credentials) load() ([]byte, error) {
	switch {
	case strings.TrimSpace(c.JSON) != "":
		return []byte(c.JSON), nil
	case strings.TrimSpace(c.File) != "":
		b, err := os.ReadFile(c.File)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// EnsureHeader writes the header row when the sheet is empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	rng := c.a1(fmt.Sprintf("A1:%s1", lastColumn))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header %s: %w", rng, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	header := make([]any, len(sheets.Header))
	for i, h := range sheets.Header {
		header[i] = h
	}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{header}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header %s: %w", rng, err)
	}
	return nil
}

// Upsert rewrites the row keyed by the expense id or appends a new one.
func (c *Client) Upsert(ctx context.Context, row sheets.Row) error {
	n, err := c.findRow(ctx, row.ExpenseID)
	if err != nil {
		return err
	}
	vr := &gsheet.ValueRange{Values: [][]any{row.Values()}}

	if n > 0 {
		rng := c.rowRange(n)
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("update %s: %w", rng, err)
		}
		slog.DebugContext(ctx, "Updated expense row",
			log.FieldComponent, log.ComponentSheets,
			log.FieldExpenseID, row.ExpenseID,
			"range", rng)
		return nil
	}

	rng := c.a1("A:" + lastColumn)
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", c.sheet, err)
	}
	slog.DebugContext(ctx, "Appended expense row",
		log.FieldComponent, log.ComponentSheets,
		log.FieldExpenseID, row.ExpenseID)
	return nil
}

// Remove clears the row of expenseID, leaving an empty line behind.
func (c *Client) Remove(ctx context.Context, expenseID string) error {
	n, err := c.findRow(ctx, expenseID)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	rng := c.rowRange(n)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	return nil
}

// findRow returns the 1-based row holding expenseID in column A, or 0.
func (c *Client) findRow(ctx context.Context, expenseID string) (int, error) {
	rng := c.a1("A:A")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read ids from %s: %w", c.sheet, err)
	}
	return indexOf(resp.Values, expenseID), nil
}

func indexOf(column [][]any, id string) int {
	for i, row := range column {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1
		}
	}
	return 0
}

func (c *Client) rowRange(n int) string {
	return c.a1(fmt.Sprintf("A%d:%s%d", n, lastColumn, n))
}

// a1 prefixes cells with the quoted sheet name, so names holding spaces,
// punctuation or apostrophes still parse as A1 notation.
func (c *Client) a1(cells string) string {
	return quoteSheet(c.sheet) + "!" + cells
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
