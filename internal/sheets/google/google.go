package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"shiire/internal/core"
	ports "shiire/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultSheetName = "Sessions"

// Options configures the Sheets mirror. Credentials come from CredentialsJSON,
// then CredentialsFile, then GOOGLE_APPLICATION_CREDENTIALS. ClientOptions
// are appended last and may replace the transport entirely.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	ClientOptions   []goption.ClientOption
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	// opMu serializes read-then-delete cycles so two replacements of the
	// same session cannot interleave.
	opMu    sync.Mutex
	sheetID *int64
}

var _ ports.SessionMirror = (*Client)(nil)

func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(opts.SheetName)
	if sheetName == "" {
		sheetName = defaultSheetName
	}

	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(opts.CredentialsJSON)
	serviceAccountFile := strings.TrimSpace(opts.CredentialsFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var clientOpts []goption.ClientOption
	switch {
	case serviceAccountJSON != "":
		clientOpts = append(clientOpts, goption.WithCredentialsJSON([]byte(serviceAccountJSON)))
	case serviceAccountFile != "":
		credentialsJSON, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		clientOpts = append(clientOpts, goption.WithCredentialsJSON(credentialsJSON))
	case len(opts.ClientOptions) == 0:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	clientOpts = append(clientOpts, goption.WithScopes(gsheet.SpreadsheetsScope))
	clientOpts = append(clientOpts, opts.ClientOptions...)

	service, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "has_inline_credentials", serviceAccountJSON != "")
	return service, nil
}

// ReplaceSession deletes the rows whose first column is the session id and
// appends the fresh analysis. An empty sheet gets the header row first.
func (c *Client) ReplaceSession(ctx context.Context, session core.PurchaseSession, stores []core.StoreAnalysis) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	c.opMu.Lock()
	defer c.opMu.Unlock()

	ids, err := c.readIDColumn(ctx)
	if err != nil {
		return err
	}
	if err := c.deleteRows(ctx, matchingRows(ids, session.ID)); err != nil {
		return err
	}

	rows := ports.Rows(session, stores)
	if len(ids) == 0 {
		rows = append([][]string{ports.Header}, rows...)
	}
	if len(rows) == 0 {
		return nil
	}
	vr := &gsheet.ValueRange{Values: toValues(rows)}
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.a1("A:P"), vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append rows to %s: %w", c.sheetName, err)
	}
	slog.InfoContext(ctx, "Session mirrored to sheet",
		"session_id", session.ID,
		"sheet", c.sheetName,
		"stores", len(stores))
	return nil
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	c.opMu.Lock()
	defer c.opMu.Unlock()

	ids, err := c.readIDColumn(ctx)
	if err != nil {
		return err
	}
	return c.deleteRows(ctx, matchingRows(ids, sessionID))
}

func (c *Client) readIDColumn(ctx context.Context) ([][]any, error) {
	rng := c.a1("A:A")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (c *Client) deleteRows(ctx context.Context, rows []int) error {
	if len(rows) == 0 {
		return nil
	}
	sheetID, err := c.resolveSheetID(ctx)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: deleteRequests(sheetID, rows)}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete %d rows from %s: %w", len(rows), c.sheetName, err)
	}
	return nil
}

// resolveSheetID looks up the numeric id of the mirror tab once.
func (c *Client) resolveSheetID(ctx context.Context) (int64, error) {
	if c.sheetID != nil {
		return *c.sheetID, nil
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == c.sheetName {
			id := sh.Properties.SheetId
			c.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", c.sheetName)
}

func (c *Client) a1(cols string) string {
	return quoteSheet(c.sheetName) + "!" + cols
}

// quoteSheet wraps sheet names that are not plain words in single quotes.
func quoteSheet(name string) string {
	for _, r := range name {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z') {
			return "'" + strings.ReplaceAll(name, "'", "''") + "'"
		}
	}
	return name
}

// matchingRows returns the zero-based indices of rows whose first cell is id.
func matchingRows(values [][]any, id string) []int {
	var out []int
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			out = append(out, i)
		}
	}
	return out
}

// deleteRequests merges adjacent rows into ranges and orders them bottom up
// so earlier deletions do not shift the later ones.
func deleteRequests(sheetID int64, rows []int) []*gsheet.Request {
	sorted := append([]int(nil), rows...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))

	var reqs []*gsheet.Request
	for i := 0; i < len(sorted); {
		end := sorted[i] + 1
		start := sorted[i]
		j := i + 1
		for j < len(sorted) && sorted[j] == start-1 {
			start = sorted[j]
			j++
		}
		reqs = append(reqs, &gsheet.Request{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:         sheetID,
					Dimension:       "ROWS",
					StartIndex:      int64(start),
					EndIndex:        int64(end),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		})
		i = j
	}
	return reqs
}

func toValues(rows [][]string) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		vals := make([]any, len(r))
		for j, v := range r {
			vals[j] = v
		}
		out[i] = vals
	}
	return out
}
