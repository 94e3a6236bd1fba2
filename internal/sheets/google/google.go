package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"tracker/internal/core"
	ports "tracker/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config selects the spreadsheet and the credentials used to reach it.
type Config struct {
	SpreadsheetID      string
	ReportSheet        string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// valuesAPI is the subset of the Sheets values API used by Client.
type valuesAPI interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	Update(ctx context.Context, spreadsheetID, rng string, rows [][]any) error
}

type Client struct {
	values        valuesAPI
	spreadsheetID string
	reportSheet   string
}

var _ ports.ReportWriter = (*Client)(nil)

// New creates a Sheets client with service account credentials.
// Credentials come from cfg, falling back to GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg.ServiceAccountJSON, cfg.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(serviceValues{svc: svc}, spreadsheetID, cfg.ReportSheet), nil
}

func newClient(values valuesAPI, spreadsheetID, reportSheet string) *Client {
	reportSheet = strings.TrimSpace(reportSheet)
	if reportSheet == "" {
		reportSheet = "Reports"
	}
	return &Client{values: values, spreadsheetID: spreadsheetID, reportSheet: reportSheet}
}

func newSheetsService(ctx context.Context, serviceAccountJSON, serviceAccountFile string) (*gsheet.Service, error) {
	serviceAccountJSON = strings.TrimSpace(serviceAccountJSON)
	serviceAccountFile = strings.TrimSpace(serviceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "credentials_size", len(credentialsJSON))
	return service, nil
}

// WriteReport replaces the row for the report's (user, year, month) or
// appends a new one. An empty sheet gets a header row first.
func (c *Client) WriteReport(ctx context.Context, r core.MonthReport) (string, error) {
	if c.values == nil {
		return "", errors.New("sheets service not initialized")
	}
	if r.UserID == "" {
		return "", errors.New("report without user")
	}

	keys, err := c.values.Get(ctx, c.spreadsheetID, fmt.Sprintf("%s!A:D", c.reportSheet))
	if err != nil {
		return "", fmt.Errorf("read report keys from %s: %w", c.reportSheet, err)
	}

	row := findRow(keys, r.UserID, r.Year, r.Month+1)
	if row == 0 {
		if len(keys) == 0 {
			hdr := fmt.Sprintf("%s!A1:%s1", c.reportSheet, lastColumn)
			if err := c.values.Update(ctx, c.spreadsheetID, hdr, [][]any{ports.ReportHeader}); err != nil {
				return "", fmt.Errorf("write header in %s: %w", c.reportSheet, err)
			}
			keys = append(keys, ports.ReportHeader)
		}
		row = len(keys) + 1
	}

	rng := fmt.Sprintf("%s!A%d:%s%d", c.reportSheet, row, lastColumn, row)
	if err := c.values.Update(ctx, c.spreadsheetID, rng, [][]any{r.Row()}); err != nil {
		return "", fmt.Errorf("write report row in %s: %w", c.reportSheet, err)
	}
	return rng, nil
}

// lastColumn is the column of the final field in core.MonthReport.Row.
const lastColumn = "N"

// findRow returns the 1-based sheet row holding the key, or 0.
// Columns are generated_at, user_id, year, month.
func findRow(values [][]any, userID string, year, month int) int {
	for i, v := range values {
		cells := toStrings(v)
		if len(cells) < 4 || cells[1] != userID {
			continue
		}
		y, errY := strconv.Atoi(cells[2])
		m, errM := strconv.Atoi(cells[3])
		if errY == nil && errM == nil && y == year && m == month {
			return i + 1
		}
	}
	return 0
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// serviceValues adapts *gsheet.Service to valuesAPI.
type serviceValues struct {
	svc *gsheet.Service
}

func (s serviceValues) Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s serviceValues) Update(ctx context.Context, spreadsheetID, rng string, rows [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Update(spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}
