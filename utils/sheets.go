package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	models "github.com/phillip/contribution-pipeline-go/models"
	"github.com/phillip/contribution-pipeline-go/parser"
)

// DefaultSheetsURL is the Google Sheets v4 spreadsheets endpoint.
const DefaultSheetsURL = "https://sheets.googleapis.com/v4/spreadsheets"

const defaultSheetName = "Sheet1"

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// ExtractSpreadsheetID pulls the spreadsheet id out of a Google Sheets URL.
func ExtractSpreadsheetID(sheetURL string) (string, bool) {
	m := spreadsheetIDPattern.FindStringSubmatch(sheetURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// sheet append request payload
type appendRequest struct {
	Values [][]string `json:"values"`
}

// SheetsOption customises a SheetsClient.
type SheetsOption func(*SheetsClient)

// WithSheetsBaseURL points the client at another endpoint. Used by tests.
func WithSheetsBaseURL(baseURL string) SheetsOption {
	return func(c *SheetsClient) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithSheetsHTTPClient(client HTTPClient) SheetsOption {
	return func(c *SheetsClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// SheetsClient appends contribution rows to a spreadsheet.
type SheetsClient struct {
	spreadsheetID string
	sheetName     string
	apiKey        string
	baseURL       string
	httpClient    HTTPClient
}

// NewSheetsClient builds a client from a SHEETS integration blob. The
// spreadsheet id may be given directly or derived from the sheet URL.
func NewSheetsClient(cfg models.SheetsConfig, timeout time.Duration, opts ...SheetsOption) (*SheetsClient, error) {
	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		var ok bool
		if id, ok = ExtractSpreadsheetID(cfg.SpreadsheetURL); !ok {
			return nil, errors.New("sheets: spreadsheet id or a valid spreadsheet url is required")
		}
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("sheets: api key is required")
	}

	c := &SheetsClient{
		spreadsheetID: id,
		sheetName:     strings.TrimSpace(cfg.SheetName),
		apiKey:        cfg.APIKey,
		baseURL:       DefaultSheetsURL,
		httpClient:    &http.Client{Timeout: timeout},
	}
	if c.sheetName == "" {
		c.sheetName = defaultSheetName
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *SheetsClient) Name() string { return models.IntegrationSheets }

// Send appends one contribution row.
func (c *SheetsClient) Send(ctx context.Context, contribution *models.Contribution) error {
	return c.AppendContributions(ctx, []models.Contribution{*contribution})
}

// AppendContributions appends one row per contribution in a single request.
func (c *SheetsClient) AppendContributions(ctx context.Context, contributions []models.Contribution) error {
	if len(contributions) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(contributions))
	for i := range contributions {
		rows = append(rows, ContributionRow(&contributions[i]))
	}
	jsonData, err := json.Marshal(appendRequest{Values: rows})
	if err != nil {
		return fmt.Errorf("sheets: marshal rows: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/values/%s:append?valueInputOption=USER_ENTERED&key=%s",
		c.baseURL, url.PathEscape(c.spreadsheetID), url.PathEscape(c.sheetName), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("sheets: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sheets: append: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError("google sheets", resp)
	}
	return nil
}

// ContributionRow is the sheet row of a contribution: sender, amount in KES,
// member id and the dd/mm/yyyy date.
func ContributionRow(c *models.Contribution) []string {
	return []string{
		c.SenderName,
		"KES " + parser.FormatAmount(c.Amount),
		c.MemberID,
		c.Date.Format("02/01/2006"),
	}
}
