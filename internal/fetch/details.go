// Package fetch - details.go implements the detail-fetch collaborator used
// by the promotion pipeline.
package fetch

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// JobDetails is the full job record produced by fetching a detail page.
type JobDetails struct {
	ExternalID  string
	FinalURL    string
	Title       string
	Company     string
	Description string
	Location    *string
	Salary      *string
	PostedDate  *string
	RawData     map[string]interface{}
}

// Client fetches and parses job detail pages. Construct one per pipeline
// driver and inject it; Close releases nothing today but keeps the lifecycle
// explicit for callers that scope it.
type Client struct {
	options    *Options
	useBrowser bool
	verbose    bool
}

// ClientConfig configures a detail-fetch client.
type ClientConfig struct {
	Options    *Options
	UseBrowser bool // fall back to headless rendering for SPA boards
	Verbose    bool
}

// NewClient creates a detail-fetch client.
func NewClient(cfg *ClientConfig) *Client {
	if cfg == nil {
		cfg = &ClientConfig{}
	}
	opts := cfg.Options
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Client{
		options:    opts,
		useBrowser: cfg.UseBrowser,
		verbose:    cfg.Verbose,
	}
}

// Close releases resources held by the client.
func (c *Client) Close() error {
	return nil
}

// FetchDetails retrieves a job detail page and parses it into a JobDetails.
// Returns an error on network or parse failure; never returns (nil, nil).
func (c *Client) FetchDetails(ctx context.Context, urlStr, externalID string) (*JobDetails, error) {
	result, err := URL(ctx, urlStr, c.options)
	if err != nil {
		return nil, err
	}

	html := result.HTML
	text, err := ExtractMainText(html, JobPostingSelectors())
	if err != nil {
		return nil, err
	}

	// SPA boards serve an empty shell over plain HTTP; re-render in a
	// headless browser when enabled and the first pass came back thin.
	if c.useBrowser && ShouldUseBrowser(text) {
		rendered, berr := WithBrowser(ctx, urlStr, 2*time.Minute, c.verbose)
		if berr == nil {
			html = rendered
			if t, terr := ExtractMainText(html, JobPostingSelectors()); terr == nil {
				text = t
			}
		}
	}

	if strings.TrimSpace(text) == "" {
		return nil, &Error{URL: urlStr, Message: "no extractable content"}
	}

	details := &JobDetails{
		ExternalID:  externalID,
		FinalURL:    result.URL,
		Description: text,
	}
	parsePageMeta(html, details)

	return details, nil
}

// parsePageMeta pulls title/company hints out of the page head. Detail pages
// vary wildly, so anything missing stays empty rather than failing the fetch.
func parsePageMeta(html string, details *JobDetails) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return
	}

	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		details.Title = h1
	} else if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		details.Title = title
	}

	if company, ok := doc.Find(`meta[property="og:site_name"]`).Attr("content"); ok {
		details.Company = strings.TrimSpace(company)
	}
}
