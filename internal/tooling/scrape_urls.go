package tooling

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxScrapeURLs       = 5
	maxScrapeParagraphs = 5
	maxScrapeBytes      = 2 << 20 // 2MB per page
)

// ScrapeURLsTool fetches web pages and returns cleaned text summaries. A
// failing url is reported inline and never aborts the batch.
type ScrapeURLsTool struct {
	client *http.Client
}

func NewScrapeURLsTool(timeout time.Duration) *ScrapeURLsTool {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ScrapeURLsTool{client: &http.Client{Timeout: timeout}}
}

func (*ScrapeURLsTool) Definition() ToolDefinition {
	return ToolDefinition{
		Type: "function",
		Function: ToolFunction{
			Name:        "scrape_urls",
			Description: "Fetch up to five web pages and return their title, description, and main paragraphs.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"urls": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Absolute http(s) URLs to fetch.",
					},
				},
				"required": []string{"urls"},
			},
		},
	}
}

func (t *ScrapeURLsTool) Call(ctx context.Context, args map[string]any) (string, error) {
	urls, ok := stringSliceArg(args, "urls")
	if !ok || len(urls) == 0 {
		return "The urls parameter must be a non-empty array of absolute URLs.", nil
	}
	var skipped []string
	if len(urls) > maxScrapeURLs {
		skipped = urls[maxScrapeURLs:]
		urls = urls[:maxScrapeURLs]
	}

	var b strings.Builder
	for i, rawURL := range urls {
		if i > 0 {
			b.WriteString("\n")
		}
		summary, err := t.scrape(ctx, rawURL)
		if err != nil {
			fmt.Fprintf(&b, "=== %s ===\nFailed to fetch: %v\n", rawURL, err)
			continue
		}
		b.WriteString(summary)
	}
	if len(skipped) > 0 {
		fmt.Fprintf(&b, "\nSkipped %d URL(s) over the limit of %d per call: %s\n",
			len(skipped), maxScrapeURLs, strings.Join(skipped, ", "))
	}
	return b.String(), nil
}

func (t *ScrapeURLsTool) scrape(ctx context.Context, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return "", fmt.Errorf("not an absolute http(s) URL")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Atelier/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxScrapeBytes))
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	desc := strings.TrimSpace(doc.Find(`meta[name="description"]`).AttrOr("content", ""))

	paragraphs := make([]string, 0, maxScrapeParagraphs)
	doc.Find("p").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(paragraphs) >= maxScrapeParagraphs {
			return false
		}
		text := normalizeWhitespace(sel.Text())
		if len(text) < 40 { // skip super short fragments
			return true
		}
		paragraphs = append(paragraphs, text)
		return true
	})

	var b strings.Builder
	fmt.Fprintf(&b, "=== %s ===\n", rawURL)
	if title != "" {
		fmt.Fprintf(&b, "Title: %s\n", title)
	}
	if desc != "" {
		fmt.Fprintf(&b, "Description: %s\n", desc)
	}
	for _, p := range paragraphs {
		fmt.Fprintf(&b, "- %s\n", p)
	}
	if title == "" && desc == "" && len(paragraphs) == 0 {
		b.WriteString("No readable text found on the page.\n")
	}
	return b.String(), nil
}

func normalizeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
