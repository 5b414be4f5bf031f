package tooling

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestScrapeURLsExtractsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head>
			<title>Gardening Basics</title>
			<meta name="description" content="How to start a vegetable garden.">
		</head><body>
			<p>Short.</p>
			<p>Raised beds warm up faster in spring and drain better than open ground.</p>
		</body></html>`))
	}))
	defer srv.Close()

	tool := NewScrapeURLsTool(5 * time.Second)
	out, err := tool.Call(context.Background(), map[string]any{"urls": []any{srv.URL}})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !strings.Contains(out, "Title: Gardening Basics") {
		t.Fatalf("title missing: %q", out)
	}
	if !strings.Contains(out, "Description: How to start a vegetable garden.") {
		t.Fatalf("description missing: %q", out)
	}
	if !strings.Contains(out, "Raised beds") {
		t.Fatalf("paragraph missing: %q", out)
	}
	if strings.Contains(out, "Short.") {
		t.Fatal("short fragment should be skipped")
	}
}

func TestScrapeURLsReportsSkippedOverLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Page</title></head><body></body></html>`))
	}))
	defer srv.Close()

	urls := make([]any, 0, 6)
	for i := 0; i < 5; i++ {
		urls = append(urls, srv.URL)
	}
	urls = append(urls, srv.URL+"/sixth")

	tool := NewScrapeURLsTool(5 * time.Second)
	out, err := tool.Call(context.Background(), map[string]any{"urls": urls})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !strings.Contains(out, "Skipped 1 URL(s) over the limit of 5") {
		t.Fatalf("skip notice missing: %q", out)
	}
	if !strings.Contains(out, srv.URL+"/sixth") {
		t.Fatalf("skipped url not named: %q", out)
	}
}

func TestScrapeURLsReportsFailuresInline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tool := NewScrapeURLsTool(5 * time.Second)
	out, err := tool.Call(context.Background(), map[string]any{
		"urls": []any{srv.URL, "ftp://not-http"},
	})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !strings.Contains(out, "Failed to fetch: status 500") {
		t.Fatalf("server error not reported: %q", out)
	}
	if !strings.Contains(out, "not an absolute http(s) URL") {
		t.Fatalf("scheme rejection not reported: %q", out)
	}
}
