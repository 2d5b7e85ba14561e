package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"NewsRadar/internal/domain"
	"NewsRadar/internal/scanner"
)

const samplePage = `<!DOCTYPE html>
<html>
<body>
  <article>
    <h2>Widget Corp announces layoffs</h2>
    <a href="/news/widget-layoffs">Read more</a>
    <p>The company will cut 5% of staff.</p>
  </article>
  <article>
    <h2>Item without a link</h2>
    <p>should be skipped</p>
  </article>
  <article>
    <h2>Gadget Inc launches new product</h2>
    <a href="https://other.example.com/gadget-launch">Read more</a>
    <p>Shipping next quarter.</p>
  </article>
</body>
</html>`

func TestHTMLScannerScan(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "NewsRadar/1.0" {
			t.Errorf("unexpected user agent %q", got)
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer server.Close()

	sc := NewHTMLScanner(server.Client())

	req := scanner.Request{
		Task:    domain.FetchTask{Provider: "scraped", Symbol: "WID", Query: "WID stock"},
		FeedURL: server.URL + "/listing",
	}

	items, err := sc.Scan(context.Background(), req)
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	if items[0].URL != server.URL+"/news/widget-layoffs" {
		t.Fatalf("relative href not resolved: %s", items[0].URL)
	}
	if items[0].Title != "Widget Corp announces layoffs" {
		t.Fatalf("unexpected title: %s", items[0].Title)
	}
	if items[0].Summary != "The company will cut 5% of staff." {
		t.Fatalf("unexpected summary: %s", items[0].Summary)
	}
	if items[0].SourceName != "scraped" {
		t.Fatalf("unexpected source: %s", items[0].SourceName)
	}

	if items[1].URL != "https://other.example.com/gadget-launch" {
		t.Fatalf("absolute href should pass through: %s", items[1].URL)
	}
}

func TestHTMLScannerStatusError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	sc := NewHTMLScanner(server.Client())
	req := scanner.Request{
		Task:    domain.FetchTask{Provider: "scraped", Symbol: "WID"},
		FeedURL: server.URL,
	}

	if _, err := sc.Scan(context.Background(), req); err == nil {
		t.Fatalf("expected error for non-200 response")
	}
}

func TestHTMLScannerCustomSelectors(t *testing.T) {
	t.Parallel()

	page := `<html><body>
	  <div class="row">
	    <span class="headline">Custom layout story</span>
	    <a class="story-link" href="/s/1">open</a>
	    <div class="teaser">short teaser</div>
	  </div>
	</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	sc := NewHTMLScanner(server.Client())
	req := scanner.Request{
		Task:    domain.FetchTask{Provider: "scraped", Symbol: "WID"},
		FeedURL: server.URL,
		Options: map[string]string{
			OptionItemSelector:    "div.row",
			OptionTitleSelector:   "span.headline",
			OptionLinkSelector:    "a.story-link",
			OptionSummarySelector: "div.teaser",
		},
	}

	items, err := sc.Scan(context.Background(), req)
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Title != "Custom layout story" {
		t.Fatalf("unexpected title: %s", items[0].Title)
	}
	if items[0].Summary != "short teaser" {
		t.Fatalf("unexpected summary: %s", items[0].Summary)
	}
}
