package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsRadar/internal/domain"
	"NewsRadar/internal/scanner"
)

// Selector options understood by the HTML scanner, set per provider in the
// site configuration.
const (
	OptionItemSelector    = "itemSelector"
	OptionTitleSelector   = "titleSelector"
	OptionLinkSelector    = "linkSelector"
	OptionSummarySelector = "summarySelector"
)

// HTMLScanner scrapes a provider's listing page for article links.
type HTMLScanner struct {
	client *http.Client
}

var _ scanner.Scanner = (*HTMLScanner)(nil)

// NewHTMLScanner wires an HTTP client; nil gets a 20s-timeout default.
func NewHTMLScanner(client *http.Client) *HTMLScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HTMLScanner{client: client}
}

// Name identifies the strategy inside the registry.
func (h *HTMLScanner) Name() string {
	return "html"
}

// Scan fetches the listing page and extracts one raw article per item node.
func (h *HTMLScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawArticle, error) {
	pageURL, err := buildFeedURL(req)
	if err != nil {
		return nil, err
	}

	doc, err := h.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	itemSel := option(req, OptionItemSelector, "article")
	titleSel := option(req, OptionTitleSelector, "h2, h3")
	linkSel := option(req, OptionLinkSelector, "a")
	summarySel := option(req, OptionSummarySelector, "p")

	var items []domain.RawArticle
	doc.Find(itemSel).Each(func(_ int, node *goquery.Selection) {
		href, ok := node.Find(linkSel).First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		href = absolute(pageURL, href)

		items = append(items, domain.RawArticle{
			URL:         href,
			Title:       strings.TrimSpace(node.Find(titleSel).First().Text()),
			Summary:     strings.TrimSpace(node.Find(summarySel).First().Text()),
			SourceName:  req.Task.Provider,
			Tickers:     []string{req.Task.Symbol},
			PublishedAt: time.Now().UTC(),
		})
	})

	return items, nil
}

func (h *HTMLScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "NewsRadar/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func option(req scanner.Request, name, fallback string) string {
	if value, ok := req.Options[name]; ok && value != "" {
		return value
	}
	return fallback
}

func absolute(pageURL, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	base := pageURL
	if idx := strings.Index(base, "//"); idx >= 0 {
		if slash := strings.Index(base[idx+2:], "/"); slash >= 0 {
			base = base[:idx+2+slash]
		}
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(href, "/")
}
