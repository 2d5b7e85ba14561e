package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"NewsRadar/internal/domain"
	"NewsRadar/internal/scanner"
)

// RSSScanner pulls a provider's RSS/Atom feed for a planned query.
type RSSScanner struct {
	parser *gofeed.Parser
	client *http.Client
}

var _ scanner.Scanner = (*RSSScanner)(nil)

// NewRSSScanner wires an HTTP client; nil gets a 20s-timeout default.
func NewRSSScanner(client *http.Client) *RSSScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	parser := gofeed.NewParser()
	parser.Client = client
	return &RSSScanner{parser: parser, client: client}
}

// Name identifies the strategy inside the registry.
func (r *RSSScanner) Name() string {
	return "rss"
}

// Scan fetches the feed URL built from the request and maps its items to raw
// articles for ingestion.
func (r *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawArticle, error) {
	feedURL, err := buildFeedURL(req)
	if err != nil {
		return nil, err
	}

	feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	items := make([]domain.RawArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil || strings.TrimSpace(item.Link) == "" {
			continue
		}

		published := time.Now().UTC()
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			published = item.UpdatedParsed.UTC()
		}

		items = append(items, domain.RawArticle{
			URL:         item.Link,
			Title:       strings.TrimSpace(item.Title),
			Summary:     strings.TrimSpace(item.Description),
			SourceName:  feed.Title,
			Tickers:     []string{req.Task.Symbol},
			PublishedAt: published,
			Language:    feed.Language,
		})
	}

	return items, nil
}

// buildFeedURL substitutes the query into the provider's feed template. A
// template without a placeholder gets the query appended as ?q=.
func buildFeedURL(req scanner.Request) (string, error) {
	template := req.FeedURL
	if template == "" {
		return "", fmt.Errorf("provider %s has no feed URL", req.Task.Provider)
	}

	if strings.Contains(template, "%s") {
		return fmt.Sprintf(template, url.QueryEscape(req.Task.Query)), nil
	}

	parsed, err := url.Parse(template)
	if err != nil {
		return "", fmt.Errorf("invalid feed URL %s: %w", template, err)
	}
	query := parsed.Query()
	query.Set("q", req.Task.Query)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
