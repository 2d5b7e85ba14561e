package domain

import "time"

// RawArticle is an unprocessed item as delivered by a provider batch.
// Anything a provider sends beyond the normalized field set lands in
// RawProviderData instead of dynamic attributes.
type RawArticle struct {
	URL             string
	Title           string
	Summary         string
	SourceName      string
	Tickers         []string
	PublishedAt     time.Time
	Language        string
	RawProviderData map[string]string
}

// NormalizedArticle is the canonical article record produced at ingestion.
// ContentHash is the stable storage ID: a fixed-length digest of IdentityKey.
type NormalizedArticle struct {
	IdentityKey string
	ContentHash string
	Provider    string
	Title       string
	Summary     string
	URL         string
	SourceName  string
	Tickers     []string
	EventType   string
	PublishedAt time.Time
	Language    string
}

// ArticleSymbolLink relates a stored article to a traded symbol.
// Links are created once at ingestion and never updated in place.
type ArticleSymbolLink struct {
	ArticleID string
	Symbol    string
	Relevance float64
}

// IngestReport summarizes one ingestion call.
type IngestReport struct {
	Inserted       int
	Linked         int
	Duplicates     int
	LinkFailures   int
	Invalid        int
	TotalProcessed int
}
