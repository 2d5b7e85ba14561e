package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"NewsRadar/internal/domain"
)

// Strategy selects how an article's identity key is built.
type Strategy string

const (
	// StrategyURL derives identity from the normalized URL alone. This is
	// the authoritative strategy: it never merges two distinct URLs, at the
	// cost of missing syndicated copies published under different links.
	StrategyURL Strategy = "url"
	// StrategyTitleDomain derives identity from normalized title plus host,
	// catching syndicated copies with different URLs. Falls back to the URL
	// key when the title is empty.
	StrategyTitleDomain Strategy = "title-domain"
)

// DefaultStrategy is the one compiled into the pipeline.
const DefaultStrategy = StrategyURL

var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"fbclid":       {},
	"gclid":        {},
	"ref":          {},
	"source":       {},
}

// Canonicalizer turns raw article records into stable identity keys and
// fixed-length content hashes.
type Canonicalizer struct {
	strategy Strategy
}

// New builds a canonicalizer; an empty strategy means DefaultStrategy.
func New(strategy Strategy) *Canonicalizer {
	if strategy == "" {
		strategy = DefaultStrategy
	}
	return &Canonicalizer{strategy: strategy}
}

// Canonicalize returns the identity key and content hash for a raw article.
// The hash is a hex sha256 of the identity key, so equal keys always map to
// the same article ID downstream.
func (c *Canonicalizer) Canonicalize(raw domain.RawArticle) (string, string, error) {
	key, err := c.IdentityKey(raw)
	if err != nil {
		return "", "", err
	}
	return key, Hash(key), nil
}

// IdentityKey builds the duplicate-detection key per the configured strategy.
func (c *Canonicalizer) IdentityKey(raw domain.RawArticle) (string, error) {
	normalized, host, err := normalizeURL(raw.URL)
	if err != nil {
		return "", err
	}

	if c.strategy == StrategyTitleDomain {
		title := strings.ToLower(strings.Join(strings.Fields(raw.Title), " "))
		if title != "" {
			return title + "|" + host, nil
		}
	}
	return normalized, nil
}

// Hash returns the hex sha256 digest of an identity key.
func Hash(identityKey string) string {
	sum := sha256.Sum256([]byte(identityKey))
	return hex.EncodeToString(sum[:])
}

func normalizeURL(raw string) (normalized, host string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", domain.Validationf("article URL is empty")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", "", domain.Validationf("invalid article URL %q: %v", raw, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", "", domain.Validationf("article URL %q must use http(s)", raw)
	}
	parsed.Scheme = scheme
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""

	// Path stays case-sensitive; only the trailing slash collapses. The
	// bare root trims too, so host/ and host share a key.
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")

	query := parsed.Query()
	for param := range query {
		if _, ok := trackingParams[param]; ok {
			query.Del(param)
		}
	}
	parsed.RawQuery = query.Encode()

	return parsed.String(), parsed.Hostname(), nil
}

// Normalize fills IdentityKey/ContentHash on a provider item and returns the
// normalized record.
func (c *Canonicalizer) Normalize(provider string, raw domain.RawArticle) (domain.NormalizedArticle, error) {
	key, hash, err := c.Canonicalize(raw)
	if err != nil {
		return domain.NormalizedArticle{}, err
	}

	tickers := make([]string, 0, len(raw.Tickers))
	seen := map[string]struct{}{}
	for _, t := range raw.Tickers {
		symbol := strings.ToUpper(strings.TrimSpace(t))
		if symbol == "" {
			continue
		}
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		tickers = append(tickers, symbol)
	}

	return domain.NormalizedArticle{
		IdentityKey: key,
		ContentHash: hash,
		Provider:    provider,
		Title:       strings.TrimSpace(raw.Title),
		Summary:     strings.TrimSpace(raw.Summary),
		URL:         strings.TrimSpace(raw.URL),
		SourceName:  raw.SourceName,
		Tickers:     tickers,
		PublishedAt: raw.PublishedAt,
		Language:    raw.Language,
	}, nil
}
