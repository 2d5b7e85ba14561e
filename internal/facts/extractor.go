package facts

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"NewsRadar/internal/domain"
)

const (
	numericContext = 30
	eventBefore    = 50
	eventAfter     = 100
)

var (
	percentExpr   = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?%`)
	currencyExpr  = regexp.MustCompile(`\$\d+(?:\.\d+)?\s?[BMKbmk]?\b`)
	magnitudeExpr = regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s(?:million|billion|thousand|units|shares)`)
)

// eventPatterns maps event subtypes to case-insensitive trigger phrases.
// At most one event fact per subtype per article: the first match wins.
var eventPatterns = []struct {
	subtype  string
	keywords []string
}{
	{"EARNINGS", []string{"earnings", "quarterly results", "eps", "net income"}},
	{"GUIDANCE", []string{"guidance", "outlook", "forecast", "projects"}},
	{"PRICE_CUT", []string{"price cut", "price target cut", "slashes price", "discount"}},
	{"PRODUCT_LAUNCH", []string{"launches", "unveils", "introduces", "new product"}},
	{"REGULATORY", []string{"regulator", "sec", "antitrust", "lawsuit", "fined", "investigation"}},
	{"MACRO", []string{"inflation", "interest rate", "fed", "gdp", "unemployment"}},
	{"PARTNERSHIP", []string{"partnership", "teams up", "joint venture", "collaboration"}},
	{"LAYOFFS", []string{"layoffs", "job cuts", "workforce reduction", "restructuring"}},
}

// antonymPairs drives cross-article disagreement detection. Each side is a
// set of interchangeable phrasings.
var antonymPairs = []struct {
	topic    string
	positive []string
	negative []string
}{
	{"direction", []string{"up", "increase", "rise", "gain"}, []string{"down", "decrease", "fall", "drop"}},
	{"sentiment", []string{"bullish"}, []string{"bearish"}},
	{"rating", []string{"upgrade"}, []string{"downgrade"}},
	{"expectations", []string{"beat", "beats"}, []string{"miss", "misses"}},
}

// Extract scans each article's title and summary for numeric and event facts,
// in input order, stopping once maxFacts is reached. Later articles may
// therefore contribute nothing: the early exit is deliberate.
func Extract(articles []domain.NormalizedArticle, maxFacts int) []domain.Fact {
	if maxFacts <= 0 {
		return nil
	}

	var facts []domain.Fact
	seen := map[string]struct{}{}

	keep := func(f domain.Fact) bool {
		var key string
		if f.Kind == domain.FactNumeric {
			key = fmt.Sprintf("%s|%.4f|%s", f.Subtype, f.Value, f.Unit)
		} else {
			text := f.Text
			if len(text) > 50 {
				text = text[:50]
			}
			key = string(f.Kind) + "|" + f.Subtype + "|" + text
		}
		if _, ok := seen[key]; ok {
			return false
		}
		seen[key] = struct{}{}
		facts = append(facts, f)
		return true
	}

	for _, article := range articles {
		text := strings.TrimSpace(article.Title + " " + article.Summary)
		if text == "" {
			continue
		}

		for _, f := range numericFacts(text, article.ContentHash) {
			keep(f)
			if len(facts) >= maxFacts {
				return facts
			}
		}
		for _, f := range eventFacts(text, article.ContentHash) {
			keep(f)
			if len(facts) >= maxFacts {
				return facts
			}
		}
	}

	return facts
}

func numericFacts(text, articleID string) []domain.Fact {
	var found []domain.Fact

	for _, loc := range percentExpr.FindAllStringIndex(text, -1) {
		match := text[loc[0]:loc[1]]
		value, err := strconv.ParseFloat(strings.TrimSuffix(match, "%"), 64)
		if err != nil {
			continue
		}
		found = append(found, domain.Fact{
			Kind:            domain.FactNumeric,
			Subtype:         "PERCENTAGE",
			Value:           value,
			Unit:            "%",
			Text:            window(text, loc[0], loc[1], numericContext, numericContext),
			SourceArticleID: articleID,
		})
	}

	for _, loc := range currencyExpr.FindAllStringIndex(text, -1) {
		match := text[loc[0]:loc[1]]
		body := strings.TrimSpace(strings.TrimPrefix(match, "$"))
		scale := 1.0
		switch {
		case strings.HasSuffix(strings.ToUpper(body), "B"):
			scale, body = 1e9, body[:len(body)-1]
		case strings.HasSuffix(strings.ToUpper(body), "M"):
			scale, body = 1e6, body[:len(body)-1]
		case strings.HasSuffix(strings.ToUpper(body), "K"):
			scale, body = 1e3, body[:len(body)-1]
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(body), 64)
		if err != nil {
			continue
		}
		found = append(found, domain.Fact{
			Kind:            domain.FactNumeric,
			Subtype:         "CURRENCY",
			Value:           value * scale,
			Unit:            "USD",
			Text:            window(text, loc[0], loc[1], numericContext, numericContext),
			SourceArticleID: articleID,
		})
	}

	for _, loc := range magnitudeExpr.FindAllStringIndex(text, -1) {
		match := text[loc[0]:loc[1]]
		parts := strings.Fields(match)
		if len(parts) != 2 {
			continue
		}
		value, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			continue
		}
		found = append(found, domain.Fact{
			Kind:            domain.FactNumeric,
			Subtype:         "MAGNITUDE",
			Value:           value,
			Unit:            strings.ToLower(parts[1]),
			Text:            window(text, loc[0], loc[1], numericContext, numericContext),
			SourceArticleID: articleID,
		})
	}

	return found
}

func eventFacts(text, articleID string) []domain.Fact {
	lower := strings.ToLower(text)
	var found []domain.Fact

	for _, pattern := range eventPatterns {
		for _, keyword := range pattern.keywords {
			idx := indexWord(lower, keyword)
			if idx < 0 {
				continue
			}
			found = append(found, domain.Fact{
				Kind:            domain.FactEvent,
				Subtype:         pattern.subtype,
				Text:            window(text, idx, idx+len(keyword), eventBefore, eventAfter),
				SourceArticleID: articleID,
			})
			break
		}
	}

	return found
}

// DetectDisagreements reports antonym pairs where both sides appear anywhere
// across the article set.
func DetectDisagreements(articles []domain.NormalizedArticle) []domain.Disagreement {
	var combined strings.Builder
	for _, article := range articles {
		combined.WriteString(strings.ToLower(article.Title))
		combined.WriteByte(' ')
		combined.WriteString(strings.ToLower(article.Summary))
		combined.WriteByte(' ')
	}
	text := combined.String()

	var out []domain.Disagreement
	for _, pair := range antonymPairs {
		pos := firstPresent(text, pair.positive)
		neg := firstPresent(text, pair.negative)
		if pos != "" && neg != "" {
			out = append(out, domain.Disagreement{Topic: pair.topic, Positive: pos, Negative: neg})
		}
	}
	return out
}

func firstPresent(text string, words []string) string {
	for _, word := range words {
		if containsWord(text, word) {
			return word
		}
	}
	return ""
}

func containsWord(text, word string) bool {
	return indexWord(text, word) >= 0
}

// indexWord finds word in text on whole-word boundaries, so "eps" does not
// fire inside "steps".
func indexWord(text, word string) int {
	idx := 0
	for {
		pos := strings.Index(text[idx:], word)
		if pos < 0 {
			return -1
		}
		start := idx + pos
		end := start + len(word)
		if (start == 0 || !isWordChar(text[start-1])) && (end == len(text) || !isWordChar(text[end])) {
			return start
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func window(text string, start, end, before, after int) string {
	lo := start - before
	if lo < 0 {
		lo = 0
	}
	hi := end + after
	if hi > len(text) {
		hi = len(text)
	}
	// The offsets are byte counts; back off to rune boundaries so the
	// excerpt stays valid UTF-8.
	for lo > 0 && !utf8.RuneStart(text[lo]) {
		lo--
	}
	for hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi++
	}
	return strings.TrimSpace(text[lo:hi])
}
