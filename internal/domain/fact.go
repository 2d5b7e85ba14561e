package domain

// FactKind tags a fact as numeric or event-based.
type FactKind string

const (
	FactNumeric FactKind = "numeric"
	FactEvent   FactKind = "event"
)

// Fact is a structured datum extracted from article text, attributed to the
// source article for auditability.
type Fact struct {
	Kind            FactKind
	Subtype         string
	Value           float64
	Unit            string
	Text            string
	SourceArticleID string
}

// Disagreement flags that both sides of an antonym pair appear somewhere in
// an article set. No per-article attribution is kept.
type Disagreement struct {
	Topic    string
	Positive string
	Negative string
}
