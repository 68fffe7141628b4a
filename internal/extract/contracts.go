// Package extract defines the field-extraction contract shared by the
// rule-based and AI-assisted strategies, and assembles extracted items
// into a batch of fields.
package extract

import (
	"context"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/document"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/entity"
)

// Input is everything a strategy may read. ExtraText carries
// OCR-recovered text per table key on fallback re-runs.
type Input struct {
	Doc       *document.Document
	Views     []entity.StructuredTableView
	ExtraText map[string]string
}

// Item is one extracted (key-or-free-label, value, snippet) tuple.
// Key is empty when the label did not resolve; RawLabel then carries
// the observed text for alias learning.
type Item struct {
	Key        constants.FieldKey
	RawLabel   string
	Value      float64
	Confidence constants.Confidence
	Snippet    string
}

// Result is a strategy's output. UnmatchedLabels lists labels that
// carried a value but resolved to no key.
type Result struct {
	Items           []Item
	UnmatchedLabels []string
}

// Extractor is the pluggable strategy contract. Implementations are
// swappable at call time; a failed attempt has no side effects, so the
// caller may retry with the other strategy.
type Extractor interface {
	Extract(ctx context.Context, in Input) (Result, error)
}

// KeyResolver consults human-approved alias mappings for labels the
// built-in vocabulary does not know.
type KeyResolver interface {
	ResolveApproved(ctx context.Context, rawLabel string) (constants.FieldKey, bool)
}
