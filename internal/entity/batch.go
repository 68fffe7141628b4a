package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"
)

// ExtractionBatch is one reconciliation attempt over one source document.
type ExtractionBatch struct {
	ID               uuid.UUID             `json:"id"`
	SourceDocumentID string                `json:"source_document_id"`
	UnitID           string                `json:"unit_id"`
	Year             int                   `json:"year"`
	Status           constants.BatchStatus `json:"status"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// Token serializes the optimistic-concurrency token callers must echo
// back on every mutating call.
func (b ExtractionBatch) Token() string {
	return b.UpdatedAt.UTC().Format(time.RFC3339Nano)
}

// ExtractedField is one labeled numeric fact within a batch. Key is
// unique within the batch; corrected_value/confirmed are the only
// reviewer-mutable fields.
type ExtractedField struct {
	ID              uuid.UUID            `json:"id"`
	BatchID         uuid.UUID            `json:"batch_id"`
	Key             string               `json:"key"`
	NormalizedValue float64              `json:"normalized_value"`
	CorrectedValue  *float64             `json:"corrected_value,omitempty"`
	Confidence      constants.Confidence `json:"confidence"`
	Confirmed       bool                 `json:"confirmed"`
	RawTextSnippet  string               `json:"raw_text_snippet,omitempty"`
}

// AuthoritativeValue is the value validation and commit act on:
// the reviewer's correction when confirmed, otherwise the extraction.
func (f ExtractedField) AuthoritativeValue() float64 {
	if f.Confirmed && f.CorrectedValue != nil {
		return *f.CorrectedValue
	}
	return f.NormalizedValue
}

// ValidationIssue is one leveled finding of the rule engine. Always
// regenerated by a full recompute, never patched.
type ValidationIssue struct {
	ID       uuid.UUID            `json:"id"`
	BatchID  uuid.UUID            `json:"batch_id"`
	Level    constants.IssueLevel `json:"level"`
	RuleID   string               `json:"rule_id"`
	Message  string               `json:"message"`
	Evidence map[string]any       `json:"evidence,omitempty"`
}

// CreateSummary reports what a batch-creation run did, per stage, so
// partial results stay usable.
type CreateSummary struct {
	BatchID       uuid.UUID  `json:"batch_id"`
	TablesReady   []string   `json:"tables_ready"`
	TablesMissing []string   `json:"tables_missing"`
	FieldCount    int        `json:"field_count"`
	OCR           OcrSummary `json:"ocr"`
	ErrorIssues   int        `json:"error_issues"`
	WarnIssues    int        `json:"warn_issues"`
}
