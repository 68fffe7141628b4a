package repository

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/entity"
)

// BatchModel maps extraction_batches. UpdatedAt doubles as the
// optimistic-concurrency token, so it is set explicitly on every
// mutation instead of via gorm's autoUpdateTime.
type BatchModel struct {
	ID               uuid.UUID `gorm:"column:id;primaryKey;type:uuid"`
	SourceDocumentID string    `gorm:"column:source_document_id;type:varchar(255);not null;index"`
	UnitID           string    `gorm:"column:unit_id;type:varchar(64);index:idx_unit_year"`
	Year             int       `gorm:"column:year;index:idx_unit_year"`
	Status           string    `gorm:"column:status;type:varchar(20);not null;index"`
	OcrSummary       []byte    `gorm:"column:ocr_summary;type:jsonb"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (BatchModel) TableName() string { return "extraction_batches" }

// FieldModel maps extracted_fields. Key is unique within a batch.
type FieldModel struct {
	ID              uuid.UUID `gorm:"column:id;primaryKey;type:uuid"`
	BatchID         uuid.UUID `gorm:"column:batch_id;type:uuid;index;uniqueIndex:idx_batch_key,priority:1"`
	Key             string    `gorm:"column:key;type:varchar(64);uniqueIndex:idx_batch_key,priority:2"`
	NormalizedValue float64   `gorm:"column:normalized_value;type:numeric(18,4)"`
	CorrectedValue  *float64  `gorm:"column:corrected_value;type:numeric(18,4)"`
	Confidence      string    `gorm:"column:confidence;type:varchar(16)"`
	Confirmed       bool      `gorm:"column:confirmed"`
	RawTextSnippet  string    `gorm:"column:raw_text_snippet;type:text"`
}

func (FieldModel) TableName() string { return "extracted_fields" }

// IssueModel maps validation_issues. Rows are replaced wholesale on
// every validation run.
type IssueModel struct {
	ID       uuid.UUID `gorm:"column:id;primaryKey;type:uuid"`
	BatchID  uuid.UUID `gorm:"column:batch_id;type:uuid;index"`
	Level    string    `gorm:"column:level;type:varchar(8);index"`
	RuleID   string    `gorm:"column:rule_id;type:varchar(64)"`
	Message  string    `gorm:"column:message;type:text"`
	Evidence []byte    `gorm:"column:evidence;type:jsonb"`
}

func (IssueModel) TableName() string { return "validation_issues" }

// AliasModel maps alias_mappings, the only state shared across batches.
type AliasModel struct {
	ID              uuid.UUID `gorm:"column:id;primaryKey;type:uuid"`
	RawLabel        string    `gorm:"column:raw_label;type:varchar(255);not null"`
	NormalizedLabel string    `gorm:"column:normalized_label;type:varchar(255);not null;uniqueIndex"`
	ResolvedKey     string    `gorm:"column:resolved_key;type:varchar(64)"`
	Status          string    `gorm:"column:status;type:varchar(16);not null;index"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (AliasModel) TableName() string { return "alias_mappings" }

// FactModel maps budget_facts, the historical-actuals store. BatchID
// records provenance so a committed batch can be cascaded away.
type FactModel struct {
	ID      uuid.UUID `gorm:"column:id;primaryKey;type:uuid"`
	UnitID  string    `gorm:"column:unit_id;type:varchar(64);uniqueIndex:idx_fact,priority:1"`
	Year    int       `gorm:"column:year;uniqueIndex:idx_fact,priority:2"`
	Key     string    `gorm:"column:key;type:varchar(64);uniqueIndex:idx_fact,priority:3"`
	Value   float64   `gorm:"column:value;type:numeric(18,4)"`
	BatchID uuid.UUID `gorm:"column:batch_id;type:uuid;index"`

	CreatedAt time.Time `gorm:"column:created_at"`
}

func (FactModel) TableName() string { return "budget_facts" }

func (m BatchModel) toEntity() entity.ExtractionBatch {
	return entity.ExtractionBatch{
		ID:               m.ID,
		SourceDocumentID: m.SourceDocumentID,
		UnitID:           m.UnitID,
		Year:             m.Year,
		Status:           constants.BatchStatus(m.Status),
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func (m FieldModel) toEntity() entity.ExtractedField {
	return entity.ExtractedField{
		ID:              m.ID,
		BatchID:         m.BatchID,
		Key:             m.Key,
		NormalizedValue: m.NormalizedValue,
		CorrectedValue:  m.CorrectedValue,
		Confidence:      constants.Confidence(m.Confidence),
		Confirmed:       m.Confirmed,
		RawTextSnippet:  m.RawTextSnippet,
	}
}

func (m IssueModel) toEntity() entity.ValidationIssue {
	issue := entity.ValidationIssue{
		ID:      m.ID,
		BatchID: m.BatchID,
		Level:   constants.IssueLevel(m.Level),
		RuleID:  m.RuleID,
		Message: m.Message,
	}
	if len(m.Evidence) > 0 {
		_ = json.Unmarshal(m.Evidence, &issue.Evidence)
	}
	return issue
}

func (m AliasModel) toEntity() entity.AliasMapping {
	return entity.AliasMapping{
		ID:              m.ID,
		RawLabel:        m.RawLabel,
		NormalizedLabel: m.NormalizedLabel,
		ResolvedKey:     m.ResolvedKey,
		Status:          constants.AliasStatus(m.Status),
		UpdatedAt:       m.UpdatedAt,
	}
}
