package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"
)

// AliasMapping is a learned translation from an observed label string
// to a canonical field key. Created as CANDIDATE whenever extraction
// meets an unmapped label; promotion to APPROVED/REJECTED is
// human-driven and persists across future documents.
type AliasMapping struct {
	ID              uuid.UUID             `json:"id"`
	RawLabel        string                `json:"raw_label"`
	NormalizedLabel string                `json:"normalized_label"`
	ResolvedKey     string                `json:"resolved_key,omitempty"`
	Status          constants.AliasStatus `json:"status"`
	UpdatedAt       time.Time             `json:"updated_at"`
}
