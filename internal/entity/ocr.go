package entity

// OcrSkip records why a table or page was not recognized.
type OcrSkip struct {
	TableKey string `json:"table_key"`
	Page     int    `json:"page,omitempty"`
	Reason   string `json:"reason"`
}

// OcrSummary is the per-batch audit trail of the selective OCR
// fallback. It is evidence of what ran, not a control input.
type OcrSummary struct {
	Enabled             bool      `json:"enabled"`
	Executed            bool      `json:"executed"`
	Reason              string    `json:"reason,omitempty"`
	SuspiciousTableKeys []string  `json:"suspicious_table_keys,omitempty"`
	ProcessedTables     []string  `json:"processed_tables,omitempty"`
	SkippedTables       []OcrSkip `json:"skipped_tables,omitempty"`
	MatchedCount        int       `json:"matched_count"`
}
