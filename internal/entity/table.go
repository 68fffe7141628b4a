package entity

import "github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"

// SheetCandidate is a near-miss kept for diagnosis when a table is MISSING.
type SheetCandidate struct {
	SheetName       string   `json:"sheet_name"`
	Score           float64  `json:"score"`
	MatchedKeywords []string `json:"matched_keywords"`
}

// BudgetTableCandidate is one known table type matched (or not) against a
// document. Immutable once built for a given upload.
type BudgetTableCandidate struct {
	Key          string                `json:"key"`
	Title        string                `json:"title"`
	MatchedSheet string                `json:"matched_sheet,omitempty"`
	PageNumbers  []int                 `json:"page_numbers,omitempty"`
	Status       constants.TableStatus `json:"status"`
	RowCount     int                   `json:"row_count"`
	ColCount     int                   `json:"col_count"`
	Rows         [][]string            `json:"rows,omitempty"`
	// NearMisses is populated only for MISSING tables.
	NearMisses []SheetCandidate `json:"near_misses,omitempty"`
}

// StructuredRow is one aligned row: leading code/label cells then the
// fixed numeric tail.
type StructuredRow struct {
	Codes  []string  `json:"codes"`
	Values []float64 `json:"values"`
}

// StructuredTableView is a derived, read-only projection of a candidate
// grid. Recomputed on demand, never persisted as authoritative.
type StructuredTableView struct {
	Key        string                `json:"key"`
	Family     constants.TableFamily `json:"family"`
	HeaderRows [][]string            `json:"header_rows,omitempty"`
	BodyRows   []StructuredRow       `json:"body_rows"`
	// NumericColumns are the zero-based positions of numeric cells
	// within the canonical row width.
	NumericColumns []int             `json:"numeric_columns"`
	Meta           map[string]string `json:"meta,omitempty"`
}
