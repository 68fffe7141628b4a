package constants

// BatchStatus is the canonical status for rows in extraction_batches.
type BatchStatus string

// Stable values (store these exact strings in DB).
const (
	BatchPendingReview BatchStatus = "PENDING_REVIEW" // created, awaiting human review
	BatchReviewed      BatchStatus = "REVIEWED"       // reviewer signed off
	BatchCommitted     BatchStatus = "COMMITTED"      // facts written to historical store
	BatchRejected      BatchStatus = "REJECTED"       // soft-discarded, a fresh batch may be created
)

// Confidence grades how trustworthy an extracted value is.
type Confidence string

const (
	ConfidenceHigh         Confidence = "HIGH"
	ConfidenceMedium       Confidence = "MEDIUM"
	ConfidenceLow          Confidence = "LOW"
	ConfidenceUnrecognized Confidence = "UNRECOGNIZED"
)

// Rank orders confidence grades so merge steps can pick a winner. Higher wins.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// AliasStatus is the lifecycle of a learned label mapping.
type AliasStatus string

const (
	AliasCandidate AliasStatus = "CANDIDATE"
	AliasApproved  AliasStatus = "APPROVED"
	AliasRejected  AliasStatus = "REJECTED"
)

// IssueLevel classifies validation issues. ERROR blocks commit, WARN does not.
type IssueLevel string

const (
	LevelError IssueLevel = "ERROR"
	LevelWarn  IssueLevel = "WARN"
)

// TableStatus of a localized table candidate.
type TableStatus string

const (
	TableReady   TableStatus = "READY"
	TableMissing TableStatus = "MISSING"
)

// OCR skip reason codes surfaced in the per-batch OCR summary.
const (
	SkipOCRDisabled         = "OCR_DISABLED"
	SkipOCRUnavailable      = "OCR_UNAVAILABLE"
	SkipPDFUnreadable       = "PDF_UNREADABLE"
	SkipPageFailed          = "OCR_PAGE_FAILED"
	SkipNoPages             = "NO_PAGES_FOR_TABLE"
	SkipMockTextNotProvided = "MOCK_TEXT_NOT_PROVIDED"
)
