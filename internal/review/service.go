// Package review owns the batch lifecycle: creation runs the full
// extraction pipeline, then the state machine guards every mutation
// behind the optimistic-concurrency token until the batch is committed
// to the historical store or discarded.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/alias"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/common"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/document"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/entity"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/extract"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/locate"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/ocr"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/repository"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/tablebuild"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/validate"
)

// Service orchestrates batch creation, review mutations, and commit.
type Service struct {
	loader    *document.Loader
	localizer *locate.Localizer
	builder   *tablebuild.Builder
	rule      extract.Extractor
	ai        extract.Extractor // optional
	fallback  *ocr.Fallback
	aliases   *alias.Resolver
	engine    *validate.Engine
	batches   repository.BatchRepository
	store     repository.HistoricalStore
	logger    *slog.Logger
}

func NewService(
	loader *document.Loader,
	localizer *locate.Localizer,
	builder *tablebuild.Builder,
	rule extract.Extractor,
	ai extract.Extractor,
	fallback *ocr.Fallback,
	aliases *alias.Resolver,
	engine *validate.Engine,
	batches repository.BatchRepository,
	store repository.HistoricalStore,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		loader:    loader,
		localizer: localizer,
		builder:   builder,
		rule:      rule,
		ai:        ai,
		fallback:  fallback,
		aliases:   aliases,
		engine:    engine,
		batches:   batches,
		store:     store,
		logger:    logger,
	}
}

// CreateRequest describes one reconciliation attempt over one source
// document. MockOCRText, when non-nil, bypasses real OCR for
// deterministic testing.
type CreateRequest struct {
	SourceDocumentID string
	UnitID           string
	Year             int
	XLSXPath         string
	PDFPath          string
	UseAI            bool
	ManualValues     map[string]float64
	MockOCRText      map[string]string
}

// Create runs localization, structuring, extraction, selective OCR,
// alias learning, and validation, then persists the batch in
// PENDING_REVIEW. The returned summary reports partial failures
// instead of hiding them behind a boolean.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*entity.CreateSummary, error) {
	start := time.Now()
	batchID := uuid.New()

	doc, err := s.loader.Load(req.SourceDocumentID, req.XLSXPath, req.PDFPath)
	if err != nil {
		return nil, common.WrapError(err, "load document")
	}

	cands := s.localizer.Locate(doc)
	var views []entity.StructuredTableView
	summary := &entity.CreateSummary{BatchID: batchID}
	for _, c := range cands {
		switch c.Status {
		case constants.TableReady:
			summary.TablesReady = append(summary.TablesReady, c.Key)
			views = append(views, s.builder.Build(c))
		default:
			summary.TablesMissing = append(summary.TablesMissing, c.Key)
		}
	}

	in := extract.Input{Doc: doc, Views: views}
	result, err := s.extractWithFallbackStrategy(ctx, req.UseAI, in)
	if err != nil {
		return nil, common.WrapError(err, "field extraction")
	}
	fields := extract.AssembleFields(batchID, result.Items)

	// Selective OCR: only tables that yielded nothing usable.
	suspicious := extract.SuspiciousTables(cands, views, fields)
	ocrRes := s.fallback.Run(ctx, ocr.Request{
		PDFPath:      req.PDFPath,
		Suspicious:   suspicious,
		PagesByTable: pagesByTable(cands),
		MockText:     req.MockOCRText,
	})
	summary.OCR = ocrRes.Summary

	if len(ocrRes.TextByTable) > 0 {
		in.ExtraText = ocrRes.TextByTable
		second, err := s.extractWithFallbackStrategy(ctx, req.UseAI, in)
		if err != nil {
			s.logger.Warn("post-ocr extraction failed, keeping primary result",
				"batch_id", batchID, "error", err)
		} else {
			merged := append(append([]extract.Item{}, result.Items...), second.Items...)
			fields = extract.AssembleFields(batchID, merged)
			result.UnmatchedLabels = dedupe(append(result.UnmatchedLabels, second.UnmatchedLabels...))
		}
	}
	summary.FieldCount = len(fields)

	s.aliases.Learn(ctx, result.UnmatchedLabels)

	issues := s.engine.Validate(validate.Input{
		BatchID:         batchID,
		Fields:          fields,
		ManualValues:    req.ManualValues,
		UnmatchedLabels: result.UnmatchedLabels,
	})
	summary.ErrorIssues = validate.CountErrors(issues)
	summary.WarnIssues = len(issues) - summary.ErrorIssues

	batch := entity.ExtractionBatch{
		ID:               batchID,
		SourceDocumentID: req.SourceDocumentID,
		UnitID:           req.UnitID,
		Year:             req.Year,
		Status:           constants.BatchPendingReview,
	}
	if err := s.batches.CreateGraph(ctx, batch, fields, issues, ocrRes.Summary); err != nil {
		return nil, common.WrapError(err, "persist batch")
	}

	s.logger.Info("batch created",
		"batch_id", batchID,
		"tables_ready", len(summary.TablesReady),
		"tables_missing", len(summary.TablesMissing),
		"fields", summary.FieldCount,
		"error_issues", summary.ErrorIssues,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return summary, nil
}

// extractWithFallbackStrategy runs the requested strategy; an
// AI-assisted failure is retried with the rule-based one, which has no
// side effects to undo.
func (s *Service) extractWithFallbackStrategy(ctx context.Context, useAI bool, in extract.Input) (extract.Result, error) {
	if useAI && s.ai != nil {
		res, err := s.ai.Extract(ctx, in)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, common.ErrExtractorResponse) {
			s.logger.Warn("ai extraction failed, retrying with rule strategy", "error", err)
		} else {
			return extract.Result{}, err
		}
	}
	return s.rule.Extract(ctx, in)
}

// Get returns the full batch detail for the review UI.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*repository.BatchDetail, error) {
	return s.batches.Get(ctx, id)
}

// List returns batches matching the filter.
func (s *Service) List(ctx context.Context, filter repository.ListFilter) ([]entity.ExtractionBatch, error) {
	return s.batches.List(ctx, filter)
}

// PatchField updates corrected_value/confirmed on one field while the
// batch is still editable. The caller's token must match.
func (s *Service) PatchField(ctx context.Context, batchID uuid.UUID, key, token string, corrected *float64, confirmed *bool) error {
	detail, err := s.batches.Get(ctx, batchID)
	if err != nil {
		return err
	}
	if !editable(detail.Batch.Status) {
		return common.NewAppError("NOT_EDITABLE",
			fmt.Sprintf("batch is %s", detail.Batch.Status), common.ErrIllegalTransition)
	}
	return s.batches.PatchField(ctx, batchID, key, token, corrected, confirmed)
}

// MarkReviewed records the reviewer's sign-off.
func (s *Service) MarkReviewed(ctx context.Context, batchID uuid.UUID, token string) (string, error) {
	return s.transition(ctx, batchID, token, constants.BatchReviewed)
}

// Reject soft-discards the batch; the source document survives and a
// fresh batch can be created from it.
func (s *Service) Reject(ctx context.Context, batchID uuid.UUID, token string) (string, error) {
	return s.transition(ctx, batchID, token, constants.BatchRejected)
}

func (s *Service) transition(ctx context.Context, batchID uuid.UUID, token string, to constants.BatchStatus) (string, error) {
	detail, err := s.batches.Get(ctx, batchID)
	if err != nil {
		return "", err
	}
	from := detail.Batch.Status
	if !canTransition(from, to) {
		return "", common.NewAppError("ILLEGAL_TRANSITION",
			fmt.Sprintf("%s -> %s", from, to), common.ErrIllegalTransition)
	}
	return s.batches.TransitionStatus(ctx, batchID, token, from, to)
}

// CommitResult reports what a successful commit wrote.
type CommitResult struct {
	Token        string `json:"token"`
	FactsWritten int64  `json:"facts_written"`
}

// Commit re-validates from the current fields (never trusting a stale
// read), refuses while ERROR issues remain, then writes every field's
// authoritative value to the historical store as one atomic unit.
func (s *Service) Commit(ctx context.Context, batchID uuid.UUID, token string) (*CommitResult, error) {
	detail, err := s.batches.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	from := detail.Batch.Status
	if !canTransition(from, constants.BatchCommitted) {
		return nil, common.NewAppError("ILLEGAL_TRANSITION",
			fmt.Sprintf("%s -> COMMITTED", from), common.ErrIllegalTransition)
	}
	// A stale token must not mutate anything, the stored issue list
	// included. The transition CAS below still guards the final write.
	if detail.Batch.Token() != token {
		return nil, common.ErrStaleToken
	}

	issues := s.engine.Validate(validate.Input{
		BatchID:         batchID,
		Fields:          detail.Fields,
		UnmatchedLabels: unmatchedFromIssues(detail.Issues),
	})
	if err := s.batches.ReplaceIssues(ctx, batchID, issues); err != nil {
		return nil, common.WrapError(err, "store recomputed issues")
	}
	if n := validate.CountErrors(issues); n > 0 {
		return nil, common.NewAppError("COMMIT_BLOCKED",
			fmt.Sprintf("%d error-level issues remain", n), common.ErrCommitBlocked)
	}

	newToken, err := s.batches.TransitionStatus(ctx, batchID, token, from, constants.BatchCommitted)
	if err != nil {
		return nil, err
	}

	facts := make(map[string]float64, len(detail.Fields))
	for _, f := range detail.Fields {
		facts[f.Key] = f.AuthoritativeValue()
	}
	written, err := s.store.WriteFacts(ctx, detail.Batch.UnitID, detail.Batch.Year, batchID, facts)
	if err != nil {
		// Roll the status back so the batch is not stranded COMMITTED
		// with nothing written.
		if _, rerr := s.batches.TransitionStatus(ctx, batchID, newToken, constants.BatchCommitted, from); rerr != nil {
			s.logger.Error("commit rollback failed", "batch_id", batchID, "error", rerr)
		}
		return nil, common.WrapError(err, "write facts")
	}

	s.logger.Info("batch committed", "batch_id", batchID, "facts", written)
	return &CommitResult{Token: newToken, FactsWritten: written}, nil
}

// DeleteResult reports a permanent deletion.
type DeleteResult struct {
	FactsDeleted int64 `json:"facts_deleted"`
}

// Delete permanently removes the batch; a COMMITTED batch's facts are
// cascaded out of the historical store first.
func (s *Service) Delete(ctx context.Context, batchID uuid.UUID, token string) (*DeleteResult, error) {
	detail, err := s.batches.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}

	// The repository CAS guards the delete itself; any concurrent
	// mutation after this read bumps the token and fails it, so the
	// status read here cannot go stale between check and use.
	if err := s.batches.Delete(ctx, batchID, token); err != nil {
		return nil, err
	}

	var deleted int64
	if detail.Batch.Status == constants.BatchCommitted {
		deleted, err = s.store.DeleteByBatch(ctx, batchID)
		if err != nil {
			return nil, common.WrapError(err, "cascade facts")
		}
	}
	s.logger.Info("batch deleted", "batch_id", batchID, "facts_deleted", deleted)
	return &DeleteResult{FactsDeleted: deleted}, nil
}

// Diagnose reruns localization for a document and reports MISSING
// tables with suggested sheets.
func (s *Service) Diagnose(docID, xlsxPath, pdfPath string) ([]locate.Diagnosis, error) {
	doc, err := s.loader.Load(docID, xlsxPath, pdfPath)
	if err != nil {
		return nil, err
	}
	return locate.Diagnose(s.localizer.Locate(doc)), nil
}

// unmatchedFromIssues recovers the unmatched labels recorded at
// creation time, so a commit-time recompute does not drop their
// warnings just because the raw extraction input is gone.
func unmatchedFromIssues(issues []entity.ValidationIssue) []string {
	var labels []string
	for _, is := range issues {
		if is.RuleID != validate.RuleUnmatchedLabel {
			continue
		}
		if label, ok := is.Evidence["raw_label"].(string); ok && label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}

func pagesByTable(cands []entity.BudgetTableCandidate) map[string][]int {
	out := map[string][]int{}
	for _, c := range cands {
		if len(c.PageNumbers) > 0 {
			out[c.Key] = c.PageNumbers
		}
	}
	return out
}

func dedupe(ss []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
