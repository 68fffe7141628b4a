package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/common"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/entity"
)

// BatchDetail is one batch with everything the review UI needs.
type BatchDetail struct {
	Batch  entity.ExtractionBatch   `json:"batch"`
	Fields []entity.ExtractedField  `json:"fields"`
	Issues []entity.ValidationIssue `json:"issues"`
	OCR    entity.OcrSummary        `json:"ocr"`
}

// ListFilter narrows ListBatches.
type ListFilter struct {
	Status constants.BatchStatus
	UnitID string
	Year   int
}

// BatchRepository persists batches, their fields, and their issues.
// Every mutation that takes a token performs a compare-and-swap on the
// batch's updated_at and fails with common.ErrStaleToken on mismatch.
type BatchRepository interface {
	CreateGraph(ctx context.Context, batch entity.ExtractionBatch, fields []entity.ExtractedField, issues []entity.ValidationIssue, ocr entity.OcrSummary) error
	Get(ctx context.Context, id uuid.UUID) (*BatchDetail, error)
	List(ctx context.Context, filter ListFilter) ([]entity.ExtractionBatch, error)
	PatchField(ctx context.Context, batchID uuid.UUID, key string, token string, corrected *float64, confirmed *bool) error
	TransitionStatus(ctx context.Context, batchID uuid.UUID, token string, from, to constants.BatchStatus) (string, error)
	ReplaceIssues(ctx context.Context, batchID uuid.UUID, issues []entity.ValidationIssue) error
	Delete(ctx context.Context, batchID uuid.UUID, token string) error
	PurgeRejectedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type batchRepo struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewBatchRepository(db *gorm.DB, log *slog.Logger) BatchRepository {
	if log == nil {
		log = slog.Default()
	}
	return &batchRepo{db: db, log: log}
}

// tokenTime parses a concurrency token back to the stored timestamp.
func tokenTime(token string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, token)
	if err != nil {
		return time.Time{}, common.NewAppError("BAD_TOKEN", "malformed concurrency token", common.ErrStaleToken)
	}
	return t, nil
}

// now returns a timestamp truncated to what the column stores, so a
// written token compares equal when echoed back.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func (r *batchRepo) CreateGraph(ctx context.Context, batch entity.ExtractionBatch, fields []entity.ExtractedField, issues []entity.ValidationIssue, ocr entity.OcrSummary) error {
	ocrJSON, err := json.Marshal(ocr)
	if err != nil {
		return common.WrapError(err, "marshal ocr summary")
	}
	ts := now()
	bm := BatchModel{
		ID:               batch.ID,
		SourceDocumentID: batch.SourceDocumentID,
		UnitID:           batch.UnitID,
		Year:             batch.Year,
		Status:           string(batch.Status),
		OcrSummary:       ocrJSON,
		CreatedAt:        ts,
		UpdatedAt:        ts,
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&bm).Error; err != nil {
			return err
		}
		for _, f := range fields {
			fm := FieldModel{
				ID:              f.ID,
				BatchID:         batch.ID,
				Key:             f.Key,
				NormalizedValue: f.NormalizedValue,
				CorrectedValue:  f.CorrectedValue,
				Confidence:      string(f.Confidence),
				Confirmed:       f.Confirmed,
				RawTextSnippet:  f.RawTextSnippet,
			}
			if err := tx.Create(&fm).Error; err != nil {
				return err
			}
		}
		return replaceIssuesTx(tx, batch.ID, issues)
	})
}

func (r *batchRepo) Get(ctx context.Context, id uuid.UUID) (*BatchDetail, error) {
	var bm BatchModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&bm).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}

	var fms []FieldModel
	if err := r.db.WithContext(ctx).Where("batch_id = ?", id).Order("key").Find(&fms).Error; err != nil {
		return nil, err
	}
	var ims []IssueModel
	if err := r.db.WithContext(ctx).Where("batch_id = ?", id).Order("level, rule_id").Find(&ims).Error; err != nil {
		return nil, err
	}

	detail := &BatchDetail{Batch: bm.toEntity()}
	for _, fm := range fms {
		detail.Fields = append(detail.Fields, fm.toEntity())
	}
	for _, im := range ims {
		detail.Issues = append(detail.Issues, im.toEntity())
	}
	if len(bm.OcrSummary) > 0 {
		_ = json.Unmarshal(bm.OcrSummary, &detail.OCR)
	}
	return detail, nil
}

func (r *batchRepo) List(ctx context.Context, filter ListFilter) ([]entity.ExtractionBatch, error) {
	tx := r.db.WithContext(ctx).Model(&BatchModel{})
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}
	if filter.UnitID != "" {
		tx = tx.Where("unit_id = ?", filter.UnitID)
	}
	if filter.Year != 0 {
		tx = tx.Where("year = ?", filter.Year)
	}
	var bms []BatchModel
	if err := tx.Order("created_at DESC").Find(&bms).Error; err != nil {
		return nil, err
	}
	out := make([]entity.ExtractionBatch, len(bms))
	for i, bm := range bms {
		out[i] = bm.toEntity()
	}
	return out, nil
}

func (r *batchRepo) PatchField(ctx context.Context, batchID uuid.UUID, key string, token string, corrected *float64, confirmed *bool) error {
	tt, err := tokenTime(token)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// CAS: bump updated_at only if the caller saw the latest row.
		res := tx.Model(&BatchModel{}).
			Where("id = ? AND updated_at = ?", batchID, tt).
			Update("updated_at", now())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return common.ErrStaleToken
		}

		updates := map[string]any{}
		if corrected != nil {
			updates["corrected_value"] = *corrected
		}
		if confirmed != nil {
			updates["confirmed"] = *confirmed
		}
		if len(updates) == 0 {
			return common.NewAppError("EMPTY_PATCH", "nothing to update", common.ErrInvalidInput)
		}
		fres := tx.Model(&FieldModel{}).
			Where("batch_id = ? AND key = ?", batchID, key).
			Updates(updates)
		if fres.Error != nil {
			return fres.Error
		}
		if fres.RowsAffected == 0 {
			return common.ErrNotFound
		}
		return nil
	})
}

func (r *batchRepo) TransitionStatus(ctx context.Context, batchID uuid.UUID, token string, from, to constants.BatchStatus) (string, error) {
	tt, err := tokenTime(token)
	if err != nil {
		return "", err
	}
	ts := now()
	res := r.db.WithContext(ctx).Model(&BatchModel{}).
		Where("id = ? AND updated_at = ? AND status = ?", batchID, tt, string(from)).
		Updates(map[string]any{"status": string(to), "updated_at": ts})
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return "", common.ErrStaleToken
	}
	r.log.Info("batch status transition", "batch_id", batchID, "from", from, "to", to)
	return ts.Format(time.RFC3339Nano), nil
}

func (r *batchRepo) ReplaceIssues(ctx context.Context, batchID uuid.UUID, issues []entity.ValidationIssue) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replaceIssuesTx(tx, batchID, issues)
	})
}

func replaceIssuesTx(tx *gorm.DB, batchID uuid.UUID, issues []entity.ValidationIssue) error {
	if err := tx.Where("batch_id = ?", batchID).Delete(&IssueModel{}).Error; err != nil {
		return err
	}
	for _, is := range issues {
		ev, err := json.Marshal(is.Evidence)
		if err != nil {
			return common.WrapError(err, "marshal issue evidence")
		}
		im := IssueModel{
			ID:       is.ID,
			BatchID:  batchID,
			Level:    string(is.Level),
			RuleID:   is.RuleID,
			Message:  is.Message,
			Evidence: ev,
		}
		if err := tx.Create(&im).Error; err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the batch graph under the same updated_at CAS every
// other mutation uses; a stale token deletes nothing.
func (r *batchRepo) Delete(ctx context.Context, batchID uuid.UUID, token string) error {
	tt, err := tokenTime(token)
	if err != nil {
		return err
	}
	return r.deleteGraph(ctx, batchID, &tt)
}

func (r *batchRepo) deleteGraph(ctx context.Context, batchID uuid.UUID, updatedAt *time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("id = ?", batchID)
		if updatedAt != nil {
			q = q.Where("updated_at = ?", *updatedAt)
		}
		res := q.Delete(&BatchModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&BatchModel{}).Where("id = ?", batchID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return common.ErrNotFound
			}
			return common.ErrStaleToken
		}
		if err := tx.Where("batch_id = ?", batchID).Delete(&FieldModel{}).Error; err != nil {
			return err
		}
		return tx.Where("batch_id = ?", batchID).Delete(&IssueModel{}).Error
	})
}

func (r *batchRepo) PurgeRejectedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&BatchModel{}).
		Where("status = ? AND updated_at < ?", string(constants.BatchRejected), cutoff).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	var purged int64
	for _, id := range ids {
		// housekeeping holds no reviewer token; delete unconditionally
		if err := r.deleteGraph(ctx, id, nil); err != nil {
			r.log.Error("purge rejected batch failed", "batch_id", id, "error", err)
			continue
		}
		purged++
	}
	return purged, nil
}
