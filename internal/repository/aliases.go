package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/common"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/entity"
)

// AliasRepository persists learned label mappings, the only state
// shared across batches. Writes are last-write-wins: alias status is a
// simple enum with no merge semantics.
type AliasRepository interface {
	FindApproved(ctx context.Context, normalizedLabel string) (*entity.AliasMapping, error)
	EnsureCandidate(ctx context.Context, rawLabel, normalizedLabel, guessedKey string) error
	SetStatus(ctx context.Context, id uuid.UUID, status constants.AliasStatus, resolvedKey string) (*entity.AliasMapping, error)
	List(ctx context.Context, status constants.AliasStatus) ([]entity.AliasMapping, error)
}

type aliasRepo struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewAliasRepository(db *gorm.DB, log *slog.Logger) AliasRepository {
	if log == nil {
		log = slog.Default()
	}
	return &aliasRepo{db: db, log: log}
}

func (r *aliasRepo) FindApproved(ctx context.Context, normalizedLabel string) (*entity.AliasMapping, error) {
	var m AliasModel
	err := r.db.WithContext(ctx).
		Where("normalized_label = ? AND status = ?", normalizedLabel, string(constants.AliasApproved)).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	e := m.toEntity()
	return &e, nil
}

// EnsureCandidate records a CANDIDATE mapping for an unseen label.
// Re-encountering a known label is a no-op regardless of its status,
// so REJECTED mappings stay rejected.
func (r *aliasRepo) EnsureCandidate(ctx context.Context, rawLabel, normalizedLabel, guessedKey string) error {
	m := AliasModel{
		ID:              uuid.New(),
		RawLabel:        rawLabel,
		NormalizedLabel: normalizedLabel,
		ResolvedKey:     guessedKey,
		Status:          string(constants.AliasCandidate),
		UpdatedAt:       time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "normalized_label"}},
			DoNothing: true,
		}).
		Create(&m).Error
}

// SetStatus transitions a mapping. Same-status transitions are
// idempotent no-ops, not errors.
func (r *aliasRepo) SetStatus(ctx context.Context, id uuid.UUID, status constants.AliasStatus, resolvedKey string) (*entity.AliasMapping, error) {
	var m AliasModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}

	updates := map[string]any{}
	if m.Status != string(status) {
		updates["status"] = string(status)
	}
	if resolvedKey != "" && resolvedKey != m.ResolvedKey {
		updates["resolved_key"] = resolvedKey
	}
	if len(updates) > 0 {
		updates["updated_at"] = time.Now().UTC()
		if err := r.db.WithContext(ctx).Model(&AliasModel{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, err
		}
		if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
			return nil, err
		}
		r.log.Info("alias status set", "alias_id", id, "status", status, "key", m.ResolvedKey)
	}
	e := m.toEntity()
	return &e, nil
}

func (r *aliasRepo) List(ctx context.Context, status constants.AliasStatus) ([]entity.AliasMapping, error) {
	tx := r.db.WithContext(ctx).Model(&AliasModel{})
	if status != "" {
		tx = tx.Where("status = ?", string(status))
	}
	var ms []AliasModel
	if err := tx.Order("updated_at DESC").Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]entity.AliasMapping, len(ms))
	for i, m := range ms {
		out[i] = m.toEntity()
	}
	return out, nil
}
