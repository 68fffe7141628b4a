package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HistoricalStore is the historical-actuals collaborator: one
// transactional "write facts for unit+year" call and one "delete facts
// written by batch X" call, both reporting affected-row counts.
type HistoricalStore interface {
	WriteFacts(ctx context.Context, unitID string, year int, batchID uuid.UUID, facts map[string]float64) (int64, error)
	DeleteByBatch(ctx context.Context, batchID uuid.UUID) (int64, error)
}

type factStore struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewHistoricalStore(db *gorm.DB, log *slog.Logger) HistoricalStore {
	if log == nil {
		log = slog.Default()
	}
	return &factStore{db: db, log: log}
}

// WriteFacts upserts every fact for the unit+year as one atomic unit.
// An existing row for the same key is overwritten with the new value
// and batch provenance.
func (s *factStore) WriteFacts(ctx context.Context, unitID string, year int, batchID uuid.UUID, facts map[string]float64) (int64, error) {
	var written int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, value := range facts {
			m := FactModel{
				ID:        uuid.New(),
				UnitID:    unitID,
				Year:      year,
				Key:       key,
				Value:     value,
				BatchID:   batchID,
				CreatedAt: time.Now().UTC(),
			}
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "unit_id"}, {Name: "year"}, {Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "batch_id"}),
			}).Create(&m)
			if res.Error != nil {
				return res.Error
			}
			written++
		}
		return nil
	})
	if err != nil {
		s.log.Error("write facts failed", "unit", unitID, "year", year, "error", err)
		return 0, err
	}
	s.log.Info("facts written", "unit", unitID, "year", year, "rows", written)
	return written, nil
}

func (s *factStore) DeleteByBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	res := s.db.WithContext(ctx).Where("batch_id = ?", batchID).Delete(&FactModel{})
	if res.Error != nil {
		return 0, res.Error
	}
	s.log.Info("facts deleted", "batch_id", batchID, "rows", res.RowsAffected)
	return res.RowsAffected, nil
}
