// Package alias maintains the learned label-to-key mappings that
// outlive any single batch: read-mostly, append-on-discovery,
// human-gated promotion.
package alias

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/common"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/entity"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/repository"
)

type Resolver struct {
	repo   repository.AliasRepository
	logger *slog.Logger
}

func NewResolver(repo repository.AliasRepository, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{repo: repo, logger: logger}
}

// ResolveApproved implements extract.KeyResolver. Only APPROVED
// mappings are applied automatically; REJECTED ones stay visible for
// traceability but are never consulted here.
func (r *Resolver) ResolveApproved(ctx context.Context, rawLabel string) (constants.FieldKey, bool) {
	norm := constants.NormalizeLabel(rawLabel)
	if norm == "" {
		return "", false
	}
	m, err := r.repo.FindApproved(ctx, norm)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			r.logger.Error("alias lookup failed", "label", rawLabel, "error", err)
		}
		return "", false
	}
	if m.ResolvedKey == "" {
		return "", false
	}
	return constants.FieldKey(m.ResolvedKey), true
}

// Learn records CANDIDATE mappings for labels extraction could not
// resolve, with a best-guess key. Already-known labels are untouched.
func (r *Resolver) Learn(ctx context.Context, rawLabels []string) {
	for _, raw := range rawLabels {
		norm := constants.NormalizeLabel(raw)
		if norm == "" {
			continue
		}
		guess := guessKey(norm)
		if err := r.repo.EnsureCandidate(ctx, raw, norm, guess); err != nil {
			r.logger.Error("alias candidate record failed", "label", raw, "error", err)
			continue
		}
		r.logger.Debug("alias candidate recorded", "label", raw, "guess", guess)
	}
}

// SetStatus promotes or rejects a mapping. CANDIDATE -> CANDIDATE and
// other same-status calls are no-ops.
func (r *Resolver) SetStatus(ctx context.Context, id uuid.UUID, status constants.AliasStatus, resolvedKey string) (*entity.AliasMapping, error) {
	switch status {
	case constants.AliasCandidate, constants.AliasApproved, constants.AliasRejected:
	default:
		return nil, common.NewAppError("BAD_ALIAS_STATUS", "unknown alias status", common.ErrInvalidInput)
	}
	return r.repo.SetStatus(ctx, id, status, resolvedKey)
}

// List returns mappings, optionally filtered by status.
func (r *Resolver) List(ctx context.Context, status constants.AliasStatus) ([]entity.AliasMapping, error) {
	return r.repo.List(ctx, status)
}

// guessKey proposes a canonical key for an unseen label by partial
// overlap with the built-in vocabulary. A guess is only a suggestion
// for the reviewer; it is never auto-applied.
func guessKey(norm string) string {
	for _, key := range constants.AllFieldKeys() {
		known := constants.NormalizeLabel(constants.Label(key))
		if known == "" {
			continue
		}
		if strings.Contains(norm, known) || strings.Contains(known, norm) {
			return string(key)
		}
	}
	return ""
}
