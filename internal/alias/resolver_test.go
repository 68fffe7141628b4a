package alias

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/common"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/entity"
)

// fakeAliasRepo is an in-memory AliasRepository keyed by normalized label.
type fakeAliasRepo struct {
	byNorm map[string]*entity.AliasMapping
}

func newFakeAliasRepo() *fakeAliasRepo {
	return &fakeAliasRepo{byNorm: map[string]*entity.AliasMapping{}}
}

func (f *fakeAliasRepo) FindApproved(_ context.Context, norm string) (*entity.AliasMapping, error) {
	m, ok := f.byNorm[norm]
	if !ok || m.Status != constants.AliasApproved {
		return nil, common.ErrNotFound
	}
	return m, nil
}

func (f *fakeAliasRepo) EnsureCandidate(_ context.Context, raw, norm, guessed string) error {
	if _, ok := f.byNorm[norm]; ok {
		return nil
	}
	f.byNorm[norm] = &entity.AliasMapping{
		ID:              uuid.New(),
		RawLabel:        raw,
		NormalizedLabel: norm,
		ResolvedKey:     guessed,
		Status:          constants.AliasCandidate,
	}
	return nil
}

func (f *fakeAliasRepo) SetStatus(_ context.Context, id uuid.UUID, status constants.AliasStatus, resolvedKey string) (*entity.AliasMapping, error) {
	for _, m := range f.byNorm {
		if m.ID == id {
			m.Status = status
			if resolvedKey != "" {
				m.ResolvedKey = resolvedKey
			}
			return m, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeAliasRepo) List(_ context.Context, status constants.AliasStatus) ([]entity.AliasMapping, error) {
	var out []entity.AliasMapping
	for _, m := range f.byNorm {
		if status == "" || m.Status == status {
			out = append(out, *m)
		}
	}
	return out, nil
}

func TestLearnRecordsCandidateOnce(t *testing.T) {
	repo := newFakeAliasRepo()
	r := NewResolver(repo, nil)
	ctx := context.Background()

	r.Learn(ctx, []string{"离退休经费", "离退休经费", "离 退 休 经 费"})

	list, err := r.List(ctx, constants.AliasCandidate)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, "离退休经费", list[0].RawLabel)
}

func TestLearnGuessesKeyByOverlap(t *testing.T) {
	repo := newFakeAliasRepo()
	r := NewResolver(repo, nil)
	ctx := context.Background()

	r.Learn(ctx, []string{"本年度收入总计数"})

	list, err := r.List(ctx, constants.AliasCandidate)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "revenue_total", list[0].ResolvedKey)
}

func TestResolveApprovedIgnoresCandidates(t *testing.T) {
	repo := newFakeAliasRepo()
	r := NewResolver(repo, nil)
	ctx := context.Background()

	r.Learn(ctx, []string{"单位收入总额"})
	_, ok := r.ResolveApproved(ctx, "单位收入总额")
	assert.False(t, ok, "CANDIDATE mappings must not auto-apply")

	list, _ := r.List(ctx, constants.AliasCandidate)
	require.Len(t, list, 1)
	_, err := r.SetStatus(ctx, list[0].ID, constants.AliasApproved, "revenue_total")
	require.NoError(t, err)

	key, ok := r.ResolveApproved(ctx, "单位 收入 总额")
	require.True(t, ok)
	assert.Equal(t, constants.RevenueTotal, key)
}

func TestSetStatusRejectsUnknownStatus(t *testing.T) {
	r := NewResolver(newFakeAliasRepo(), nil)
	_, err := r.SetStatus(context.Background(), uuid.New(), "MAYBE", "")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
