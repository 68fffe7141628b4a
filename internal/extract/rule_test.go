package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/document"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/entity"
)

type stubResolver struct {
	approved map[string]constants.FieldKey
}

func (s *stubResolver) ResolveApproved(_ context.Context, rawLabel string) (constants.FieldKey, bool) {
	key, ok := s.approved[constants.NormalizeLabel(rawLabel)]
	return key, ok
}

func docWithLines(lines ...string) *document.Document {
	rows := make([][]string, len(lines))
	for i, l := range lines {
		rows[i] = []string{l}
	}
	return &document.Document{
		ID:     "doc-1",
		Sheets: []document.Sheet{{Name: "Sheet1", Rows: rows}},
	}
}

func itemsByKey(items []Item) map[constants.FieldKey]Item {
	out := map[constants.FieldKey]Item{}
	for _, it := range items {
		out[it.Key] = it
	}
	return out
}

func TestExtractFromViewGradesHigh(t *testing.T) {
	e := NewRuleExtractor(nil, nil)
	in := Input{
		Doc: docWithLines(),
		Views: []entity.StructuredTableView{{
			Key:    "income_expenditure_summary",
			Family: constants.FamilyTwoSided,
			BodyRows: []entity.StructuredRow{
				{Codes: []string{"收入总计"}, Values: []float64{100.00, 0, 0}},
				{Codes: []string{"支出总计"}, Values: []float64{90.00, 0, 0}},
			},
		}},
	}

	res, err := e.Extract(context.Background(), in)
	require.NoError(t, err)

	got := itemsByKey(res.Items)
	assert.Equal(t, 100.00, got[constants.RevenueTotal].Value)
	assert.Equal(t, constants.ConfidenceHigh, got[constants.RevenueTotal].Confidence)
	assert.Equal(t, 90.00, got[constants.ExpenditureTotal].Value)
}

func TestExtractThreePublicMapsColumnsPositionally(t *testing.T) {
	e := NewRuleExtractor(nil, nil)
	in := Input{
		Doc: docWithLines(),
		Views: []entity.StructuredTableView{{
			Key:    "three_public",
			Family: constants.FamilyThreePublic,
			BodyRows: []entity.StructuredRow{
				{Codes: []string{"某某单位"}, Values: []float64{17.00, 1.00, 0.50, 15.50, 12.00, 3.50}},
			},
		}},
	}

	res, err := e.Extract(context.Background(), in)
	require.NoError(t, err)

	got := itemsByKey(res.Items)
	assert.Equal(t, 17.00, got[constants.ThreePublicTotal].Value)
	assert.Equal(t, 1.00, got[constants.ThreePublicOutbound].Value)
	assert.Equal(t, 0.50, got[constants.ThreePublicReception].Value)
	assert.Equal(t, 15.50, got[constants.ThreePublicVehicleTotal].Value)
	assert.Equal(t, 12.00, got[constants.ThreePublicVehiclePurchase].Value)
	assert.Equal(t, 3.50, got[constants.ThreePublicVehicleOperation].Value)
	for _, it := range res.Items {
		assert.Equal(t, constants.ConfidenceHigh, it.Confidence)
	}
}

func TestExtractFromTextGradesMediumLowUnrecognized(t *testing.T) {
	e := NewRuleExtractor(nil, nil)
	in := Input{Doc: docWithLines(
		"基本支出: 80.00",
		"项目支出合计 填报数 20.00 元",
		"公务接待费（无发生额）",
	)}

	res, err := e.Extract(context.Background(), in)
	require.NoError(t, err)

	got := itemsByKey(res.Items)

	basic := got[constants.BasicExpenditure]
	assert.Equal(t, 80.00, basic.Value)
	assert.Equal(t, constants.ConfidenceMedium, basic.Confidence)

	project := got[constants.ProjectExpenditure]
	assert.Equal(t, 20.00, project.Value)
	assert.Equal(t, constants.ConfidenceLow, project.Confidence)

	reception := got[constants.ThreePublicReception]
	assert.Equal(t, constants.ConfidenceUnrecognized, reception.Confidence)
	assert.Equal(t, "公务接待费（无发生额）", reception.Snippet)
}

func TestExtractCollectsUnmatchedLabels(t *testing.T) {
	e := NewRuleExtractor(nil, nil)
	in := Input{Doc: docWithLines("离退休经费: 12.00", "离退休经费: 12.00")}

	res, err := e.Extract(context.Background(), in)
	require.NoError(t, err)

	assert.Empty(t, res.Items)
	assert.Equal(t, []string{"离退休经费"}, res.UnmatchedLabels)
}

func TestExtractApprovedAliasKeepsHighFromText(t *testing.T) {
	resolver := &stubResolver{approved: map[string]constants.FieldKey{
		constants.NormalizeLabel("单位收入总额"): constants.RevenueTotal,
	}}
	e := NewRuleExtractor(resolver, nil)
	in := Input{Doc: docWithLines("单位收入总额: 333.00")}

	res, err := e.Extract(context.Background(), in)
	require.NoError(t, err)

	got := itemsByKey(res.Items)
	assert.Equal(t, 333.00, got[constants.RevenueTotal].Value)
	assert.Equal(t, constants.ConfidenceHigh, got[constants.RevenueTotal].Confidence)
	assert.Empty(t, res.UnmatchedLabels)
}

func TestExtraTextFeedsTheTextScan(t *testing.T) {
	e := NewRuleExtractor(nil, nil)
	in := Input{
		Doc:       docWithLines(),
		ExtraText: map[string]string{"fiscal_grant_summary": "财政拨款收入总计: 55.00"},
	}

	res, err := e.Extract(context.Background(), in)
	require.NoError(t, err)

	got := itemsByKey(res.Items)
	assert.Equal(t, 55.00, got[constants.FiscalGrantRevenueTotal].Value)
}
