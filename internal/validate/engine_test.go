package validate

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/entity"
)

func field(key constants.FieldKey, value float64) entity.ExtractedField {
	return entity.ExtractedField{
		ID:              uuid.New(),
		Key:             string(key),
		NormalizedValue: value,
		Confidence:      constants.ConfidenceHigh,
	}
}

// balancedFields satisfies every required key and every balance
// invariant; tests then perturb one thing at a time.
func balancedFields() []entity.ExtractedField {
	return []entity.ExtractedField{
		field(constants.RevenueTotal, 100),
		field(constants.ExpenditureTotal, 100),
		field(constants.BasicExpenditure, 80),
		field(constants.ProjectExpenditure, 20),
		field(constants.FiscalGrantRevenueTotal, 60),
		field(constants.FiscalGrantExpenditureTotal, 60),
		field(constants.ThreePublicTotal, 17),
	}
}

func byRule(issues []entity.ValidationIssue) map[string][]entity.ValidationIssue {
	out := map[string][]entity.ValidationIssue{}
	for _, is := range issues {
		out[is.RuleID] = append(out[is.RuleID], is)
	}
	return out
}

func TestValidateCleanBatchHasNoIssues(t *testing.T) {
	e := NewEngine(Config{}, nil)
	issues := e.Validate(Input{BatchID: uuid.New(), Fields: balancedFields()})
	assert.Empty(t, issues)
}

func TestValidateRevenueExpenditureImbalance(t *testing.T) {
	e := NewEngine(Config{}, nil)
	fields := balancedFields()
	fields[1] = field(constants.ExpenditureTotal, 90) // revenue stays 100

	issues := e.Validate(Input{BatchID: uuid.New(), Fields: fields})
	got := byRule(issues)

	require.Len(t, got[RuleBalanceRevExp], 1)
	is := got[RuleBalanceRevExp][0]
	assert.Equal(t, constants.LevelError, is.Level)
	assert.Equal(t, 100.0, is.Evidence["revenue_total"])
	assert.Equal(t, 90.0, is.Evidence["expenditure_total"])
	assert.Equal(t, 10.0, is.Evidence["diff"])

	// 90 != 80+20 breaks the component check too
	require.Len(t, got[RuleBalanceExpComponents], 1)
	assert.Equal(t, -10.0, got[RuleBalanceExpComponents][0].Evidence["diff"])
}

func TestValidateCoverageListsMissingKeys(t *testing.T) {
	e := NewEngine(Config{}, nil)
	issues := e.Validate(Input{
		BatchID: uuid.New(),
		Fields: []entity.ExtractedField{
			field(constants.RevenueTotal, 0),
			field(constants.ExpenditureTotal, 0),
		},
	})
	got := byRule(issues)

	require.Len(t, got[RuleFieldCoverage], 1)
	is := got[RuleFieldCoverage][0]
	assert.Equal(t, constants.LevelError, is.Level)
	missing := is.Evidence["missing_keys"].([]string)
	assert.Contains(t, missing, "basic_expenditure")
	assert.Contains(t, missing, "three_public_total")
	assert.NotContains(t, missing, "revenue_total")
}

func TestValidateEpsilonTolerance(t *testing.T) {
	e := NewEngine(Config{Epsilon: 0.0001}, nil)
	fields := balancedFields()
	fields[0] = field(constants.RevenueTotal, 100.00005)

	issues := e.Validate(Input{BatchID: uuid.New(), Fields: fields})
	assert.Empty(t, byRule(issues)[RuleBalanceRevExp])
}

func TestValidateCorrectionIsAuthoritative(t *testing.T) {
	e := NewEngine(Config{}, nil)
	fields := balancedFields()
	corrected := 100.0
	bad := field(constants.ExpenditureTotal, 55)
	bad.CorrectedValue = &corrected
	bad.Confirmed = true
	fields[1] = bad

	issues := e.Validate(Input{BatchID: uuid.New(), Fields: fields})
	assert.Empty(t, byRule(issues)[RuleBalanceRevExp])
}

func TestValidateYoYAnomalyWarns(t *testing.T) {
	e := NewEngine(Config{YoYWarnRatio: 0.5}, nil)
	fields := append(balancedFields(),
		field(constants.PrevRevenueTotal, 40), // 100 vs 40: 150% deviation
		field(constants.PrevThreePublicTotal, 16),
	)

	issues := e.Validate(Input{BatchID: uuid.New(), Fields: fields})
	got := byRule(issues)

	require.Len(t, got[RuleYoYAnomaly], 1)
	is := got[RuleYoYAnomaly][0]
	assert.Equal(t, constants.LevelWarn, is.Level)
	assert.Equal(t, "revenue_total", is.Evidence["key"])
	assert.Equal(t, 1.5, is.Evidence["ratio"])
}

func TestValidateManualConflictWarns(t *testing.T) {
	e := NewEngine(Config{}, nil)
	issues := e.Validate(Input{
		BatchID: uuid.New(),
		Fields:  balancedFields(),
		ManualValues: map[string]float64{
			"three_public_total": 18,
		},
	})
	got := byRule(issues)

	require.Len(t, got[RuleManualConflict], 1)
	is := got[RuleManualConflict][0]
	assert.Equal(t, constants.LevelWarn, is.Level)
	assert.Equal(t, 17.0, is.Evidence["extracted"])
	assert.Equal(t, 18.0, is.Evidence["manual"])
}

func TestValidateManualConflictEscalatesOnImplicatedKey(t *testing.T) {
	e := NewEngine(Config{}, nil)
	fields := balancedFields()
	fields[0] = field(constants.RevenueTotal, 90) // breaks rev/exp balance

	issues := e.Validate(Input{
		BatchID: uuid.New(),
		Fields:  fields,
		ManualValues: map[string]float64{
			"revenue_total": 100,
		},
	})
	got := byRule(issues)

	require.Len(t, got[RuleManualConflict], 1)
	assert.Equal(t, constants.LevelError, got[RuleManualConflict][0].Level)
}

func TestValidateUnmatchedLabelsWarn(t *testing.T) {
	e := NewEngine(Config{}, nil)
	issues := e.Validate(Input{
		BatchID:         uuid.New(),
		Fields:          balancedFields(),
		UnmatchedLabels: []string{"离退休经费"},
	})
	got := byRule(issues)

	require.Len(t, got[RuleUnmatchedLabel], 1)
	assert.Equal(t, constants.LevelWarn, got[RuleUnmatchedLabel][0].Level)
	assert.Equal(t, "离退休经费", got[RuleUnmatchedLabel][0].Evidence["raw_label"])
}

func TestCountErrors(t *testing.T) {
	issues := []entity.ValidationIssue{
		{Level: constants.LevelError},
		{Level: constants.LevelWarn},
		{Level: constants.LevelError},
	}
	assert.Equal(t, 2, CountErrors(issues))
}
