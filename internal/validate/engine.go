// Package validate evaluates accounting invariants over a batch's
// fields. Every run is a full recompute producing a fresh issue list;
// issues are never patched incrementally. All evidence is structured
// so the review UI and tests can assert on numbers, not prose.
package validate

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/entity"
)

// Rule identifiers, stable for UI and test assertions.
const (
	RuleFieldCoverage        = "FIELD_COVERAGE"
	RuleBalanceRevExp        = "BALANCE_REVENUE_EXPENDITURE"
	RuleBalanceExpComponents = "BALANCE_EXPENDITURE_COMPONENTS"
	RuleBalanceFiscalGrant   = "BALANCE_FISCAL_GRANT"
	RuleYoYAnomaly           = "YOY_ANOMALY"
	RuleManualConflict       = "MANUAL_CONFLICT"
	RuleUnmatchedLabel       = "UNMATCHED_LABEL"
)

type Config struct {
	Epsilon      float64 // balance tolerance, default 0.0001
	YoYWarnRatio float64 // relative deviation that triggers YOY_ANOMALY, default 0.5
}

type Engine struct {
	cfg    Config
	logger *slog.Logger
}

func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = 0.0001
	}
	if cfg.YoYWarnRatio <= 0 {
		cfg.YoYWarnRatio = 0.5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Input is the batch state the engine reads. ManualValues carries
// independently hand-entered figures for cross-checking.
type Input struct {
	BatchID         uuid.UUID
	Fields          []entity.ExtractedField
	ManualValues    map[string]float64
	UnmatchedLabels []string
}

// Validate is a pure function of the input; it has no side effects.
func (e *Engine) Validate(in Input) []entity.ValidationIssue {
	vals := map[string]float64{}
	present := map[string]bool{}
	for _, f := range in.Fields {
		vals[f.Key] = f.AuthoritativeValue()
		present[f.Key] = true
	}

	var issues []entity.ValidationIssue
	// implicated tracks keys participating in a failed ERROR rule, so
	// manual conflicts on them escalate.
	implicated := map[string]bool{}

	issues = append(issues, e.coverage(in.BatchID, present, implicated)...)
	issues = append(issues, e.balances(in.BatchID, vals, implicated)...)
	issues = append(issues, e.yoy(in.BatchID, vals, present)...)
	issues = append(issues, e.manualConflicts(in.BatchID, vals, present, in.ManualValues, implicated)...)
	issues = append(issues, e.unmatched(in.BatchID, in.UnmatchedLabels)...)

	errs, warns := 0, 0
	for _, is := range issues {
		if is.Level == constants.LevelError {
			errs++
		} else {
			warns++
		}
	}
	e.logger.Info("validation recomputed",
		"batch_id", in.BatchID, "errors", errs, "warnings", warns)
	return issues
}

func (e *Engine) coverage(batchID uuid.UUID, present map[string]bool, implicated map[string]bool) []entity.ValidationIssue {
	var missing []string
	for _, key := range constants.RequiredKeys {
		if !present[string(key)] {
			missing = append(missing, string(key))
			implicated[string(key)] = true
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return []entity.ValidationIssue{{
		ID:      uuid.New(),
		BatchID: batchID,
		Level:   constants.LevelError,
		RuleID:  RuleFieldCoverage,
		Message: fmt.Sprintf("%d required fields are missing", len(missing)),
		Evidence: map[string]any{
			"missing_keys": missing,
		},
	}}
}

// balanceCheck is one |lhs - rhs| <= ε invariant.
type balanceCheck struct {
	rule    string
	message string
	lhsKeys []string
	rhsKeys []string
}

var balanceChecks = []balanceCheck{
	{
		rule:    RuleBalanceRevExp,
		message: "revenue total and expenditure total do not balance",
		lhsKeys: []string{string(constants.RevenueTotal)},
		rhsKeys: []string{string(constants.ExpenditureTotal)},
	},
	{
		rule:    RuleBalanceExpComponents,
		message: "expenditure total does not equal basic plus project",
		lhsKeys: []string{string(constants.ExpenditureTotal)},
		rhsKeys: []string{string(constants.BasicExpenditure), string(constants.ProjectExpenditure)},
	},
	{
		rule:    RuleBalanceFiscalGrant,
		message: "fiscal-grant revenue and expenditure do not balance",
		lhsKeys: []string{string(constants.FiscalGrantRevenueTotal)},
		rhsKeys: []string{string(constants.FiscalGrantExpenditureTotal)},
	},
}

func (e *Engine) balances(batchID uuid.UUID, vals map[string]float64, implicated map[string]bool) []entity.ValidationIssue {
	var issues []entity.ValidationIssue
	for _, chk := range balanceChecks {
		lhs, rhs := 0.0, 0.0
		evidence := map[string]any{}
		for _, k := range chk.lhsKeys {
			lhs += vals[k]
			evidence[k] = vals[k]
		}
		for _, k := range chk.rhsKeys {
			rhs += vals[k]
			evidence[k] = vals[k]
		}
		diff := lhs - rhs
		if math.Abs(diff) <= e.cfg.Epsilon {
			continue
		}
		evidence["diff"] = diff
		for _, k := range append(append([]string{}, chk.lhsKeys...), chk.rhsKeys...) {
			implicated[k] = true
		}
		issues = append(issues, entity.ValidationIssue{
			ID:       uuid.New(),
			BatchID:  batchID,
			Level:    constants.LevelError,
			RuleID:   chk.rule,
			Message:  chk.message,
			Evidence: evidence,
		})
	}
	return issues
}

// yoyPairs maps current-year keys to their previous-year comparatives.
var yoyPairs = map[string]string{
	string(constants.RevenueTotal):     string(constants.PrevRevenueTotal),
	string(constants.ExpenditureTotal): string(constants.PrevExpenditureTotal),
	string(constants.ThreePublicTotal): string(constants.PrevThreePublicTotal),
}

func (e *Engine) yoy(batchID uuid.UUID, vals map[string]float64, present map[string]bool) []entity.ValidationIssue {
	var issues []entity.ValidationIssue
	for cur, prev := range yoyPairs {
		if !present[cur] || !present[prev] || vals[prev] == 0 {
			continue
		}
		ratio := math.Abs(vals[cur]-vals[prev]) / math.Abs(vals[prev])
		if ratio <= e.cfg.YoYWarnRatio {
			continue
		}
		issues = append(issues, entity.ValidationIssue{
			ID:      uuid.New(),
			BatchID: batchID,
			Level:   constants.LevelWarn,
			RuleID:  RuleYoYAnomaly,
			Message: fmt.Sprintf("%s deviates %.0f%% from previous year", cur, ratio*100),
			Evidence: map[string]any{
				"key":       cur,
				"current":   vals[cur],
				"previous":  vals[prev],
				"ratio":     ratio,
				"threshold": e.cfg.YoYWarnRatio,
			},
		})
	}
	return issues
}

func (e *Engine) manualConflicts(batchID uuid.UUID, vals map[string]float64, present map[string]bool, manual map[string]float64, implicated map[string]bool) []entity.ValidationIssue {
	var issues []entity.ValidationIssue
	for key, mv := range manual {
		if !present[key] {
			continue
		}
		if math.Abs(vals[key]-mv) <= e.cfg.Epsilon {
			continue
		}
		level := constants.LevelWarn
		if implicated[key] {
			// the disagreement sits on a key already failing coverage
			// or a balance invariant
			level = constants.LevelError
		}
		issues = append(issues, entity.ValidationIssue{
			ID:      uuid.New(),
			BatchID: batchID,
			Level:   level,
			RuleID:  RuleManualConflict,
			Message: fmt.Sprintf("extracted value for %s disagrees with the manually entered one", key),
			Evidence: map[string]any{
				"key":       key,
				"extracted": vals[key],
				"manual":    mv,
				"diff":      vals[key] - mv,
			},
		})
	}
	return issues
}

func (e *Engine) unmatched(batchID uuid.UUID, labels []string) []entity.ValidationIssue {
	var issues []entity.ValidationIssue
	for _, label := range labels {
		issues = append(issues, entity.ValidationIssue{
			ID:      uuid.New(),
			BatchID: batchID,
			Level:   constants.LevelWarn,
			RuleID:  RuleUnmatchedLabel,
			Message: "label could not be resolved to any field key",
			Evidence: map[string]any{
				"raw_label": label,
			},
		})
	}
	return issues
}

// CountErrors reports how many ERROR-level issues a list carries.
func CountErrors(issues []entity.ValidationIssue) int {
	n := 0
	for _, is := range issues {
		if is.Level == constants.LevelError {
			n++
		}
	}
	return n
}
