package extract

import (
	"sort"

	"github.com/google/uuid"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/entity"
)

// AssembleFields merges extracted items into one field per key. When
// the same key is produced twice the higher-confidence extraction
// wins; both snippets are retained for audit.
func AssembleFields(batchID uuid.UUID, items []Item) []entity.ExtractedField {
	byKey := map[constants.FieldKey]entity.ExtractedField{}
	order := []constants.FieldKey{}

	for _, it := range items {
		if it.Key == "" {
			continue
		}
		cur, exists := byKey[it.Key]
		if !exists {
			byKey[it.Key] = entity.ExtractedField{
				ID:              uuid.New(),
				BatchID:         batchID,
				Key:             string(it.Key),
				NormalizedValue: it.Value,
				Confidence:      it.Confidence,
				RawTextSnippet:  it.Snippet,
			}
			order = append(order, it.Key)
			continue
		}
		if it.Confidence.Rank() > cur.Confidence.Rank() {
			cur.NormalizedValue = it.Value
			cur.Confidence = it.Confidence
			cur.RawTextSnippet = it.Snippet + " | " + cur.RawTextSnippet
		} else {
			cur.RawTextSnippet = cur.RawTextSnippet + " | " + it.Snippet
		}
		byKey[it.Key] = cur
	}

	out := make([]entity.ExtractedField, 0, len(byKey))
	for _, key := range order {
		out = append(out, byKey[key])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// SuspiciousTables lists READY tables whose structured view produced
// no usable extracted field: the OCR-fallback trigger condition.
func SuspiciousTables(cands []entity.BudgetTableCandidate, views []entity.StructuredTableView, fields []entity.ExtractedField) []string {
	placeholder := map[string]bool{}
	for _, v := range views {
		if v.Meta["placeholder"] == "true" {
			placeholder[v.Key] = true
		}
	}
	hasKeys := map[string]bool{}
	for _, key := range constants.AllFieldKeys() {
		for _, tk := range tablesForKey(key) {
			hasKeys[tk] = true
		}
	}
	covered := map[string]bool{}
	for _, f := range fields {
		if f.Confidence != constants.ConfidenceUnrecognized {
			for _, tk := range tablesForKey(constants.FieldKey(f.Key)) {
				covered[tk] = true
			}
		}
	}

	var out []string
	for _, c := range cands {
		if c.Status != constants.TableReady {
			continue
		}
		if placeholder[c.Key] || (hasKeys[c.Key] && !covered[c.Key]) {
			out = append(out, c.Key)
		}
	}
	return out
}

// tablesForKey maps a field key back to the tables that carry it.
func tablesForKey(key constants.FieldKey) []string {
	switch key {
	case constants.RevenueTotal, constants.ExpenditureTotal,
		constants.PrevRevenueTotal, constants.PrevExpenditureTotal:
		return []string{"income_expenditure_summary", "income_summary", "expenditure_summary"}
	case constants.BasicExpenditure, constants.ProjectExpenditure:
		return []string{"expenditure_summary", "general_budget_expenditure"}
	case constants.FiscalGrantRevenueTotal, constants.FiscalGrantExpenditureTotal:
		return []string{"fiscal_grant_summary"}
	case constants.ThreePublicTotal, constants.ThreePublicOutbound,
		constants.ThreePublicReception, constants.ThreePublicVehicleTotal,
		constants.ThreePublicVehiclePurchase, constants.ThreePublicVehicleOperation,
		constants.PrevThreePublicTotal:
		return []string{"three_public"}
	}
	return nil
}
