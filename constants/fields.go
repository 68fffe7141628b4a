package constants

import "strings"

// FieldKey is a canonical key for one numeric budget fact.
type FieldKey string

const (
	RevenueTotal       FieldKey = "revenue_total"
	ExpenditureTotal   FieldKey = "expenditure_total"
	BasicExpenditure   FieldKey = "basic_expenditure"
	ProjectExpenditure FieldKey = "project_expenditure"

	FiscalGrantRevenueTotal     FieldKey = "fiscal_grant_revenue_total"
	FiscalGrantExpenditureTotal FieldKey = "fiscal_grant_expenditure_total"

	ThreePublicTotal            FieldKey = "three_public_total"
	ThreePublicOutbound         FieldKey = "three_public_outbound"
	ThreePublicReception        FieldKey = "three_public_reception"
	ThreePublicVehicleTotal     FieldKey = "three_public_vehicle_total"
	ThreePublicVehiclePurchase  FieldKey = "three_public_vehicle_purchase"
	ThreePublicVehicleOperation FieldKey = "three_public_vehicle_operation"

	PrevRevenueTotal     FieldKey = "prev_revenue_total"
	PrevExpenditureTotal FieldKey = "prev_expenditure_total"
	PrevThreePublicTotal FieldKey = "prev_three_public_total"
)

// RequiredKeys must all be present for a batch to pass FIELD_COVERAGE.
var RequiredKeys = []FieldKey{
	RevenueTotal,
	ExpenditureTotal,
	BasicExpenditure,
	ProjectExpenditure,
	FiscalGrantRevenueTotal,
	FiscalGrantExpenditureTotal,
	ThreePublicTotal,
}

// fieldLabels maps each key to the label strings the disclosure
// templates print for it. First entry is the preferred display label.
var fieldLabels = map[FieldKey][]string{
	RevenueTotal:       {"收入总计", "本年收入合计", "收入合计"},
	ExpenditureTotal:   {"支出总计", "本年支出合计", "支出合计"},
	BasicExpenditure:   {"基本支出", "基本支出合计"},
	ProjectExpenditure: {"项目支出", "项目支出合计"},

	FiscalGrantRevenueTotal:     {"财政拨款收入总计", "财政拨款收入合计"},
	FiscalGrantExpenditureTotal: {"财政拨款支出总计", "财政拨款支出合计"},

	ThreePublicTotal:            {"三公经费合计", "“三公”经费合计", "三公经费支出合计"},
	ThreePublicOutbound:         {"因公出国（境）费", "因公出国(境)费", "因公出国境费"},
	ThreePublicReception:        {"公务接待费"},
	ThreePublicVehicleTotal:     {"公务用车购置及运行费", "公务用车购置及运行维护费"},
	ThreePublicVehiclePurchase:  {"公务用车购置费"},
	ThreePublicVehicleOperation: {"公务用车运行费", "公务用车运行维护费"},

	PrevRevenueTotal:     {"上年收入总计", "上年收入合计"},
	PrevExpenditureTotal: {"上年支出总计", "上年支出合计"},
	PrevThreePublicTotal: {"上年三公经费合计"},
}

// Label returns the preferred display label for a key.
func Label(key FieldKey) string {
	if ls, ok := fieldLabels[key]; ok && len(ls) > 0 {
		return ls[0]
	}
	return string(key)
}

// AllFieldKeys lists every canonical key in catalog order.
func AllFieldKeys() []FieldKey {
	return []FieldKey{
		RevenueTotal, ExpenditureTotal, BasicExpenditure, ProjectExpenditure,
		FiscalGrantRevenueTotal, FiscalGrantExpenditureTotal,
		ThreePublicTotal, ThreePublicOutbound, ThreePublicReception,
		ThreePublicVehicleTotal, ThreePublicVehiclePurchase, ThreePublicVehicleOperation,
		PrevRevenueTotal, PrevExpenditureTotal, PrevThreePublicTotal,
	}
}

// NormalizeLabel folds the punctuation variants the templates use so
// the same label matches regardless of full/half-width characters.
func NormalizeLabel(raw string) string {
	s := strings.TrimSpace(raw)
	replacer := strings.NewReplacer(
		"（", "(", "）", ")",
		"“", "", "”", "",
		" ", "", " ", "", "\t", "",
		"：", ":", "，", ",",
	)
	return replacer.Replace(s)
}

// ResolveLabel maps a raw label to its canonical key via the built-in
// vocabulary. Returns false when the label is not in the catalog;
// callers then consult learned alias mappings.
func ResolveLabel(raw string) (FieldKey, bool) {
	norm := NormalizeLabel(raw)
	if norm == "" {
		return "", false
	}
	for key, labels := range fieldLabels {
		for _, l := range labels {
			if NormalizeLabel(l) == norm {
				return key, true
			}
		}
	}
	return "", false
}
