package constants

// TableFamily selects the alignment rule a structured-table builder
// applies to a raw grid.
type TableFamily string

const (
	FamilyCoded       TableFamily = "coded"        // hierarchical classification-code tables
	FamilyTwoSided    TableFamily = "two_sided"    // revenue/expenditure summary, left+right halves
	FamilyGrant       TableFamily = "grant"        // fiscal-grant summary
	FamilyThreePublic TableFamily = "three_public" // three-public-expenses table
)

// TableSpec describes one known disclosure table: how to find it and
// how to align its rows. One generic aligner consumes these; there are
// no per-table code paths.
type TableSpec struct {
	Key         string
	Title       string
	TitleHints  []string // keywords scored against sheet titles
	Family      TableFamily
	CodeCols    int // leading label/code columns
	NumericCols int // trailing numeric columns per row
	// HeaderNoise lists captions and banners discarded before alignment.
	HeaderNoise []string
}

// ColCount is the canonical row width after alignment.
func (s TableSpec) ColCount() int {
	return s.CodeCols + s.NumericCols
}

// TableCatalog is the fixed set of disclosure tables a document is
// expected to carry, in template order.
var TableCatalog = []TableSpec{
	{
		Key:        "income_expenditure_summary",
		Title:      "收支总表",
		TitleHints: []string{"收支", "总表"},
		Family:     FamilyTwoSided,
		CodeCols:   1, NumericCols: 3,
		HeaderNoise: []string{"收入", "支出", "项目", "金额", "合计"},
	},
	{
		Key:        "income_summary",
		Title:      "收入总表",
		TitleHints: []string{"收入", "总表"},
		Family:     FamilyCoded,
		CodeCols:   3, NumericCols: 6,
		HeaderNoise: []string{"功能分类科目编码", "科目名称", "合计", "类", "款", "项"},
	},
	{
		Key:        "expenditure_summary",
		Title:      "支出总表",
		TitleHints: []string{"支出", "总表"},
		Family:     FamilyCoded,
		CodeCols:   3, NumericCols: 5,
		HeaderNoise: []string{"功能分类科目编码", "科目名称", "合计", "基本支出", "项目支出", "类", "款", "项"},
	},
	{
		Key:        "fiscal_grant_summary",
		Title:      "财政拨款收支总表",
		TitleHints: []string{"财政拨款", "收支"},
		Family:     FamilyGrant,
		CodeCols:   1, NumericCols: 4,
		HeaderNoise: []string{"收入", "支出", "项目", "金额", "合计"},
	},
	{
		Key:        "general_budget_expenditure",
		Title:      "一般公共预算支出表",
		TitleHints: []string{"一般公共预算", "支出"},
		Family:     FamilyCoded,
		CodeCols:   3, NumericCols: 3,
		HeaderNoise: []string{"功能分类科目编码", "科目名称", "合计", "基本支出", "项目支出", "类", "款", "项"},
	},
	{
		Key:        "general_budget_basic",
		Title:      "一般公共预算基本支出表",
		TitleHints: []string{"一般公共预算", "基本支出"},
		Family:     FamilyCoded,
		CodeCols:   2, NumericCols: 3,
		HeaderNoise: []string{"经济分类科目编码", "科目名称", "合计", "人员经费", "公用经费", "类", "款"},
	},
	{
		Key:        "gov_fund_expenditure",
		Title:      "政府性基金预算支出表",
		TitleHints: []string{"政府性基金", "支出"},
		Family:     FamilyCoded,
		CodeCols:   3, NumericCols: 3,
		HeaderNoise: []string{"功能分类科目编码", "科目名称", "合计", "基本支出", "项目支出", "类", "款", "项"},
	},
	{
		Key:        "state_capital_expenditure",
		Title:      "国有资本经营预算支出表",
		TitleHints: []string{"国有资本", "支出"},
		Family:     FamilyCoded,
		CodeCols:   3, NumericCols: 3,
		HeaderNoise: []string{"功能分类科目编码", "科目名称", "合计", "基本支出", "项目支出", "类", "款", "项"},
	},
	{
		Key:        "three_public",
		Title:      "“三公”经费支出表",
		TitleHints: []string{"三公", "经费"},
		Family:     FamilyThreePublic,
		CodeCols:   1, NumericCols: 6,
		HeaderNoise: []string{"合计", "因公出国（境）费", "公务接待费", "公务用车购置及运行费", "小计", "购置费", "运行费"},
	},
}

// TableByKey looks up a spec in the catalog.
func TableByKey(key string) (TableSpec, bool) {
	for _, s := range TableCatalog {
		if s.Key == key {
			return s, true
		}
	}
	return TableSpec{}, false
}
