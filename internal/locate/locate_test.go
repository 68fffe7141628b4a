package locate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/document"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/entity"
)

func testDoc() *document.Document {
	return &document.Document{
		ID: "doc-1",
		Sheets: []document.Sheet{
			{Name: "收支总表", Rows: [][]string{{"收支总表"}, {"收入总计", "100.00"}}},
			{Name: "财政拨款收支总表", Rows: [][]string{{"财政拨款收支总表"}}},
			{Name: "“三公”经费支出表", Rows: [][]string{{"“三公”经费支出表"}}},
			{Name: "说明", Rows: [][]string{{"情况说明"}}},
		},
		Pages: []document.Page{
			{Number: 1, Text: "第一部分 概况"},
			{Number: 2, Text: "收支总表 单位：元"},
			{Number: 5, Text: "“三公”经费支出表"},
		},
	}
}

func TestLocateMatchesByFullHintCoverage(t *testing.T) {
	l := NewLocalizer(Config{}, nil)
	cands := l.Locate(testDoc())

	require.Len(t, cands, len(constants.TableCatalog))
	byKey := map[string]entity.BudgetTableCandidate{}
	for _, c := range cands {
		byKey[c.Key] = c
	}

	summary := byKey["income_expenditure_summary"]
	assert.Equal(t, constants.TableReady, summary.Status)
	assert.Equal(t, "收支总表", summary.MatchedSheet)
	assert.Equal(t, 2, summary.RowCount)
	assert.Equal(t, []int{2}, summary.PageNumbers)

	grant := byKey["fiscal_grant_summary"]
	assert.Equal(t, constants.TableReady, grant.Status)
	assert.Equal(t, "财政拨款收支总表", grant.MatchedSheet)

	three := byKey["three_public"]
	assert.Equal(t, constants.TableReady, three.Status)
	assert.Equal(t, []int{5}, three.PageNumbers)
}

func TestLocateClaimedSheetNotReused(t *testing.T) {
	// income_expenditure_summary claims 收支总表 first, so the grant
	// table must land on its own sheet even though its hints also
	// cover the claimed one.
	l := NewLocalizer(Config{}, nil)
	cands := l.Locate(testDoc())

	seen := map[string]string{}
	for _, c := range cands {
		if c.Status != constants.TableReady {
			continue
		}
		if prev, dup := seen[c.MatchedSheet]; dup {
			t.Fatalf("sheet %q matched by both %s and %s", c.MatchedSheet, prev, c.Key)
		}
		seen[c.MatchedSheet] = c.Key
	}
}

func TestLocateMissingTableKeepsNearMisses(t *testing.T) {
	doc := &document.Document{
		ID: "doc-2",
		Sheets: []document.Sheet{
			{Name: "基金支出情况", Rows: [][]string{{"政府性基金支出情况"}}},
		},
	}
	l := NewLocalizer(Config{MatchThreshold: 0.9}, nil)
	cands := l.Locate(doc)

	var fund entity.BudgetTableCandidate
	for _, c := range cands {
		if c.Key == "gov_fund_expenditure" {
			fund = c
		}
	}
	assert.Equal(t, constants.TableMissing, fund.Status)
	require.NotEmpty(t, fund.NearMisses)
	assert.Equal(t, "基金支出情况", fund.NearMisses[0].SheetName)
	assert.Contains(t, fund.NearMisses[0].MatchedKeywords, "支出")
}

func TestLocateFallsBackToFirstTitleCell(t *testing.T) {
	doc := &document.Document{
		ID: "doc-3",
		Sheets: []document.Sheet{
			{Name: "Sheet1", Rows: [][]string{{"收支总表"}, {"收入总计", "100.00"}}},
		},
	}
	l := NewLocalizer(Config{}, nil)
	cands := l.Locate(doc)

	for _, c := range cands {
		if c.Key == "income_expenditure_summary" {
			assert.Equal(t, constants.TableReady, c.Status)
			assert.Equal(t, "Sheet1", c.MatchedSheet)
			return
		}
	}
	t.Fatal("income_expenditure_summary candidate not found")
}

func TestDiagnoseReportsOnlyMissing(t *testing.T) {
	l := NewLocalizer(Config{}, nil)
	diags := Diagnose(l.Locate(testDoc()))

	keys := map[string]bool{}
	for _, d := range diags {
		keys[d.TableKey] = true
	}
	assert.False(t, keys["income_expenditure_summary"])
	assert.True(t, keys["gov_fund_expenditure"])
	assert.True(t, keys["income_summary"])
}
