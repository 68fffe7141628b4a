package tablebuild

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/entity"
)

func TestBuildThreePublicRecomputesBlankFormulaCells(t *testing.T) {
	b := NewBuilder(nil)
	cand := entity.BudgetTableCandidate{
		Key:          "three_public",
		MatchedSheet: "三公",
		Status:       constants.TableReady,
		Rows: [][]string{
			{"“三公”经费支出表"},
			{"单位：万元"},
			{"合计", "因公出国（境）费", "公务接待费", "公务用车购置及运行费", "小计", "购置费", "运行费"},
			{"某某单位", "", "1.00", "0.50", "", "12.00", "3.50"},
		},
	}

	view := b.Build(cand)

	require.Len(t, view.BodyRows, 1)
	got := view.BodyRows[0].Values
	assert.Equal(t, 15.50, got[3], "vehicle subtotal = purchase + operation")
	assert.Equal(t, 17.00, got[0], "total = outbound + reception + vehicle subtotal")
	assert.Equal(t, []float64{17.00, 1.00, 0.50, 15.50, 12.00, 3.50}, got)
	assert.Equal(t, "三公", view.Meta["source_sheet"])
	assert.NotContains(t, view.Meta, "placeholder")
}

func TestBuildThreePublicKeepsExplicitTotals(t *testing.T) {
	b := NewBuilder(nil)
	cand := entity.BudgetTableCandidate{
		Key: "three_public",
		Rows: [][]string{
			{"某某单位", "20.00", "1.00", "0.50", "15.50", "12.00", "3.50"},
		},
	}

	view := b.Build(cand)

	require.Len(t, view.BodyRows, 1)
	// A non-zero total is disclosed data; recompute never overwrites it.
	assert.Equal(t, 20.00, view.BodyRows[0].Values[0])
}

func TestBuildSynthesizesPlaceholderWhenNothingSurvives(t *testing.T) {
	b := NewBuilder(nil)
	cand := entity.BudgetTableCandidate{
		Key: "three_public",
		Rows: [][]string{
			{"“三公”经费支出表"},
			{"单位：万元"},
			{"", "", ""},
		},
	}

	view := b.Build(cand)

	require.Len(t, view.BodyRows, 1)
	assert.Equal(t, "true", view.Meta["placeholder"])
	assert.Equal(t, make([]float64, 6), view.BodyRows[0].Values)
	assert.Len(t, view.HeaderRows, 2)
}

func TestBuildCodedTableAlignsCodeAndNumericColumns(t *testing.T) {
	b := NewBuilder(nil)
	cand := entity.BudgetTableCandidate{
		Key: "expenditure_summary",
		Rows: [][]string{
			{"支出总表"},
			{"类", "款", "项", "科目名称", "合计", "基本支出", "项目支出"},
			{"201", "01", "01", "行政运行", "100.00", "80.00", "20.00", "", ""},
			{"201", "02", "", "一般行政管理事务", "50.00", "50.00", "-", "", ""},
		},
	}

	view := b.Build(cand)

	require.Len(t, view.BodyRows, 2)
	assert.Equal(t, []string{"201", "01", "01"}, view.BodyRows[0].Codes)
	assert.Equal(t, []float64{100.00, 80.00, 20.00, 0, 0}, view.BodyRows[0].Values)
	// blank 项 cell is consumed as the third code column
	assert.Equal(t, []string{"201", "02", ""}, view.BodyRows[1].Codes)
	assert.Equal(t, []float64{50.00, 50.00, 0, 0, 0}, view.BodyRows[1].Values)
	assert.Equal(t, []int{3, 4, 5, 6, 7}, view.NumericColumns)
}

func TestBuildSplitsTwoSidedRows(t *testing.T) {
	b := NewBuilder(nil)
	cand := entity.BudgetTableCandidate{
		Key: "income_expenditure_summary",
		Rows: [][]string{
			{"收支总表"},
			{"收入", "金额", "支出", "金额"},
			{"收入总计", "100.00", "支出总计", "90.00"},
			{"税收收入", "60.00", "基本支出", "70.00"},
		},
	}

	view := b.Build(cand)

	require.Len(t, view.BodyRows, 4)
	labels := make([]string, len(view.BodyRows))
	values := make([]float64, len(view.BodyRows))
	for i, row := range view.BodyRows {
		labels[i] = row.Codes[0]
		values[i] = row.Values[0]
	}
	assert.Equal(t, []string{"收入总计", "支出总计", "税收收入", "基本支出"}, labels)
	assert.Equal(t, []float64{100.00, 90.00, 60.00, 70.00}, values)
}

func TestBuildFiltersBannerAndCaptionRows(t *testing.T) {
	b := NewBuilder(nil)
	cand := entity.BudgetTableCandidate{
		Key: "income_expenditure_summary",
		Rows: [][]string{
			{"收支总表"},
			{"编制单位：某某局"},
			{"金额单位：元"},
			{"项目", "金额", "合计"},
			{"收入总计", "1234.56", "", ""},
		},
	}

	view := b.Build(cand)

	require.Len(t, view.BodyRows, 1)
	assert.Equal(t, []string{"收入总计"}, view.BodyRows[0].Codes)
	assert.Equal(t, 1234.56, view.BodyRows[0].Values[0])
}

func TestParseAmountVariants(t *testing.T) {
	assert.Equal(t, 1234.56, parseAmount("1,234.56"))
	assert.Equal(t, 1234.56, parseAmount("￥1,234.56"))
	assert.Equal(t, -42.0, parseAmount("(42)"))
	assert.Equal(t, 0.0, parseAmount("—"))
	assert.Equal(t, 0.0, parseAmount(""))
	assert.Equal(t, 0.0, parseAmount("n/a"))
}

func TestClassificationCodesAreNotAmounts(t *testing.T) {
	assert.True(t, isClassificationCode("201"))
	assert.True(t, isClassificationCode("01"))
	assert.False(t, isClassificationCode("20101"))
	assert.False(t, isClassificationCode("12.5"))
	assert.False(t, isAmount("201"))
	assert.True(t, isAmount("201.00"))
}
