package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/common"
)

func TestLoadWorkbook(t *testing.T) {
	l := NewLoader(nil)
	doc, err := l.Load("doc-1", "testdata/simple.xlsx", "")
	require.NoError(t, err)

	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, []string{"Sheet1"}, doc.SheetNames())

	sheet, ok := doc.Sheet("Sheet1")
	require.True(t, ok)
	require.NotEmpty(t, sheet.Rows)
	assert.Equal(t, "标题", sheet.Rows[0][0])
	assert.Empty(t, doc.Pages)
}

func TestLoadRequiresSomeSource(t *testing.T) {
	l := NewLoader(nil)
	_, err := l.Load("doc-1", "", "")
	assert.ErrorIs(t, err, common.ErrNoSourceText)
}

func TestLoadMissingWorkbookFails(t *testing.T) {
	l := NewLoader(nil)
	_, err := l.Load("doc-1", "testdata/nope.xlsx", "")
	assert.Error(t, err)
}

func TestFullTextJoinsRows(t *testing.T) {
	doc := &Document{Sheets: []Sheet{
		{Name: "a", Rows: [][]string{{"收入总计", "100.00"}}},
	}}
	assert.Equal(t, "收入总计 100.00\n", doc.FullText())
}

func TestPagesMatching(t *testing.T) {
	doc := &Document{Pages: []Page{
		{Number: 1, Text: "某某单位 2025 年部门预算"},
		{Number: 2, Text: "三公经费支出表"},
		{Number: 3, Text: "附注"},
	}}
	assert.Equal(t, []int{2}, doc.PagesMatching("三公经费"))
	assert.Empty(t, doc.PagesMatching(""))
}
