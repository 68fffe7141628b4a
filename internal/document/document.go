// Package document loads an uploaded workbook (and its source PDF,
// when present) into the in-memory shape the pipeline works on.
package document

import "strings"

// Sheet is one worksheet: its name and the raw cell grid.
type Sheet struct {
	Name string
	Rows [][]string
}

// Page is one PDF page's extracted text, 1-based.
type Page struct {
	Number int
	Text   string
}

// Document is the fully parsed upload. Sheets always come from the
// workbook; Pages are present only when a source PDF accompanied it.
type Document struct {
	ID       string
	XLSXPath string
	PDFPath  string
	Sheets   []Sheet
	Pages    []Page
}

// SheetNames lists worksheet names in workbook order.
func (d *Document) SheetNames() []string {
	names := make([]string, len(d.Sheets))
	for i, s := range d.Sheets {
		names[i] = s.Name
	}
	return names
}

// Sheet returns the named worksheet, if present.
func (d *Document) Sheet(name string) (Sheet, bool) {
	for _, s := range d.Sheets {
		if s.Name == name {
			return s, true
		}
	}
	return Sheet{}, false
}

// PagesMatching returns the 1-based numbers of PDF pages whose text
// contains any of the given markers. Used to locate a table's pages
// before rasterizing them for OCR.
func (d *Document) PagesMatching(markers ...string) []int {
	var nums []int
	for _, p := range d.Pages {
		for _, m := range markers {
			if m != "" && strings.Contains(p.Text, m) {
				nums = append(nums, p.Number)
				break
			}
		}
	}
	return nums
}

// FullText concatenates every sheet's cells row by row. The rule-based
// extractor scans this when it has no structured table to work from.
func (d *Document) FullText() string {
	var b strings.Builder
	for _, s := range d.Sheets {
		for _, row := range s.Rows {
			b.WriteString(strings.Join(row, " "))
			b.WriteByte('\n')
		}
	}
	return b.String()
}
