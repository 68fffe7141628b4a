package document

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/common"
)

// Loader reads source documents from locally-resolved paths. Path
// resolution, storage, and access control live outside the core.
type Loader struct {
	logger *slog.Logger
}

func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load parses the workbook at xlsxPath and, when pdfPath is non-empty
// and readable, the page texts of the source PDF. A PDF that cannot be
// read is degraded to a warning: OCR gating re-checks readability and
// reports its own reason code. PDF-only uploads are allowed; the
// localization step then works from page text alone.
func (l *Loader) Load(docID, xlsxPath, pdfPath string) (*Document, error) {
	start := time.Now()

	if xlsxPath == "" && pdfPath == "" {
		return nil, common.NewAppError("NO_SOURCE",
			"neither workbook nor pdf path given", common.ErrNoSourceText)
	}

	var sheets []Sheet
	if xlsxPath != "" {
		var err error
		sheets, err = l.loadWorkbook(xlsxPath)
		if err != nil {
			return nil, common.WrapError(err, "load workbook")
		}
	}

	doc := &Document{
		ID:       docID,
		XLSXPath: xlsxPath,
		PDFPath:  pdfPath,
		Sheets:   sheets,
	}

	if pdfPath != "" {
		pages, err := l.loadPDFText(pdfPath)
		if err != nil {
			l.logger.Warn("pdf text probe failed", "path", pdfPath, "error", err)
		} else {
			doc.Pages = pages
		}
	}

	l.logger.Info("document loaded",
		"doc_id", docID,
		"sheets", len(doc.Sheets),
		"pdf_pages", len(doc.Pages),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return doc, nil
}

func (l *Loader) loadWorkbook(path string) ([]Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx %q: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			l.logger.Warn("workbook close error", "path", path, "error", cerr)
		}
	}()

	var sheets []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		sheets = append(sheets, Sheet{Name: name, Rows: rows})
	}
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %q has no sheets", path)
	}
	return sheets, nil
}

func (l *Loader) loadPDFText(path string) ([]Page, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			l.logger.Warn("pdf close error", "path", path, "error", cerr)
		}
	}()

	r, err := pdf.NewReader(f, fi.Size())
	if err != nil {
		return nil, fmt.Errorf("open pdf %q: %w", path, err)
	}

	var pages []Page
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		txt, err := p.GetPlainText(nil)
		if err != nil {
			// A page that defeats text extraction is exactly the OCR
			// fallback's territory; record it empty and move on.
			l.logger.Debug("pdf page text failed", "page", i, "error", err)
			pages = append(pages, Page{Number: i})
			continue
		}
		pages = append(pages, Page{Number: i, Text: txt})
	}
	return pages, nil
}
