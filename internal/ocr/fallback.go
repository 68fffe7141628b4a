// Package ocr is the selective fallback for tables the primary
// extractor could not read. It rasterizes only the suspicious tables'
// PDF pages and recognizes them with an external engine. Every failure
// mode is captured in the result summary instead of raised: the batch
// continues with whatever the primary extractor produced.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/entity"
)

type Config struct {
	Enabled     bool
	Pdftoppm    string        // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract   string        // binary name or absolute path; if empty -> "tesseract"
	Lang        string        // default "chi_sim"
	DPI         int           // rasterization DPI, default 300
	PageTimeout time.Duration // per-page bound, default 60s
}

// Request names the suspicious tables and where to find them in the PDF.
// When MockText is non-nil, OCR is bypassed and the map is consulted
// directly; unmatched keys are reported as skipped.
type Request struct {
	PDFPath      string
	Suspicious   []string
	PagesByTable map[string][]int
	MockText     map[string]string
}

// Result carries recognized text per table plus the audit summary.
type Result struct {
	Summary     entity.OcrSummary
	TextByTable map[string]string
}

type Fallback struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewFallback(cfg Config, logger *slog.Logger) *Fallback {
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "chi_sim"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{cfg: cfg, runner: execRunner{}, logger: logger}
}

// Run never returns an error: unavailability degrades to an
// unexecuted summary and per-page failures to skip entries.
func (f *Fallback) Run(ctx context.Context, req Request) Result {
	res := Result{
		Summary: entity.OcrSummary{
			Enabled:             f.cfg.Enabled,
			SuspiciousTableKeys: req.Suspicious,
		},
		TextByTable: map[string]string{},
	}

	if len(req.Suspicious) == 0 {
		res.Summary.Reason = "no suspicious tables"
		return res
	}

	if req.MockText != nil {
		return f.runMock(req, res)
	}

	if !f.cfg.Enabled {
		res.Summary.Reason = constants.SkipOCRDisabled
		f.skipAll(&res, req.Suspicious, constants.SkipOCRDisabled)
		return res
	}
	if reason := f.checkAvailable(); reason != "" {
		res.Summary.Reason = reason
		f.skipAll(&res, req.Suspicious, reason)
		return res
	}
	if _, err := api.PageCountFile(req.PDFPath); err != nil {
		f.logger.Warn("source pdf unreadable", "path", req.PDFPath, "error", err)
		res.Summary.Reason = constants.SkipPDFUnreadable
		f.skipAll(&res, req.Suspicious, constants.SkipPDFUnreadable)
		return res
	}

	tmpDir, err := os.MkdirTemp("", "ocr-fb-*")
	if err != nil {
		res.Summary.Reason = constants.SkipOCRUnavailable
		f.skipAll(&res, req.Suspicious, constants.SkipOCRUnavailable)
		return res
	}
	defer func(dir string) {
		if rerr := os.RemoveAll(dir); rerr != nil {
			f.logger.Warn("failed to remove temp dir", "dir", dir, "error", rerr)
		}
	}(tmpDir)

	res.Summary.Executed = true
	for _, key := range req.Suspicious {
		pages := req.PagesByTable[key]
		if len(pages) == 0 {
			res.Summary.SkippedTables = append(res.Summary.SkippedTables, entity.OcrSkip{
				TableKey: key, Reason: constants.SkipNoPages,
			})
			continue
		}
		text, skips := f.recognizeTable(ctx, req.PDFPath, key, pages, tmpDir)
		res.Summary.SkippedTables = append(res.Summary.SkippedTables, skips...)
		if strings.TrimSpace(text) != "" {
			res.TextByTable[key] = text
			res.Summary.ProcessedTables = append(res.Summary.ProcessedTables, key)
			res.Summary.MatchedCount++
		}
	}
	return res
}

// recognizeTable OCRs each page of one table. Pages run concurrently;
// a failed page is recorded and never aborts its siblings.
func (f *Fallback) recognizeTable(ctx context.Context, pdfPath, key string, pages []int, tmpDir string) (string, []entity.OcrSkip) {
	type pageOut struct {
		page int
		text string
		err  error
	}
	outs := make([]pageOut, len(pages))

	var wg sync.WaitGroup
	for i, page := range pages {
		wg.Add(1)
		go func(i, page int) {
			defer wg.Done()
			text, err := f.recognizePage(ctx, pdfPath, key, page, tmpDir)
			outs[i] = pageOut{page: page, text: text, err: err}
		}(i, page)
	}
	wg.Wait()

	var b strings.Builder
	var skips []entity.OcrSkip
	for _, o := range outs {
		if o.err != nil {
			f.logger.Warn("ocr page failed", "table", key, "page", o.page, "error", o.err)
			skips = append(skips, entity.OcrSkip{
				TableKey: key, Page: o.page, Reason: constants.SkipPageFailed,
			})
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(o.text)
	}
	return b.String(), skips
}

// recognizePage rasterizes one page and runs the recognizer on it. The
// page image is removed on every exit path.
func (f *Fallback) recognizePage(ctx context.Context, pdfPath, key string, page int, tmpDir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.PageTimeout)
	defer cancel()

	prefix := filepath.Join(tmpDir, fmt.Sprintf("%s-p%d", key, page))
	// pdftoppm -f N -l N -r DPI -png <in.pdf> <prefix>
	_, errb, err := f.runner.Run(ctx, f.cfg.Pdftoppm,
		"-f", fmt.Sprintf("%d", page), "-l", fmt.Sprintf("%d", page),
		"-r", fmt.Sprintf("%d", f.cfg.DPI), "-png", pdfPath, prefix)
	if err != nil {
		return "", fmt.Errorf("rasterize page %d: %w (%s)", page, err, truncate(string(errb), 512))
	}

	matches, _ := filepath.Glob(prefix + "*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return "", fmt.Errorf("rasterizer produced no image for page %d", page)
	}
	img := matches[0]
	defer func(path string) {
		if rerr := os.Remove(path); rerr != nil && !os.IsNotExist(rerr) {
			f.logger.Warn("failed to remove page image", "path", path, "error", rerr)
		}
	}(img)

	// tesseract <img> stdout -l <lang> --psm 6
	out, errb, err := f.runner.Run(ctx, f.cfg.Tesseract, img, "stdout", "-l", f.cfg.Lang, "--psm", "6")
	if err != nil {
		return "", fmt.Errorf("recognize page %d: %w (%s)", page, err, truncate(string(errb), 512))
	}
	return string(out), nil
}

func (f *Fallback) runMock(req Request, res Result) Result {
	res.Summary.Executed = true
	res.Summary.Reason = "mock text map supplied"
	for _, key := range req.Suspicious {
		text, ok := req.MockText[key]
		if !ok {
			res.Summary.SkippedTables = append(res.Summary.SkippedTables, entity.OcrSkip{
				TableKey: key, Reason: constants.SkipMockTextNotProvided,
			})
			continue
		}
		res.TextByTable[key] = text
		res.Summary.ProcessedTables = append(res.Summary.ProcessedTables, key)
		res.Summary.MatchedCount++
	}
	return res
}

func (f *Fallback) checkAvailable() string {
	for _, bin := range []string{f.cfg.Pdftoppm, f.cfg.Tesseract} {
		if _, err := exec.LookPath(bin); err != nil {
			f.logger.Warn("ocr binary missing", "bin", bin)
			return constants.SkipOCRUnavailable
		}
	}
	return ""
}

func (f *Fallback) skipAll(res *Result, keys []string, reason string) {
	for _, key := range keys {
		res.Summary.SkippedTables = append(res.Summary.SkippedTables, entity.OcrSkip{
			TableKey: key, Reason: reason,
		})
	}
}
