package ocr

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/entity"
)

// stubRunner simulates pdftoppm and tesseract: it writes the expected
// page image on rasterize calls and returns canned text on recognize
// calls. Pages listed in failPages error on rasterize.
type stubRunner struct {
	failPages map[int]bool
	text      string
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	if len(args) > 0 && args[0] == "-f" {
		// pdftoppm -f N -l N -r DPI -png <pdf> <prefix>
		page, _ := strconv.Atoi(args[1])
		if s.failPages[page] {
			return nil, []byte("Syntax Error: couldn't read xref table"), errors.New("exit status 1")
		}
		prefix := args[len(args)-1]
		if err := os.WriteFile(prefix+"-1.png", []byte("png"), 0o644); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil
	}
	// tesseract <img> stdout -l <lang> --psm 6
	return []byte(s.text), nil, nil
}

func fixturePDF() string { return "testdata/onepage.pdf" }

func TestRunMockModeBypassesOCR(t *testing.T) {
	f := NewFallback(Config{Enabled: false}, nil)
	res := f.Run(context.Background(), Request{
		Suspicious: []string{"three_public", "gov_fund_expenditure"},
		MockText:   map[string]string{"three_public": "三公经费合计: 17.00"},
	})

	assert.True(t, res.Summary.Executed)
	assert.Equal(t, "三公经费合计: 17.00", res.TextByTable["three_public"])
	assert.Equal(t, []string{"three_public"}, res.Summary.ProcessedTables)
	assert.Equal(t, 1, res.Summary.MatchedCount)
	require.Len(t, res.Summary.SkippedTables, 1)
	assert.Equal(t, entity.OcrSkip{
		TableKey: "gov_fund_expenditure",
		Reason:   constants.SkipMockTextNotProvided,
	}, res.Summary.SkippedTables[0])
}

func TestRunNothingSuspicious(t *testing.T) {
	f := NewFallback(Config{Enabled: true}, nil)
	res := f.Run(context.Background(), Request{})

	assert.False(t, res.Summary.Executed)
	assert.Empty(t, res.TextByTable)
}

func TestRunDisabledSkipsEverything(t *testing.T) {
	f := NewFallback(Config{Enabled: false}, nil)
	res := f.Run(context.Background(), Request{
		PDFPath:    fixturePDF(),
		Suspicious: []string{"three_public"},
	})

	assert.False(t, res.Summary.Executed)
	assert.Equal(t, constants.SkipOCRDisabled, res.Summary.Reason)
	require.Len(t, res.Summary.SkippedTables, 1)
	assert.Equal(t, constants.SkipOCRDisabled, res.Summary.SkippedTables[0].Reason)
}

func TestRunMissingBinarySkipsEverything(t *testing.T) {
	f := NewFallback(Config{
		Enabled:  true,
		Pdftoppm: "pdftoppm-definitely-not-installed",
	}, nil)
	res := f.Run(context.Background(), Request{
		PDFPath:    fixturePDF(),
		Suspicious: []string{"three_public"},
	})

	assert.False(t, res.Summary.Executed)
	assert.Equal(t, constants.SkipOCRUnavailable, res.Summary.Reason)
}

func TestRunUnreadablePDFSkipsEverything(t *testing.T) {
	f := NewFallback(Config{
		Enabled:   true,
		Pdftoppm:  "true",
		Tesseract: "true",
	}, nil)
	res := f.Run(context.Background(), Request{
		PDFPath:    "testdata/no-such-file.pdf",
		Suspicious: []string{"three_public"},
	})

	assert.False(t, res.Summary.Executed)
	assert.Equal(t, constants.SkipPDFUnreadable, res.Summary.Reason)
}

func TestRunRecognizesSuspiciousTables(t *testing.T) {
	f := NewFallback(Config{
		Enabled:   true,
		Pdftoppm:  "true",
		Tesseract: "true",
	}, nil)
	f.runner = &stubRunner{text: "三公经费合计 17.00"}

	res := f.Run(context.Background(), Request{
		PDFPath:    fixturePDF(),
		Suspicious: []string{"three_public", "gov_fund_expenditure"},
		PagesByTable: map[string][]int{
			"three_public": {1},
		},
	})

	assert.True(t, res.Summary.Executed)
	assert.Equal(t, "三公经费合计 17.00", res.TextByTable["three_public"])
	assert.Equal(t, []string{"three_public"}, res.Summary.ProcessedTables)
	require.Len(t, res.Summary.SkippedTables, 1)
	assert.Equal(t, constants.SkipNoPages, res.Summary.SkippedTables[0].Reason)
	assert.Equal(t, "gov_fund_expenditure", res.Summary.SkippedTables[0].TableKey)
}

func TestRecognizeTablePartialPageFailure(t *testing.T) {
	f := NewFallback(Config{Enabled: true}, nil)
	f.runner = &stubRunner{text: "page text", failPages: map[int]bool{2: true}}

	text, skips := f.recognizeTable(context.Background(), fixturePDF(), "three_public", []int{1, 2}, t.TempDir())

	assert.Contains(t, text, "page text")
	require.Len(t, skips, 1)
	assert.Equal(t, entity.OcrSkip{
		TableKey: "three_public",
		Page:     2,
		Reason:   constants.SkipPageFailed,
	}, skips[0])
}
