package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/repository"
)

// Service produces XLSX bytes for batch review downloads: the fields
// sheet for checking figures, the issues sheet for outstanding
// findings.
type Service struct {
	batches repository.BatchRepository
	logger  *slog.Logger
}

func NewService(batches repository.BatchRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{batches: batches, logger: logger}
}

// ExportBatchXLSX returns a review workbook for one batch.
func (s *Service) ExportBatchXLSX(ctx context.Context, batchID uuid.UUID) ([]byte, error) {
	start := time.Now()

	detail, err := s.batches.Get(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("load batch: %w", err)
	}

	f := excelize.NewFile()
	const fieldsSheet = "Fields"
	const issuesSheet = "Issues"

	if err := f.SetSheetName("Sheet1", fieldsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(issuesSheet); err != nil {
		return nil, err
	}

	write := func(sheet string, col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	for i, h := range []string{"Key", "Label", "Extracted", "Corrected", "Confidence", "Confirmed", "Snippet"} {
		write(fieldsSheet, i+1, 1, h)
	}
	row := 2
	for _, fld := range detail.Fields {
		write(fieldsSheet, 1, row, fld.Key)
		write(fieldsSheet, 2, row, constants.Label(constants.FieldKey(fld.Key)))
		write(fieldsSheet, 3, row, fld.NormalizedValue)
		if fld.CorrectedValue != nil {
			write(fieldsSheet, 4, row, *fld.CorrectedValue)
		}
		write(fieldsSheet, 5, row, string(fld.Confidence))
		write(fieldsSheet, 6, row, fld.Confirmed)
		write(fieldsSheet, 7, row, truncate(fld.RawTextSnippet, 140))
		row++
	}

	for i, h := range []string{"Level", "Rule", "Message", "Evidence"} {
		write(issuesSheet, i+1, 1, h)
	}
	row = 2
	for _, is := range detail.Issues {
		write(issuesSheet, 1, row, string(is.Level))
		write(issuesSheet, 2, row, is.RuleID)
		write(issuesSheet, 3, row, is.Message)
		write(issuesSheet, 4, row, fmt.Sprintf("%v", is.Evidence))
		row++
	}

	_ = f.SetColWidth(fieldsSheet, "A", "B", 28)
	_ = f.SetColWidth(fieldsSheet, "C", "D", 14)
	_ = f.SetColWidth(fieldsSheet, "G", "G", 60)
	_ = f.SetColWidth(issuesSheet, "C", "D", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"batch_id", batchID.String(),
		"fields", len(detail.Fields),
		"issues", len(detail.Issues),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
