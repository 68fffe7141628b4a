package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/common"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/document"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/entity"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/extract"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/locate"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/tablebuild"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/validate"
)

// runextract runs localization, table building, rule extraction, and
// validation over one document and prints the result as JSON. Nothing
// is persisted; it is a dry run for checking a document before upload.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	xlsxPath := flag.String("xlsx", "", "path to the budget workbook")
	pdfPath := flag.String("pdf", "", "path to the budget PDF")
	flag.Parse()

	if *xlsxPath == "" && *pdfPath == "" {
		logger.Error("usage", "cmd", "runextract -xlsx <file> [-pdf <file>]")
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	loader := document.NewLoader(logger)
	doc, err := loader.Load(uuid.NewString(), *xlsxPath, *pdfPath)
	if err != nil {
		logger.Error("load document", "error", err)
		os.Exit(1)
	}

	localizer := locate.NewLocalizer(locate.Config{
		MatchThreshold: cfg.Review.MatchThreshold,
	}, logger)
	cands := localizer.Locate(doc)

	builder := tablebuild.NewBuilder(logger)
	var views []entity.StructuredTableView
	for _, cand := range cands {
		if cand.Status == constants.TableReady {
			views = append(views, builder.Build(cand))
		}
	}

	ruleEx := extract.NewRuleExtractor(nil, logger)
	res, err := ruleEx.Extract(ctx, extract.Input{Doc: doc, Views: views})
	if err != nil {
		logger.Error("extract", "error", err)
		os.Exit(1)
	}

	batchID := uuid.New()
	fields := extract.AssembleFields(batchID, res.Items)
	engine := validate.NewEngine(validate.Config{
		Epsilon:      cfg.Review.BalanceEpsilon,
		YoYWarnRatio: cfg.Review.YoYWarnRatio,
	}, logger)
	issues := engine.Validate(validate.Input{
		BatchID:         batchID,
		Fields:          fields,
		UnmatchedLabels: res.UnmatchedLabels,
	})

	out := struct {
		Tables []entity.BudgetTableCandidate `json:"tables"`
		Fields []entity.ExtractedField       `json:"fields"`
		Issues []entity.ValidationIssue      `json:"issues"`
	}{cands, fields, issues}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("encode output", "error", err)
		os.Exit(1)
	}
}
