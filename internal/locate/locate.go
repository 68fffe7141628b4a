// Package locate matches a document's sheets against the fixed catalog
// of disclosure tables, scoring candidates and keeping near-misses for
// diagnosis.
package locate

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/document"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/entity"
)

// Config tunes candidate scoring.
type Config struct {
	MatchThreshold float64 // minimum score for READY, default 0.5
	TopNearMisses  int     // near-misses kept per MISSING table, default 3
}

type Localizer struct {
	cfg    Config
	logger *slog.Logger
}

func NewLocalizer(cfg Config, logger *slog.Logger) *Localizer {
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = 0.5
	}
	if cfg.TopNearMisses <= 0 {
		cfg.TopNearMisses = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Localizer{cfg: cfg, logger: logger}
}

// Locate builds one candidate per catalog entry. Full-coverage title
// matches bind first so a partial hint match cannot steal a sheet
// another table matches exactly. No side effects beyond assembling
// candidates.
func (l *Localizer) Locate(doc *document.Document) []entity.BudgetTableCandidate {
	claimed := make(map[string]bool) // sheet name -> already matched
	out := make([]entity.BudgetTableCandidate, len(constants.TableCatalog))

	for i, spec := range constants.TableCatalog {
		out[i] = l.locateOne(doc, spec, claimed, 1.0)
		if out[i].Status == constants.TableReady {
			claimed[out[i].MatchedSheet] = true
		}
	}
	for i, spec := range constants.TableCatalog {
		if out[i].Status == constants.TableReady {
			continue
		}
		out[i] = l.locateOne(doc, spec, claimed, l.cfg.MatchThreshold)
		if out[i].Status == constants.TableReady {
			claimed[out[i].MatchedSheet] = true
		}
	}
	return out
}

func (l *Localizer) locateOne(doc *document.Document, spec constants.TableSpec, claimed map[string]bool, minScore float64) entity.BudgetTableCandidate {
	scored := make([]entity.SheetCandidate, 0, len(doc.Sheets))
	for _, sheet := range doc.Sheets {
		if claimed[sheet.Name] {
			continue
		}
		score, matched := scoreTitle(sheet.Name, spec)
		if score == 0 {
			// Some templates bury the title in the first grid row
			// instead of the tab name.
			if t := firstTitleCell(sheet); t != "" {
				score, matched = scoreTitle(t, spec)
			}
		}
		if score > 0 {
			scored = append(scored, entity.SheetCandidate{
				SheetName:       sheet.Name,
				Score:           score,
				MatchedKeywords: matched,
			})
		}
	}
	// Stable sort keeps the earlier sheet on ties.
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	cand := entity.BudgetTableCandidate{
		Key:      spec.Key,
		Title:    spec.Title,
		Status:   constants.TableMissing,
		ColCount: spec.ColCount(),
	}

	if len(scored) > 0 && scored[0].Score >= minScore {
		best := scored[0]
		sheet, _ := doc.Sheet(best.SheetName)
		cand.Status = constants.TableReady
		cand.MatchedSheet = best.SheetName
		cand.Rows = sheet.Rows
		cand.RowCount = len(sheet.Rows)
		cand.PageNumbers = doc.PagesMatching(append([]string{spec.Title}, spec.TitleHints...)...)
		l.logger.Debug("table matched",
			"table", spec.Key, "sheet", best.SheetName, "score", best.Score)
		return cand
	}

	n := l.cfg.TopNearMisses
	if len(scored) < n {
		n = len(scored)
	}
	cand.NearMisses = scored[:n]
	if minScore <= l.cfg.MatchThreshold {
		l.logger.Warn("table missing", "table", spec.Key, "near_misses", len(cand.NearMisses))
	}
	return cand
}

// scoreTitle is matched-hint-count / hint-count over the normalized title.
func scoreTitle(title string, spec constants.TableSpec) (float64, []string) {
	norm := constants.NormalizeLabel(title)
	if norm == "" || len(spec.TitleHints) == 0 {
		return 0, nil
	}
	var matched []string
	for _, hint := range spec.TitleHints {
		if strings.Contains(norm, constants.NormalizeLabel(hint)) {
			matched = append(matched, hint)
		}
	}
	return float64(len(matched)) / float64(len(spec.TitleHints)), matched
}

func firstTitleCell(sheet document.Sheet) string {
	for _, row := range sheet.Rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				return cell
			}
		}
		break
	}
	return ""
}

// Diagnosis summarizes MISSING tables with suggested sheet names so an
// operator can rename and re-upload.
type Diagnosis struct {
	TableKey    string                  `json:"table_key"`
	Title       string                  `json:"title"`
	Suggestions []entity.SheetCandidate `json:"suggestions,omitempty"`
}

// Diagnose reports every MISSING table from a located set.
func Diagnose(candidates []entity.BudgetTableCandidate) []Diagnosis {
	var out []Diagnosis
	for _, c := range candidates {
		if c.Status != constants.TableMissing {
			continue
		}
		out = append(out, Diagnosis{
			TableKey:    c.Key,
			Title:       c.Title,
			Suggestions: c.NearMisses,
		})
	}
	return out
}
