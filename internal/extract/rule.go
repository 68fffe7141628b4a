package extract

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/entity"
)

// RuleExtractor is the deterministic strategy: structured-table reads
// first, then "label … amount" scans over the document text. Fast and
// free, but brittle to unusual phrasing; it under-recognizes heavily
// reformatted tables, which is what the OCR fallback compensates for.
type RuleExtractor struct {
	resolver KeyResolver
	logger   *slog.Logger
}

func NewRuleExtractor(resolver KeyResolver, logger *slog.Logger) *RuleExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleExtractor{resolver: resolver, logger: logger}
}

// amountRe matches a money token: optional sign, digits with optional
// thousands separators and decimals.
var amountRe = regexp.MustCompile(`-?[0-9][0-9,，]*(?:\.[0-9]+)?`)

// labeledLineRe captures "label <separator> amount" shapes on one line.
var labeledLineRe = regexp.MustCompile(`^\s*([^0-9:：]{2,40})[:：\s]\s*(-?[0-9][0-9,，]*(?:\.[0-9]+)?)\s*$`)

func (e *RuleExtractor) Extract(ctx context.Context, in Input) (Result, error) {
	var res Result
	seenLabels := map[string]bool{}

	for _, view := range in.Views {
		e.extractFromView(ctx, view, &res, seenLabels)
	}

	text := in.Doc.FullText()
	for _, extra := range in.ExtraText {
		text += "\n" + extra
	}
	e.extractFromText(ctx, text, &res, seenLabels)

	e.logger.Debug("rule extraction done",
		"items", len(res.Items), "unmatched", len(res.UnmatchedLabels))
	return res, nil
}

// extractFromView reads label rows out of a structured table. Direct
// matches from structure grade HIGH.
func (e *RuleExtractor) extractFromView(ctx context.Context, view entity.StructuredTableView, res *Result, seen map[string]bool) {
	if view.Family == constants.FamilyThreePublic {
		e.extractThreePublic(view, res)
		return
	}
	for _, row := range view.BodyRows {
		label := firstNonEmpty(row.Codes)
		if label == "" || len(row.Values) == 0 {
			continue
		}
		snippet := fmt.Sprintf("%s %s %v", view.Key, label, row.Values)
		key, _, ok := e.resolve(ctx, label)
		if !ok {
			if !seen[constants.NormalizeLabel(label)] && !isStructuralLabel(label) {
				seen[constants.NormalizeLabel(label)] = true
				res.UnmatchedLabels = append(res.UnmatchedLabels, label)
			}
			continue
		}
		res.Items = append(res.Items, Item{
			Key:        key,
			RawLabel:   label,
			Value:      row.Values[0],
			Confidence: constants.ConfidenceHigh,
			Snippet:    snippet,
		})
	}
}

// extractThreePublic maps the recomputed total row positionally onto
// the component keys. Column order matches the disclosure template.
func (e *RuleExtractor) extractThreePublic(view entity.StructuredTableView, res *Result) {
	// a synthesized placeholder row carries no disclosed figures
	if len(view.BodyRows) == 0 || view.Meta["placeholder"] == "true" {
		return
	}
	row := view.BodyRows[0]
	if len(row.Values) < 6 {
		return
	}
	keys := []constants.FieldKey{
		constants.ThreePublicTotal,
		constants.ThreePublicOutbound,
		constants.ThreePublicReception,
		constants.ThreePublicVehicleTotal,
		constants.ThreePublicVehiclePurchase,
		constants.ThreePublicVehicleOperation,
	}
	snippet := fmt.Sprintf("%s %v", view.Key, row.Values)
	for i, key := range keys {
		res.Items = append(res.Items, Item{
			Key:        key,
			RawLabel:   constants.Label(key),
			Value:      row.Values[i],
			Confidence: constants.ConfidenceHigh,
			Snippet:    snippet,
		})
	}
}

// extractFromText scans free text line by line for labeled amounts.
// Text matches grade MEDIUM; a label with no parseable amount nearby
// still yields an UNRECOGNIZED item so the reviewer sees it.
func (e *RuleExtractor) extractFromText(ctx context.Context, text string, res *Result, seen map[string]bool) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := labeledLineRe.FindStringSubmatch(line); m != nil {
			label := strings.TrimSpace(m[1])
			norm := constants.NormalizeLabel(label)
			if seen[norm] {
				continue
			}
			key, viaAlias, ok := e.resolve(ctx, label)
			if !ok {
				if !isStructuralLabel(label) {
					seen[norm] = true
					res.UnmatchedLabels = append(res.UnmatchedLabels, label)
				}
				continue
			}
			// text matches grade MEDIUM; alias-approved labels keep the
			// HIGH their human sign-off earned
			conf := constants.ConfidenceMedium
			if viaAlias {
				conf = constants.ConfidenceHigh
			}
			seen[norm] = true
			res.Items = append(res.Items, Item{
				Key:        key,
				RawLabel:   label,
				Value:      parseAmountToken(m[2]),
				Confidence: conf,
				Snippet:    line,
			})
			continue
		}

		// Label present but the amount did not sit where expected:
		// grade UNRECOGNIZED when no amount at all, LOW when an amount
		// appears elsewhere on the line.
		if key, label, ok := e.findKnownLabel(line); ok && !seen[constants.NormalizeLabel(label)] {
			seen[constants.NormalizeLabel(label)] = true
			item := Item{Key: key, RawLabel: label, Snippet: line}
			rest := strings.Replace(line, label, "", 1)
			if m := amountRe.FindString(rest); m != "" {
				item.Value = parseAmountToken(m)
				item.Confidence = constants.ConfidenceLow
			} else {
				item.Confidence = constants.ConfidenceUnrecognized
			}
			res.Items = append(res.Items, item)
		}
	}
}

func (e *RuleExtractor) findKnownLabel(line string) (constants.FieldKey, string, bool) {
	norm := constants.NormalizeLabel(line)
	for _, key := range constants.AllFieldKeys() {
		label := constants.Label(key)
		if strings.Contains(norm, constants.NormalizeLabel(label)) {
			return key, label, true
		}
	}
	return "", "", false
}

// resolve maps a label to a key: built-in vocabulary first, then
// approved alias mappings. viaAlias tells the caller which one hit.
func (e *RuleExtractor) resolve(ctx context.Context, label string) (key constants.FieldKey, viaAlias, ok bool) {
	if key, ok := constants.ResolveLabel(label); ok {
		return key, false, true
	}
	if e.resolver != nil {
		if key, ok := e.resolver.ResolveApproved(ctx, label); ok {
			return key, true, true
		}
	}
	return "", false, false
}

// isStructuralLabel filters table scaffolding (codes, captions) out of
// alias candidates.
func isStructuralLabel(label string) bool {
	norm := constants.NormalizeLabel(label)
	if norm == "" || len([]rune(norm)) < 2 {
		return true
	}
	digits := true
	for _, r := range norm {
		if r < '0' || r > '9' {
			digits = false
			break
		}
	}
	if digits {
		return true
	}
	for _, s := range []string{"项目", "科目名称", "合计", "小计", "金额", "类", "款", "项", "备注", "年初", "年末"} {
		if norm == constants.NormalizeLabel(s) {
			return true
		}
	}
	return false
}

func firstNonEmpty(ss []string) string {
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func parseAmountToken(tok string) float64 {
	s := strings.NewReplacer(",", "", "，", "").Replace(strings.TrimSpace(tok))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
