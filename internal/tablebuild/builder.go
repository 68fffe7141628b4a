// Package tablebuild reconciles noisy raw grids into semantically
// addressable structure. Spreadsheets keep formula-derived totals
// blank, duplicate legacy total rows, and shift columns; the aligner
// recovers a fixed shape per table family instead of failing the
// batch. Malformed input degrades to zeros, it is never dropped
// silently and never raises.
package tablebuild

import (
	"log/slog"
	"strings"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/entity"
)

type Builder struct {
	logger *slog.Logger
}

func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger}
}

// Build projects a candidate's grid into the canonical shape for its
// table family. The output always has ColCount-wide rows; if nothing
// survives filtering a single zero-valued placeholder row is
// synthesized so downstream rendering never sees an empty table.
func (b *Builder) Build(cand entity.BudgetTableCandidate) entity.StructuredTableView {
	spec, ok := constants.TableByKey(cand.Key)
	if !ok {
		// Unknown keys only happen on catalog drift; emit a placeholder.
		spec = constants.TableSpec{Key: cand.Key, CodeCols: 1, NumericCols: 1}
	}

	view := entity.StructuredTableView{
		Key:            spec.Key,
		Family:         spec.Family,
		NumericColumns: numericPositions(spec),
		Meta:           map[string]string{"source_sheet": cand.MatchedSheet},
	}

	for _, raw := range cand.Rows {
		rows, kind := alignRows(spec, raw)
		switch kind {
		case rowHeader:
			if len(view.HeaderRows) < maxHeaderRows {
				view.HeaderRows = append(view.HeaderRows, trimRow(raw))
			}
		case rowBody:
			view.BodyRows = append(view.BodyRows, rows...)
		}
	}

	if spec.Family == constants.FamilyThreePublic {
		recomputeThreePublic(view.BodyRows)
	}

	if len(view.BodyRows) == 0 {
		view.BodyRows = append(view.BodyRows, placeholderRow(spec))
		view.Meta["placeholder"] = "true"
		b.logger.Warn("no rows survived filtering, placeholder synthesized", "table", spec.Key)
	}
	return view
}

const maxHeaderRows = 8

type rowKind int

const (
	rowDiscard rowKind = iota
	rowHeader
	rowBody
)

func numericPositions(spec constants.TableSpec) []int {
	pos := make([]int, spec.NumericCols)
	for i := range pos {
		pos[i] = spec.CodeCols + i
	}
	return pos
}

func placeholderRow(spec constants.TableSpec) entity.StructuredRow {
	return entity.StructuredRow{
		Codes:  make([]string, spec.CodeCols),
		Values: make([]float64, spec.NumericCols),
	}
}

// alignRows dispatches a raw row to its family's alignment rule.
// Two-sided rows may yield several structured rows; every other
// family yields at most one.
func alignRows(spec constants.TableSpec, raw []string) ([]entity.StructuredRow, rowKind) {
	if spec.Family == constants.FamilyTwoSided {
		return alignTwoSided(spec, raw)
	}
	row, kind := alignRow(spec, raw)
	if kind != rowBody {
		return nil, kind
	}
	return []entity.StructuredRow{row}, rowBody
}

// alignTwoSided splits a revenue/expenditure summary row into its
// halves: each label token starts a new (label, amounts...) segment,
// so the expenditure side of a printed row survives as its own
// structured row instead of bleeding into the revenue side's numeric
// tail.
func alignTwoSided(spec constants.TableSpec, raw []string) ([]entity.StructuredRow, rowKind) {
	cells := trimRow(raw)
	if isEmptyRow(cells) {
		return nil, rowDiscard
	}
	if isNoiseRow(spec, cells) {
		return nil, rowHeader
	}

	var rows []entity.StructuredRow
	var cur *entity.StructuredRow
	vi := 0
	for _, tok := range cells {
		if tok != "" && !isBlankMarker(tok) && !isAmount(tok) {
			codes := make([]string, spec.CodeCols)
			codes[0] = tok
			rows = append(rows, entity.StructuredRow{
				Codes:  codes,
				Values: make([]float64, spec.NumericCols),
			})
			cur = &rows[len(rows)-1]
			vi = 0
			continue
		}
		// amounts before the first label belong to no half
		if cur == nil || vi >= spec.NumericCols {
			continue
		}
		cur.Values[vi] = parseAmount(tok)
		vi++
	}
	if len(rows) == 0 {
		return nil, rowDiscard
	}
	return rows, rowBody
}

// alignRow classifies one raw row and, for body rows, aligns it to the
// spec's fixed shape: leading non-numeric tokens fill the code columns
// (a 1-4 digit token is a classification code, not a value), and the
// numeric tail is read positionally with blanks defaulting to zero.
func alignRow(spec constants.TableSpec, raw []string) (entity.StructuredRow, rowKind) {
	cells := trimRow(raw)
	if isEmptyRow(cells) {
		return entity.StructuredRow{}, rowDiscard
	}
	if isNoiseRow(spec, cells) {
		return entity.StructuredRow{}, rowHeader
	}

	codes := make([]string, 0, spec.CodeCols)
	i := 0
	for i < len(cells) && len(codes) < spec.CodeCols {
		tok := cells[i]
		if tok == "" || isClassificationCode(tok) || !isAmount(tok) {
			codes = append(codes, tok)
			i++
			continue
		}
		break
	}
	for len(codes) < spec.CodeCols {
		codes = append(codes, "")
	}

	// Skip subject-name text between the code block and the numeric
	// tail. Blanks and dash markers stay: they are positional blank
	// values, not labels.
	for i < len(cells) && cells[i] != "" && !isBlankMarker(cells[i]) && !isAmount(cells[i]) {
		i++
	}

	tail := cells[i:]
	if len(tail) > spec.NumericCols {
		// Extra leading junk; the tail is the part with known width.
		tail = tail[len(tail)-spec.NumericCols:]
	}
	values := make([]float64, spec.NumericCols)
	for j := 0; j < spec.NumericCols; j++ {
		if j < len(tail) {
			values[j] = parseAmount(tail[j])
		}
	}

	// A row with neither a label nor any value carries no information.
	if allBlank(codes) && allZero(values) {
		return entity.StructuredRow{}, rowDiscard
	}
	return entity.StructuredRow{Codes: codes, Values: values}, rowBody
}

// isNoiseRow recognizes pure header noise: the table title line,
// unit/department banners, and rows made up only of known captions.
func isNoiseRow(spec constants.TableSpec, cells []string) bool {
	joined := constants.NormalizeLabel(strings.Join(cells, ""))
	if joined == "" {
		return false
	}
	if strings.Contains(joined, constants.NormalizeLabel(spec.Title)) {
		return true
	}
	for _, banner := range []string{"单位:", "单位名称", "部门:", "编制单位", "金额单位", "单位:万元", "单位:元"} {
		if strings.Contains(joined, constants.NormalizeLabel(banner)) {
			return true
		}
	}

	captions := make(map[string]bool, len(spec.HeaderNoise))
	for _, c := range spec.HeaderNoise {
		captions[constants.NormalizeLabel(c)] = true
	}
	nonEmpty := 0
	for _, cell := range cells {
		norm := constants.NormalizeLabel(cell)
		if norm == "" {
			continue
		}
		nonEmpty++
		if !captions[norm] {
			return false
		}
	}
	return nonEmpty > 0
}

// recomputeThreePublic compensates for spreadsheet formula cells that
// serialize as blank. Column order: total, outbound, reception,
// vehicle subtotal, vehicle purchase, vehicle operation.
func recomputeThreePublic(rows []entity.StructuredRow) {
	for i := range rows {
		v := rows[i].Values
		if len(v) < 6 {
			continue
		}
		if v[3] == 0 && (v[4] != 0 || v[5] != 0) {
			v[3] = v[4] + v[5]
		}
		if v[0] == 0 && (v[1] != 0 || v[2] != 0 || v[3] != 0) {
			v[0] = v[1] + v[2] + v[3]
		}
	}
}

func trimRow(raw []string) []string {
	out := make([]string, len(raw))
	for i, c := range raw {
		out[i] = strings.TrimSpace(c)
	}
	// drop trailing empties so tail alignment sees the real width
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

func isEmptyRow(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

func allBlank(ss []string) bool {
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			return false
		}
	}
	return true
}

func allZero(vs []float64) bool {
	for _, v := range vs {
		if v != 0 {
			return false
		}
	}
	return true
}
