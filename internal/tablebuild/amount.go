package tablebuild

import (
	"strconv"
	"strings"
)

// isClassificationCode reports whether a token is a 1-4 digit
// functional/economic classification code rather than an amount.
func isClassificationCode(tok string) bool {
	tok = strings.TrimSpace(tok)
	if n := len(tok); n < 1 || n > 4 {
		return false
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// isAmount reports whether a token parses as a monetary amount.
// Classification codes are deliberately not amounts.
func isAmount(tok string) bool {
	if isClassificationCode(tok) {
		return false
	}
	_, ok := parseAmountStrict(tok)
	return ok
}

// isBlankMarker reports whether a cell is a dash used as "no value".
func isBlankMarker(tok string) bool {
	switch strings.TrimSpace(tok) {
	case "-", "—", "--":
		return true
	}
	return false
}

// parseAmount reads a cell as an amount, defaulting to 0 for blanks,
// dashes, and anything unparseable. Zero-defaulting keeps columns
// aligned; it is the recovery policy, not validation.
func parseAmount(tok string) float64 {
	v, _ := parseAmountStrict(tok)
	return v
}

func parseAmountStrict(tok string) (float64, bool) {
	s := strings.TrimSpace(tok)
	if s == "" || s == "-" || s == "—" || s == "--" {
		return 0, false
	}
	s = strings.NewReplacer(",", "", "，", "", "￥", "", "¥", "", " ", "").Replace(s)
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		v = -v
	}
	return v, true
}
