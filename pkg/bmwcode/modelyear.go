package bmwcode

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ModelYearRange is a production window parsed from vendor text. A nil
// StartYear means no leading integer parsed; a nil EndYear means the range is
// ongoing. Zero and empty values are real results, e.g. "09/0" starts in 0.
type ModelYearRange struct {
	StartYear *int    `json:"start_year"`
	EndYear   *string `json:"end_year"`
}

// HasStart reports whether a start year was parsed.
func (r ModelYearRange) HasStart() bool { return r.StartYear != nil }

// Ongoing reports whether the range has no end year.
func (r ModelYearRange) Ongoing() bool { return r.EndYear == nil }

var (
	shortYearSlashRe = regexp.MustCompile(`^(\d{2})/`)
	shortYearDashRe  = regexp.MustCompile(`^(\d{2})-`)
)

// NormalizeModelYear applies the cleanup ParseModelYear runs before splitting:
// the first en dash and the first em dash become hyphens, whitespace is
// dropped, and a leading two-digit year is prefixed with "19".
func NormalizeModelYear(s string) string {
	s = strings.Replace(s, "–", "-", 1)
	s = strings.Replace(s, "—", "-", 1)
	s = strings.Map(func(r rune) rune {
		if isWebSpace(r) {
			return -1
		}
		return r
	}, s)
	s = shortYearSlashRe.ReplaceAllString(s, "19${1}/")
	return shortYearDashRe.ReplaceAllString(s, "19${1}-")
}

// ParseModelYear parses ranges such as "1981-1983", "2019-present",
// "09/2007-10/2011" or "82-85". Only the leading year is widened from two
// digits, so "82-85" ends in "85".
func ParseModelYear(modelYear string) ModelYearRange {
	cleaned := NormalizeModelYear(modelYear)
	start, end, _ := strings.Cut(cleaned, "-")
	// Anything after a second hyphen is ignored.
	end, _, _ = strings.Cut(end, "-")

	if strings.Contains(cleaned, "/") {
		var r ModelYearRange
		if seg, ok := secondSegment(start); ok {
			if y, ok := parseLeadingInt(seg); ok {
				r.StartYear = &y
			}
		}
		if end != "" {
			if seg, ok := secondSegment(end); ok {
				r.EndYear = &seg
			}
		}
		return r
	}

	// A zero start reads as unparsed here, unlike the month-qualified form.
	var r ModelYearRange
	if y, ok := parseLeadingInt(start); ok && y != 0 {
		r.StartYear = &y
	}
	if end != "" && end != "present" {
		r.EndYear = &end
	}
	return r
}

// secondSegment returns the part after the first slash of a "MM/YYYY" half,
// and false when the half has no slash.
func secondSegment(s string) (string, bool) {
	parts := strings.Split(s, "/")
	if len(parts) < 2 {
		return "", false
	}
	return parts[1], true
}

// isWebSpace matches the whitespace class of browser regular expressions:
// Unicode spaces and U+FEFF, but not U+0085.
func isWebSpace(r rune) bool {
	if r == '\u0085' {
		return false
	}
	return unicode.IsSpace(r) || r == '\uFEFF'
}

// parseLeadingInt reads an optionally signed integer prefix the way lenient
// web parsers do: "1981abc" is 1981, "0x7D0" is 2000, "abc" fails.
func parseLeadingInt(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, isWebSpace)
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	base, digits := 10, "0123456789"
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		base, digits = 16, "0123456789abcdefABCDEF"
		s = s[2:]
	}
	end := 0
	for end < len(s) && strings.IndexByte(digits, s[end]) >= 0 {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(s[:end], base, 0)
	if err != nil {
		return 0, false
	}
	if neg {
		n = -n
	}
	return int(n), true
}
