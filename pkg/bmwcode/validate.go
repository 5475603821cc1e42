package bmwcode

import (
	"regexp"
	"strings"
)

// validEnginePatterns are exact, whole-string engine code shapes.
var validEnginePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[NBMSW]\d{2}[A-Z]\d{2}[A-Z]\d$`),       // modern full, B38A15M0
	regexp.MustCompile(`^[NBMSW]\d{2}[A-Z]\d{2}[A-Z][A-Z0-9]$`), // modern technical, B58B30TU
	regexp.MustCompile(`^[NBMSW]\d{2}[A-Z]\d{2}$`),              // legacy, M30B30
	regexp.MustCompile(`^[NBMSW]\d{2}$`),                        // basic, B48
}

// IsValidEngineCode reports whether code, uppercased and trimmed, is exactly
// one of the known engine code shapes. Unlike ExtractEngineCode it does not
// search inside longer text.
func IsValidEngineCode(code string) bool {
	if code == "" {
		return false
	}
	normalized := strings.TrimFunc(strings.ToUpper(upperExpander.Replace(code)), isWebSpace)
	for _, re := range validEnginePatterns {
		if re.MatchString(normalized) {
			return true
		}
	}
	return false
}
