// Package bmwcode extracts BMW engine codes, chassis codes and model-year
// ranges from loosely structured vendor text, and decodes engine codes into
// readable descriptions. Every function is pure and safe for concurrent use.
package bmwcode

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"
)

// EngineCodeResult is the outcome of ExtractEngineCode. Empty fields mean
// "no match" and encode as JSON null.
type EngineCodeResult struct {
	Code         string // e.g. "B38A15M0" ("" if not found)
	EngineFamily string // e.g. "B38" ("" if not found)
}

// HasCode reports whether a code was extracted.
func (r EngineCodeResult) HasCode() bool { return r.Code != "" }

// HasFamily reports whether a family was extracted.
func (r EngineCodeResult) HasFamily() bool { return r.EngineFamily != "" }

// MarshalJSON encodes missing fields as null.
func (r EngineCodeResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Code         *string `json:"code"`
		EngineFamily *string `json:"engineFamily"`
	}{nullable(r.Code), nullable(r.EngineFamily)})
}

// UnmarshalJSON accepts null or string fields.
func (r *EngineCodeResult) UnmarshalJSON(data []byte) error {
	var raw struct {
		Code         *string `json:"code"`
		EngineFamily *string `json:"engineFamily"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = EngineCodeResult{Code: deref(raw.Code), EngineFamily: deref(raw.EngineFamily)}
	return nil
}

// Pattern kinds, most specific first.
const (
	PatternModernFull      = "modern-full"
	PatternModernTechnical = "modern-technical"
	PatternLegacy          = "legacy"
	PatternBasic           = "basic"
	PatternFamilyFallback  = "family-fallback"
)

type codePattern struct {
	kind string
	re   *regexp.Regexp
	// familyOnly patterns are consulted when recovering a family, never for the code.
	familyOnly bool
}

// enginePatterns is the priority chain. Order is a correctness contract.
var enginePatterns = []codePattern{
	{kind: PatternModernFull, re: regexp.MustCompile(`[NBMSW]\d{2}[A-Z]\d{2}[A-Z]\d`)},
	{kind: PatternModernTechnical, re: regexp.MustCompile(`[NBMSW]\d{2}[A-Z]\d{2}(?:[A-Z][A-Z0-9])?`)},
	{kind: PatternLegacy, re: regexp.MustCompile(`[NBMSW]\d{2}[A-Z]\d{2}`)},
	{kind: PatternBasic, re: regexp.MustCompile(`[NBMSW]\d{2}`)},
	{kind: PatternFamilyFallback, re: regexp.MustCompile(`[NBMSW]\s*\d\s*\d`), familyOnly: true},
}

var dotReplacer = strings.NewReplacer(
	"．", ".", "•", ".", "·", ".",
	"،", ",", "٫", ",",
)

var logger atomic.Pointer[slog.Logger]

// upperExpander applies the one-to-many uppercase mappings that
// strings.ToUpper leaves alone.
var upperExpander = strings.NewReplacer(
	"ß", "SS", "ﬀ", "FF", "ﬁ", "FI", "ﬂ", "FL", "ﬃ", "FFI", "ﬄ", "FFL", "ﬅ", "ST", "ﬆ", "ST",
)

// normalizeEngine is swapped in tests to reach the recovery path.
var normalizeEngine = NormalizeEngineText

// SetLogger sets the logger used to report recovered failures. A nil logger
// restores slog.Default().
func SetLogger(l *slog.Logger) { logger.Store(l) }

func pkgLogger() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// NormalizeEngineText uppercases s, drops whitespace, hyphens and underscores,
// and folds Unicode dot and comma glyphs to ASCII.
func NormalizeEngineText(s string) string {
	upper := strings.ToUpper(upperExpander.Replace(s))
	stripped := strings.Map(func(r rune) rune {
		if isWebSpace(r) || r == '-' || r == '_' {
			return -1
		}
		return r
	}, upper)
	return strings.TrimFunc(dotReplacer.Replace(stripped), isWebSpace)
}

// ExtractEngineCode finds the most specific engine code and the engine family
// in a free-text engine description such as "B38A15M0 1.5 L I3 turbo".
// It never fails: unmatched input yields an empty result.
func ExtractEngineCode(engine string) (res EngineCodeResult) {
	if engine == "" {
		return EngineCodeResult{}
	}
	defer func() {
		if r := recover(); r != nil {
			pkgLogger().Error("bmwcode: extract engine code panicked", "input", engine, "error", r)
			res = EngineCodeResult{}
		}
	}()

	text := normalizeEngine(engine)
	return EngineCodeResult{
		Code:         findCode(text),
		EngineFamily: findFamily(text),
	}
}

// ExtractEngineCodeValue is ExtractEngineCode for values decoded from loosely
// typed JSON. Anything that is not a non-empty string yields an empty result.
func ExtractEngineCodeValue(v any) EngineCodeResult {
	s, ok := v.(string)
	if !ok {
		return EngineCodeResult{}
	}
	return ExtractEngineCode(s)
}

// findFamily tries every pattern, including the fallback, and returns the first
// three characters of the first match with whitespace removed.
func findFamily(text string) string {
	for _, p := range enginePatterns {
		m := p.re.FindString(text)
		if m == "" {
			continue
		}
		if len(m) > 3 {
			m = m[:3]
		}
		return strings.Join(strings.Fields(m), "")
	}
	return ""
}

// findCode returns the full match of the first non-fallback pattern that hits.
func findCode(text string) string {
	for _, p := range enginePatterns {
		if p.familyOnly {
			continue
		}
		if m := p.re.FindString(text); m != "" {
			return m
		}
	}
	return ""
}

// MatchKind reports which pattern produced the code for engine, or "" when
// nothing matched.
func MatchKind(engine string) string {
	text := NormalizeEngineText(engine)
	for _, p := range enginePatterns {
		if p.familyOnly {
			continue
		}
		if p.re.MatchString(text) {
			return p.kind
		}
	}
	return ""
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
