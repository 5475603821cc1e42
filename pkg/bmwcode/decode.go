package bmwcode

import (
	"fmt"
	"strings"
)

// Undefined is rendered for any position whose lookup misses. Stored decoded
// strings depend on this exact word.
const Undefined = "undefined"

var engineTypes = map[string]string{
	"M": "Standard engine",
	"N": "New gen engine",
	"B": "Modular engine",
	"S": "BMW M GmbH road car engine",
	"P": "BMW Motorsport racing engine",
	"W": "Engine shared with other manufacturers",
}

// cylinderCounts keys are the position-1 digit; the descriptions do not track
// the digit past 4 and must stay as they are.
var cylinderCounts = map[string]string{
	"3": "3 cylinder inline",
	"4": "4 cylinder inline",
	"5": "6 cylinder inline",
	"6": "8 cylinder inline",
	"8": "10 cylinder inline",
}

var derivations = map[string]string{
	"6": "SULEV turbo valvetronic",
	"8": " Turbo valvetronic direct injection",
	"0": "Original engine concept",
}

// engineMountings and tuningStates use lowercase keys while codes are
// uppercase, so the literal decoder always misses them. See DecodeOptions.
var engineMountings = map[string]string{
	"a": "transverse mounted",
	"b": "longitudinal mounted",
	"k": "transverse mid mounted",
}

var displacements = map[string]string{
	"12": "1.5 liter",
	"20": "2.0 liter",
	"30": "3.0 liter",
	"44": "4.4 liter",
}

var tuningStates = map[string]string{
	"k": "lowest performance",
	"u": "lower performance",
	"m": "middle performance",
	"o": "upper performance",
	"t": "top performance",
	"s": "super performance",
}

var revisions = map[string]string{
	"0": "new development",
	"1": "first revision",
	"2": "second revision",
}

// DecodeOptions tunes DecodeEngineCodeWith.
type DecodeOptions struct {
	// FoldCase lowercases the mounting and tuning characters before lookup so
	// that uppercase codes resolve. Output then differs from stored strings.
	FoldCase bool
}

// Segment is one looked-up position of an engine code.
type Segment struct {
	Key   string `json:"key"` // characters taken from the code ("" past the end)
	Value string `json:"value,omitempty"`
	OK    bool   `json:"ok"`
}

// String renders the value, or Undefined when the lookup missed.
func (s Segment) String() string {
	if !s.OK {
		return Undefined
	}
	return s.Value
}

// EngineDecoding is the typed form of a decoded engine code.
type EngineDecoding struct {
	Code          string  `json:"code"`
	Type          Segment `json:"type"`
	Cylinders     Segment `json:"cylinders"`
	Derivation    Segment `json:"derivation"`
	Mounting      Segment `json:"mounting"`
	Displacement  Segment `json:"displacement"`
	Tuning        Segment `json:"tuning"`
	Revision      string  `json:"revision"` // literal position 7, "" when absent
	RevisionLabel Segment `json:"revision_label"`
}

// Complete reports whether every looked-up position resolved.
func (d EngineDecoding) Complete() bool {
	for _, s := range []Segment{d.Type, d.Cylinders, d.Derivation, d.Mounting, d.Displacement, d.Tuning} {
		if !s.OK {
			return false
		}
	}
	return d.Revision != ""
}

// String renders the decoding as the catalog sentence.
func (d EngineDecoding) String() string {
	rev := d.Revision
	if rev == "" {
		rev = Undefined
	}
	return fmt.Sprintf("%s %s with %s, %s, %s, %s (revision %s)",
		d.Type, d.Cylinders, d.Derivation, d.Mounting, d.Displacement, d.Tuning, rev)
}

// DecodeEngineCode renders an engine code such as "B38A15M0" as a sentence.
// It does not validate: short or malformed input yields "undefined" segments
// instead of an error, matching previously stored descriptions.
func DecodeEngineCode(code string) string {
	return DecodeEngineCodeParts(code, DecodeOptions{}).String()
}

// DecodeEngineCodeWith is DecodeEngineCode with options.
func DecodeEngineCodeWith(code string, opts DecodeOptions) string {
	return DecodeEngineCodeParts(code, opts).String()
}

// DecodeEngineCodeParts looks up each position of code and reports which
// lookups resolved.
func DecodeEngineCodeParts(code string, opts DecodeOptions) EngineDecoding {
	chars := []rune(code)
	at := func(i int) string {
		if i < len(chars) {
			return string(chars[i])
		}
		return ""
	}
	span := func(from, to int) string {
		if from >= len(chars) {
			return ""
		}
		return string(chars[from:min(to, len(chars))])
	}

	mount, tune := at(3), at(6)
	if opts.FoldCase {
		mount, tune = strings.ToLower(mount), strings.ToLower(tune)
	}

	return EngineDecoding{
		Code:          code,
		Type:          lookup(engineTypes, at(0)),
		Cylinders:     lookup(cylinderCounts, at(1)),
		Derivation:    lookup(derivations, at(2)),
		Mounting:      lookup(engineMountings, mount),
		Displacement:  lookup(displacements, span(4, 6)),
		Tuning:        lookup(tuningStates, tune),
		Revision:      at(7),
		RevisionLabel: lookup(revisions, at(7)),
	}
}

func lookup(table map[string]string, key string) Segment {
	v, ok := table[key]
	return Segment{Key: key, Value: v, OK: ok}
}
