package bmwcode

import (
	"regexp"
	"strings"
)

var chassisRe = regexp.MustCompile(`^[A-Z][0-9]{2}$`)

// ExtractChassisCodes splits a generation name such as "E30/E36" on slashes
// and keeps the segments shaped like a chassis code, in input order.
// Duplicates are kept. A name with no valid segment yields an empty, non-nil
// slice; callers decide whether that is worth a warning.
func ExtractChassisCodes(generationName string) []string {
	codes := []string{}
	for _, seg := range strings.Split(generationName, "/") {
		seg = strings.TrimFunc(seg, isWebSpace)
		if chassisRe.MatchString(seg) {
			codes = append(codes, seg)
		}
	}
	return codes
}

// IsValidChassisCode reports whether s is a single chassis code like "F80".
func IsValidChassisCode(s string) bool {
	return chassisRe.MatchString(s)
}
