package domain

import (
	"encoding/json"
	"path"
	"regexp"
	"strings"
)

var pathSeparators = strings.NewReplacer("/", "_", `\`, "_")

// SanitizeFileName turns a model name into the file stem the receive
// endpoints write, e.g. "BMW M20/M21" -> "bmw m20_m21".
func SanitizeFileName(model string) string {
	return strings.ToLower(pathSeparators.Replace(model))
}

// CarFilePath is where a received car payload is stored below the data dir.
// Make and model each become one sanitized path segment.
func CarFilePath(p CarPayload) (string, error) {
	mk, err := pathSegment("make", p.Make)
	if err != nil {
		return "", err
	}
	model, err := pathSegment("model", p.Model)
	if err != nil {
		return "", err
	}
	return path.Join(mk, "cars", model+".json"), nil
}

// EngineFilePath is where a received engine payload is stored below the data dir.
func EngineFilePath(p EnginePayload) (string, error) {
	model, err := pathSegment("model", p.Model)
	if err != nil {
		return "", err
	}
	return path.Join("bmw", "engines", model+".json"), nil
}

// pathSegment sanitizes name and rejects what would not stay a single
// directory entry.
func pathSegment(field, name string) (string, error) {
	seg := SanitizeFileName(name)
	switch strings.TrimSpace(seg) {
	case "", ".", "..":
		return "", NewValidationError(field, name, ErrUnsafePath)
	}
	return seg, nil
}

// ImageRef is an image location as the scraper sends it: a URL string, a
// JSON-encoded {"image_link": ...} string, or that object itself.
type ImageRef string

func (r *ImageRef) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = ImageRef(s)
		return nil
	}
	var obj struct {
		ImageLink string `json:"image_link"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		// Anything else (null, numbers) carries no image.
		*r = ""
		return nil
	}
	*r = ImageRef(obj.ImageLink)
	return nil
}

// URL is the cleaned, absolute image URL or "".
func (r ImageRef) URL() string { return CleanImageURL(string(r)) }

var urlJunk = regexp.MustCompile(`[\[\]\n\s"]`)

// CleanImageURL unwraps a JSON {"image_link": ...} value when present,
// strips brackets, quotes and whitespace, and makes protocol-relative URLs
// absolute.
func CleanImageURL(raw string) string {
	if raw == "" || raw == "null" {
		return ""
	}
	u := raw
	var obj struct {
		ImageLink string `json:"image_link"`
	}
	if err := json.Unmarshal([]byte(raw), &obj); err == nil && obj.ImageLink != "" {
		u = obj.ImageLink
	}
	u = urlJunk.ReplaceAllString(u, "")
	if strings.HasPrefix(u, "//") {
		u = "https:" + u
	}
	return u
}
