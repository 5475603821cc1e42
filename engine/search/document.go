package search

import (
	"strings"

	"github.com/google/uuid"

	"github.com/bmwdex/bmwdex/engine/graph"
)

// Kind separates engine points from engine class points in one collection.
type Kind string

const (
	KindEngine Kind = "engine"
	KindClass  Kind = "class"
)

// Document is one indexable record. Text is what gets embedded; Fields are
// stored as the point payload and returned with hits.
type Document struct {
	Kind   Kind
	Key    string // engine code or class model
	Text   string
	Fields map[string]string
}

// Hit is one search result.
type Hit struct {
	ID     string            `json:"id"`
	Kind   Kind              `json:"kind"`
	Key    string            `json:"key"`
	Score  float32           `json:"score"`
	Fields map[string]string `json:"fields,omitempty"`
}

// pointNamespace scopes the UUIDv5 point ids.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://bmwdex/search"))

// PointID is the deterministic point id of kind:key, so re-syncing a record
// overwrites its point.
func PointID(kind Kind, key string) string {
	return uuid.NewSHA1(pointNamespace, []byte(string(kind)+":"+key)).String()
}

// ID is the document's point id.
func (d Document) ID() string { return PointID(d.Kind, d.Key) }

// EngineDocument indexes an engine by code, family, class and decoding.
func EngineDocument(e graph.Engine) Document {
	return Document{
		Kind: KindEngine,
		Key:  e.Code,
		Text: joinText(e.Code, e.Family, e.ClassModel, e.Decoded),
		Fields: map[string]string{
			"code":        e.Code,
			"family":      e.Family,
			"class_model": e.ClassModel,
			"decoded":     e.Decoded,
			"image_path":  e.ImagePath,
		},
	}
}

// ClassDocument indexes an engine class page.
func ClassDocument(c graph.EngineClass) Document {
	return Document{
		Kind: KindClass,
		Key:  c.Model,
		Text: joinText(c.Model, c.FuelType, c.Summary, c.Notes),
		Fields: map[string]string{
			"model":         c.Model,
			"fuel_type":     c.FuelType,
			"image_path":    c.ImagePath,
			"wikipedia_url": c.WikipediaURL,
		},
	}
}

func joinText(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
