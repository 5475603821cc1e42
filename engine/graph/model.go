// Package graph stores the BMW catalog in Neo4j:
// Make -> CarModel -> Generation, EngineClass -> Engine -> EngineConfiguration,
// and Generation -[:USES_ENGINE]-> Engine.
package graph

import (
	"strings"
)

type Make struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CarModel struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MakeID    string `json:"make_id"`
	ModelYear string `json:"model_year,omitempty"`
	Summary   string `json:"summary,omitempty"`
	ImagePath string `json:"image_path,omitempty"`
}

// Generation is one generation of a car model. StartYear nil and EndYear nil
// are stored as null; a null end year means the generation is current.
type Generation struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	ModelID      string   `json:"model_id"`
	StartYear    *int     `json:"start_year"`
	EndYear      *string  `json:"end_year"`
	ChassisCodes []string `json:"chassis_codes"`
	Summary      string   `json:"summary,omitempty"`
	ImagePath    string   `json:"image_path,omitempty"`
}

// EngineClass is an engine page grouping codes, keyed by model ("BMW B58").
type EngineClass struct {
	Model        string `json:"model"`
	FuelType     string `json:"fuel_type,omitempty"`
	Summary      string `json:"summary,omitempty"`
	Notes        string `json:"notes,omitempty"`
	ImagePath    string `json:"image_path,omitempty"`
	WikipediaURL string `json:"wikipedia_url,omitempty"`
}

// Engine is keyed by its code.
type Engine struct {
	Code       string `json:"code"`
	Family     string `json:"family,omitempty"`
	ClassModel string `json:"class_model,omitempty"`
	Valid      bool   `json:"valid"`
	Decoded    string `json:"decoded,omitempty"`
	ImagePath  string `json:"image_path,omitempty"`
}

// EngineConfiguration is unique per engine, displacement, power, torque and
// years.
type EngineConfiguration struct {
	EngineCode   string  `json:"engine_code"`
	Displacement string  `json:"displacement"`
	Power        string  `json:"power"`
	Torque       string  `json:"torque"`
	Years        string  `json:"years"`
	StartYear    *int    `json:"start_year"`
	EndYear      *string `json:"end_year"`
}

// GenerationEngine is the USES_ENGINE relationship with the row it came from.
type GenerationEngine struct {
	GenerationID string `json:"generation_id"`
	EngineCode   string `json:"engine_code"`
	Family       string `json:"family,omitempty"`
	Valid        bool   `json:"valid"`
	Label        string `json:"label,omitempty"`
	Years        string `json:"years,omitempty"`
	Power        string `json:"power,omitempty"`
	Torque       string `json:"torque,omitempty"`
}

// MakeID, ModelID and GenerationID derive stable node ids from names.
func MakeID(name string) string { return slug(name) }

func ModelID(makeName, model string) string { return MakeID(makeName) + "-" + slug(model) }

func GenerationID(modelID, generation string) string { return modelID + "-" + slug(generation) }

func slug(s string) string {
	f := strings.Fields(strings.ToLower(s))
	return strings.ReplaceAll(strings.Join(f, "-"), "/", "_")
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func nullableStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
