// Package domain defines the catalog payloads received from the vendor
// scraper and the validation gate every pipeline entry point runs first.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EngineDetail is one engine row of a generation page.
type EngineDetail struct {
	Model  string `json:"model"`
	Years  string `json:"years"`
	Engine string `json:"engine"`
	Power  string `json:"power"`
	Torque string `json:"torque"`
}

// GenerationModel is one generation of a car model, e.g. "E90/E91/E92/E93".
type GenerationModel struct {
	Model         string         `json:"model"`
	ImagePath     ImageRef       `json:"image_path,omitempty"`
	Summary       string         `json:"summary"`
	ModelYear     string         `json:"model_year,omitempty"`
	EngineDetails []EngineDetail `json:"engine_details"`
}

// CarData holds the generations of a car payload. The scraper has sent both
// {"models": [...]} and a bare array; both decode here.
type CarData struct {
	Models []GenerationModel `json:"models" validate:"required"`
}

func (d *CarData) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		return json.Unmarshal(b, &d.Models)
	}
	var obj struct {
		Models []GenerationModel `json:"models"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	d.Models = obj.Models
	return nil
}

// CarPayload is a car model page with its generations.
type CarPayload struct {
	Make         string   `json:"make" validate:"required"`
	Model        string   `json:"model" validate:"required"`
	ModelYear    string   `json:"model_year"`
	Summary      string   `json:"summary"`
	ChassisCodes []string `json:"chassis_codes,omitempty"`
	ImagePath    ImageRef `json:"image_path,omitempty"`
	Data         CarData  `json:"data"`
}

// RawEngineData is one configuration row of an engine class page.
type RawEngineData struct {
	EngineCode   string `json:"engine_code"`
	Displacement string `json:"displacement,omitempty"`
	Power        string `json:"power,omitempty"`
	Torque       string `json:"torque,omitempty"`
	Years        string `json:"years,omitempty"`
}

// EnginePayload is an engine class page such as "BMW B58".
type EnginePayload struct {
	Model        string          `json:"model" validate:"required"`
	FuelType     string          `json:"fuel_type"`
	ImagePath    ImageRef        `json:"image_path,omitempty"`
	Notes        Notes           `json:"notes,omitempty"`
	WikipediaURL string          `json:"wikipedia_url,omitempty"`
	Summary      string          `json:"summary,omitempty"`
	Data         []RawEngineData `json:"data" validate:"required"`
}

// Notes is free-form engine class notes. Non-string JSON is kept as its
// compact JSON text; null and the string "null" decode to "".
type Notes string

func (n *Notes) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s == "null" {
			s = ""
		}
		*n = Notes(s)
		return nil
	}
	if string(bytes.TrimSpace(b)) == "null" {
		*n = ""
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return fmt.Errorf("notes: %w", err)
	}
	*n = Notes(buf.String())
	return nil
}
