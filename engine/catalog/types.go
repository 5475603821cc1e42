package catalog

import "github.com/bmwdex/bmwdex/pkg/bmwcode"

// ParsedEngine is one engine row of a generation after extraction.
type ParsedEngine struct {
	Label     string `json:"label"` // e.g. "330i"
	Raw       string `json:"raw"`   // the vendor engine text
	Code      string `json:"code,omitempty"`
	Family    string `json:"family,omitempty"`
	MatchKind string `json:"match_kind,omitempty"`
	Valid     bool   `json:"valid"`
	Decoded   string `json:"decoded,omitempty"`
	Years     string `json:"years,omitempty"`
	Power     string `json:"power,omitempty"`
	Torque    string `json:"torque,omitempty"`
}

// Key is the code, or the family when only a family was found, or "".
func (e ParsedEngine) Key() string {
	if e.Code != "" {
		return e.Code
	}
	return e.Family
}

type ParsedGeneration struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	ChassisCodes []string               `json:"chassis_codes"`
	Years        bmwcode.ModelYearRange `json:"years"`
	Summary      string                 `json:"summary,omitempty"`
	ImagePath    string                 `json:"image_path,omitempty"`
	Engines      []ParsedEngine         `json:"engines"`
}

type ParsedCar struct {
	MakeID      string             `json:"make_id"`
	Make        string             `json:"make"`
	ModelID     string             `json:"model_id"`
	Model       string             `json:"model"`
	ModelYear   string             `json:"model_year,omitempty"`
	Summary     string             `json:"summary,omitempty"`
	ImagePath   string             `json:"image_path,omitempty"`
	Generations []ParsedGeneration `json:"generations"`
}

// ParsedConfiguration is one configuration row of an engine code.
type ParsedConfiguration struct {
	Displacement string                 `json:"displacement"`
	Power        string                 `json:"power"`
	Torque       string                 `json:"torque"`
	Years        string                 `json:"years"`
	YearRange    bmwcode.ModelYearRange `json:"year_range"`
}

// ParsedEngineCode is one unique code of an engine class.
type ParsedEngineCode struct {
	Code           string                `json:"code"`
	Family         string                `json:"family,omitempty"`
	Valid          bool                  `json:"valid"`
	Decoded        string                `json:"decoded,omitempty"`
	Configurations []ParsedConfiguration `json:"configurations"`
}

type ParsedEngineClass struct {
	Model        string             `json:"model"`
	FuelType     string             `json:"fuel_type,omitempty"`
	Summary      string             `json:"summary,omitempty"`
	Notes        string             `json:"notes,omitempty"`
	ImagePath    string             `json:"image_path,omitempty"`
	WikipediaURL string             `json:"wikipedia_url,omitempty"`
	Engines      []ParsedEngineCode `json:"engines"`
}

// CarResult summarises a stored car payload.
type CarResult struct {
	Make        string `json:"make"`
	Model       string `json:"model"`
	Generations int    `json:"generations_processed"`
	Engines     int    `json:"engines_linked"`
}

// EngineResult summarises a stored engine payload.
type EngineResult struct {
	Model          string `json:"model"`
	Engines        int    `json:"engines_processed"`
	Configurations int    `json:"configurations"`
}
