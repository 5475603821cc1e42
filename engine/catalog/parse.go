package catalog

import (
	"log/slog"
	"strings"

	"github.com/bmwdex/bmwdex/engine/domain"
	"github.com/bmwdex/bmwdex/engine/graph"
	"github.com/bmwdex/bmwdex/pkg/bmwcode"
	"github.com/bmwdex/bmwdex/pkg/fn"
)

type parser struct {
	log     *slog.Logger
	decode  bmwcode.DecodeOptions
	workers int
	m       counters
}

// car extracts chassis codes, years and engines for every generation.
// A generation without model_year falls back to the payload's.
func (p parser) car(c domain.CarPayload) ParsedCar {
	makeID := graph.MakeID(c.Make)
	modelID := graph.ModelID(c.Make, c.Model)
	out := ParsedCar{
		MakeID:      makeID,
		Make:        c.Make,
		ModelID:     modelID,
		Model:       c.Model,
		ModelYear:   c.ModelYear,
		Summary:     c.Summary,
		ImagePath:   c.ImagePath.URL(),
		Generations: make([]ParsedGeneration, 0, len(c.Data.Models)),
	}
	for _, g := range c.Data.Models {
		chassis := bmwcode.ExtractChassisCodes(g.Model)
		if len(chassis) == 0 {
			p.m.chassisWarnings.Inc()
			p.log.Warn("catalog: no chassis code in generation name", "model", c.Model, "generation", g.Model)
		}
		years := g.ModelYear
		if years == "" {
			years = c.ModelYear
		}
		out.Generations = append(out.Generations, ParsedGeneration{
			ID:           graph.GenerationID(modelID, g.Model),
			Name:         g.Model,
			ChassisCodes: chassis,
			Years:        bmwcode.ParseModelYear(years),
			Summary:      g.Summary,
			ImagePath:    g.ImagePath.URL(),
			Engines:      fn.ParMap(g.EngineDetails, p.workers, p.engineDetail),
		})
	}
	return out
}

func (p parser) engineDetail(d domain.EngineDetail) ParsedEngine {
	r := bmwcode.ExtractEngineCode(d.Engine)
	e := ParsedEngine{
		Label:  d.Model,
		Raw:    d.Engine,
		Code:   r.Code,
		Family: r.EngineFamily,
		Years:  d.Years,
		Power:  d.Power,
		Torque: d.Torque,
	}
	if !r.HasCode() && !r.HasFamily() {
		p.m.unparsed.Inc()
		p.log.Debug("catalog: no engine code", "engine", d.Engine, "label", d.Model)
		return e
	}
	e.MatchKind = bmwcode.MatchKind(d.Engine)
	if r.HasCode() && bmwcode.IsValidEngineCode(r.Code) {
		e.Valid = true
		e.Decoded = bmwcode.DecodeEngineCodeWith(r.Code, p.decode)
	}
	return e
}

// engineClass groups rows by trimmed engine code in first-seen order,
// skipping blank codes, and collapses identical configuration rows.
func (p parser) engineClass(e domain.EnginePayload) ParsedEngineClass {
	img := e.ImagePath.URL()
	out := ParsedEngineClass{
		Model:        e.Model,
		FuelType:     e.FuelType,
		Summary:      e.Summary,
		Notes:        string(e.Notes),
		ImagePath:    img,
		WikipediaURL: e.WikipediaURL,
	}
	rows := fn.Filter(e.Data, func(r domain.RawEngineData) bool {
		return strings.TrimSpace(r.EngineCode) != ""
	})
	groups := fn.GroupOrdered(rows, func(r domain.RawEngineData) string {
		return strings.TrimSpace(r.EngineCode)
	})
	out.Engines = make([]ParsedEngineCode, 0, len(groups))
	for _, g := range groups {
		code := ParsedEngineCode{
			Code:   g.Key,
			Family: bmwcode.ExtractEngineCode(g.Key).EngineFamily,
			Valid:  bmwcode.IsValidEngineCode(g.Key),
		}
		if code.Valid {
			code.Decoded = bmwcode.DecodeEngineCodeWith(g.Key, p.decode)
		}
		cfgs := fn.Map(g.Items, func(r domain.RawEngineData) ParsedConfiguration {
			return ParsedConfiguration{
				Displacement: strings.TrimSpace(r.Displacement),
				Power:        strings.TrimSpace(r.Power),
				Torque:       strings.TrimSpace(r.Torque),
				Years:        strings.TrimSpace(r.Years),
				YearRange:    bmwcode.ParseModelYear(r.Years),
			}
		})
		code.Configurations = fn.UniqueBy(cfgs, func(c ParsedConfiguration) [4]string {
			return [4]string{c.Displacement, c.Power, c.Torque, c.Years}
		})
		out.Engines = append(out.Engines, code)
	}
	return out
}
