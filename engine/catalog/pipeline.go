package catalog

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/bmwdex/bmwdex/engine/domain"
	"github.com/bmwdex/bmwdex/engine/graph"
	"github.com/bmwdex/bmwdex/pkg/fn"
)

// ValidateCar runs the domain validation gate.
var ValidateCar fn.Stage[domain.CarPayload, domain.CarPayload] = func(_ context.Context, p domain.CarPayload) fn.Result[domain.CarPayload] {
	if err := domain.ValidateCarPayload(p); err != nil {
		return fn.Err[domain.CarPayload](err)
	}
	return fn.Ok(p)
}

// ValidateEngine runs the domain validation gate.
var ValidateEngine fn.Stage[domain.EnginePayload, domain.EnginePayload] = func(_ context.Context, p domain.EnginePayload) fn.Result[domain.EnginePayload] {
	if err := domain.ValidateEnginePayload(p); err != nil {
		return fn.Err[domain.EnginePayload](err)
	}
	return fn.Ok(p)
}

func parseCar(p parser) fn.Stage[domain.CarPayload, ParsedCar] {
	return func(ctx context.Context, c domain.CarPayload) fn.Result[ParsedCar] {
		fn.Annotate(ctx, attribute.String("car.make", c.Make), attribute.String("car.model", c.Model))
		return fn.Ok(p.car(c))
	}
}

func parseEngine(p parser) fn.Stage[domain.EnginePayload, ParsedEngineClass] {
	return func(ctx context.Context, e domain.EnginePayload) fn.Result[ParsedEngineClass] {
		fn.Annotate(ctx, attribute.String("engine.class", e.Model))
		return fn.Ok(p.engineClass(e))
	}
}

// storeCar writes Make, CarModel, every Generation and its engine links.
func storeCar(sink Sink, m counters) fn.Stage[ParsedCar, CarResult] {
	return func(ctx context.Context, c ParsedCar) fn.Result[CarResult] {
		err := sink.EnsureCarHierarchy(ctx,
			graph.Make{ID: c.MakeID, Name: c.Make},
			graph.CarModel{
				ID:        c.ModelID,
				Name:      c.Model,
				MakeID:    c.MakeID,
				ModelYear: c.ModelYear,
				Summary:   c.Summary,
				ImagePath: c.ImagePath,
			})
		if err != nil {
			return fn.Err[CarResult](err)
		}

		res := CarResult{Make: c.Make, Model: c.Model}
		for _, g := range c.Generations {
			if err := sink.SaveGeneration(ctx, toGraphGeneration(c.ModelID, g)); err != nil {
				return fn.Err[CarResult](fmt.Errorf("generation %q: %w", g.Name, err))
			}
			m.generations.Inc()
			res.Generations++

			for _, e := range g.Engines {
				if e.Key() == "" {
					continue
				}
				link := graph.GenerationEngine{
					GenerationID: g.ID,
					EngineCode:   e.Key(),
					Family:       e.Family,
					Valid:        e.Valid,
					Label:        e.Label,
					Years:        e.Years,
					Power:        e.Power,
					Torque:       e.Torque,
				}
				if err := sink.LinkGenerationEngine(ctx, link); err != nil {
					return fn.Err[CarResult](fmt.Errorf("generation %q engine %s: %w", g.Name, e.Key(), err))
				}
				m.links.Inc()
				res.Engines++
			}
		}
		return fn.Ok(res)
	}
}

func toGraphGeneration(modelID string, g ParsedGeneration) graph.Generation {
	out := graph.Generation{
		ID:           g.ID,
		Name:         g.Name,
		ModelID:      modelID,
		ChassisCodes: g.ChassisCodes,
		Summary:      g.Summary,
		ImagePath:    g.ImagePath,
	}
	out.StartYear, out.EndYear = g.Years.StartYear, g.Years.EndYear
	return out
}

// storeEngine writes the EngineClass, each unique Engine and its
// configurations.
func storeEngine(sink Sink, m counters) fn.Stage[ParsedEngineClass, EngineResult] {
	return func(ctx context.Context, c ParsedEngineClass) fn.Result[EngineResult] {
		class := graph.EngineClass{
			Model:        c.Model,
			FuelType:     c.FuelType,
			Summary:      c.Summary,
			Notes:        c.Notes,
			ImagePath:    c.ImagePath,
			WikipediaURL: c.WikipediaURL,
		}
		if err := sink.SaveEngineClass(ctx, class); err != nil {
			return fn.Err[EngineResult](err)
		}

		res := EngineResult{Model: c.Model}
		for _, e := range c.Engines {
			engine := graph.Engine{
				Code:       e.Code,
				Family:     e.Family,
				ClassModel: c.Model,
				Valid:      e.Valid,
				Decoded:    e.Decoded,
				ImagePath:  c.ImagePath,
			}
			if err := sink.SaveEngine(ctx, engine); err != nil {
				return fn.Err[EngineResult](fmt.Errorf("engine %s: %w", e.Code, err))
			}
			m.engines.Inc()
			res.Engines++

			for _, cfg := range e.Configurations {
				if err := sink.SaveEngineConfiguration(ctx, toGraphConfiguration(e.Code, cfg)); err != nil {
					return fn.Err[EngineResult](fmt.Errorf("engine %s configuration: %w", e.Code, err))
				}
				m.configurations.Inc()
				res.Configurations++
			}
		}
		return fn.Ok(res)
	}
}

func toGraphConfiguration(code string, c ParsedConfiguration) graph.EngineConfiguration {
	out := graph.EngineConfiguration{
		EngineCode:   code,
		Displacement: c.Displacement,
		Power:        c.Power,
		Torque:       c.Torque,
		Years:        c.Years,
	}
	out.StartYear, out.EndYear = c.YearRange.StartYear, c.YearRange.EndYear
	return out
}

// Pipelines are the two composed payload pipelines.
type Pipelines struct {
	Cars    fn.Stage[domain.CarPayload, CarResult]
	Engines fn.Stage[domain.EnginePayload, EngineResult]
}

// NewPipelines wires Validate -> Parse -> Store for both payload kinds. Each
// stage is traced and logged; Store stages retry transient failures.
func NewPipelines(deps Deps) Pipelines {
	log := deps.logger()
	m := newCounters(deps.Metrics)
	p := parser{log: log, decode: deps.Decode, workers: deps.Workers, m: m}

	cars := fn.Then(
		fn.Logged("car.validate", log, ValidateCar),
		fn.Then(
			fn.Logged("car.parse", log, parseCar(p)),
			fn.Logged("car.store", log, fn.Retrying(deps.retry(), storeCar(deps.Sink, m))),
		),
	)
	engines := fn.Then(
		fn.Logged("engine.validate", log, ValidateEngine),
		fn.Then(
			fn.Logged("engine.parse", log, parseEngine(p)),
			fn.Logged("engine.store", log, fn.Retrying(deps.retry(), storeEngine(deps.Sink, m))),
		),
	)
	return Pipelines{Cars: cars, Engines: engines}
}
