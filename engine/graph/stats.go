package graph

import (
	"context"
	"fmt"

	"github.com/bmwdex/bmwdex/pkg/repo"
)

// ClassSummary counts the engines and configurations of one engine class.
type ClassSummary struct {
	Model          string `json:"model"`
	FuelType       string `json:"fuel_type,omitempty"`
	Engines        int64  `json:"engines"`
	Configurations int64  `json:"configurations"`
}

// Counts returns node counts grouped by label.
func (s *CatalogStore) Counts(ctx context.Context) (map[string]int64, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n) RETURN labels(n)[0] AS type, count(*) AS count`
	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, fmt.Errorf("graph: counts: %w", err)
	}
	counts := make(map[string]int64)
	for result.Next(ctx) {
		rec := result.Record()
		typ, _ := rec.Get("type")
		cnt, _ := rec.Get("count")
		if t, ok := typ.(string); ok {
			if c, ok := cnt.(int64); ok {
				counts[t] = c
			}
		}
	}
	return counts, result.Err()
}

// ClassSummaries lists every engine class with its engine and configuration
// counts, ordered by model.
func (s *CatalogStore) ClassSummaries(ctx context.Context) ([]ClassSummary, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (c:EngineClass)
		OPTIONAL MATCH (c)-[:HAS_ENGINE]->(e:Engine)
		OPTIONAL MATCH (e)-[:HAS_CONFIGURATION]->(cfg:EngineConfiguration)
		RETURN c.model AS model, c.fuel_type AS fuel_type,
		       count(DISTINCT e) AS engines, count(DISTINCT cfg) AS configurations
		ORDER BY model`
	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, fmt.Errorf("graph: class summaries: %w", err)
	}
	var out []ClassSummary
	for result.Next(ctx) {
		rec := result.Record()
		m, _ := rec.Get("model")
		f, _ := rec.Get("fuel_type")
		e, _ := rec.Get("engines")
		c, _ := rec.Get("configurations")
		cs := ClassSummary{}
		cs.Model, _ = m.(string)
		cs.FuelType, _ = f.(string)
		cs.Engines, _ = e.(int64)
		cs.Configurations, _ = c.(int64)
		out = append(out, cs)
	}
	return out, result.Err()
}

// EngineConfigurations returns the configurations of one engine.
func (s *CatalogStore) EngineConfigurations(ctx context.Context, code string) ([]EngineConfiguration, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (:Engine {code: $code})-[:HAS_CONFIGURATION]->(n:EngineConfiguration)
		RETURN n ORDER BY n.years, n.power`
	result, err := sess.Run(ctx, cypher, map[string]any{"code": code})
	if err != nil {
		return nil, fmt.Errorf("graph: configurations %s: %w", code, err)
	}
	var out []EngineConfiguration
	for result.Next(ctx) {
		p, err := repo.NodeProps(result.Record(), "n")
		if err != nil {
			return nil, fmt.Errorf("graph: configurations %s: %w", code, err)
		}
		cfg := EngineConfiguration{
			EngineCode:   repo.Str(p, "engine_code"),
			Displacement: repo.Str(p, "displacement"),
			Power:        repo.Str(p, "power"),
			Torque:       repo.Str(p, "torque"),
			Years:        repo.Str(p, "years"),
		}
		if p["start_year"] != nil {
			y := repo.Int(p, "start_year")
			cfg.StartYear = &y
		}
		if e, ok := p["end_year"].(string); ok {
			cfg.EndYear = &e
		}
		out = append(out, cfg)
	}
	return out, result.Err()
}

// GenerationsWithEngine lists the generations that ship an engine code.
func (s *CatalogStore) GenerationsWithEngine(ctx context.Context, code string) ([]Generation, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:Generation)-[:USES_ENGINE]->(:Engine {code: $code})
		RETURN DISTINCT n ORDER BY n.start_year`
	result, err := sess.Run(ctx, cypher, map[string]any{"code": code})
	if err != nil {
		return nil, fmt.Errorf("graph: generations for %s: %w", code, err)
	}
	var out []Generation
	for result.Next(ctx) {
		p, err := repo.NodeProps(result.Record(), "n")
		if err != nil {
			return nil, fmt.Errorf("graph: generations for %s: %w", code, err)
		}
		g := Generation{
			ID:           repo.Str(p, "id"),
			Name:         repo.Str(p, "name"),
			ModelID:      repo.Str(p, "model_id"),
			ChassisCodes: repo.Strs(p, "chassis_codes"),
			Summary:      repo.Str(p, "summary"),
			ImagePath:    repo.Str(p, "image_path"),
		}
		if p["start_year"] != nil {
			y := repo.Int(p, "start_year")
			g.StartYear = &y
		}
		if e, ok := p["end_year"].(string); ok {
			g.EndYear = &e
		}
		out = append(out, g)
	}
	return out, result.Err()
}
