package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/bmwdex/bmwdex/pkg/repo"
)

// CatalogStore writes and reads catalog nodes. Every write is an idempotent
// MERGE so re-running a sync converges.
type CatalogStore struct {
	opener  repo.Opener
	engines *repo.Neo4jRepo[Engine, string]
	classes *repo.Neo4jRepo[EngineClass, string]
}

// New creates a store over a driver; database "" uses the server default.
func New(driver neo4j.DriverWithContext, database string) *CatalogStore {
	return NewWithOpener(repo.DriverOpener(driver, database))
}

// NewWithOpener creates a store with a custom session opener (for testing).
func NewWithOpener(opener repo.Opener) *CatalogStore {
	engines, err := repo.NewNeo4jRepo(opener, engineMapping)
	if err != nil {
		panic(err)
	}
	classes, err := repo.NewNeo4jRepo(opener, classMapping)
	if err != nil {
		panic(err)
	}
	return &CatalogStore{opener: opener, engines: engines, classes: classes}
}

func (s *CatalogStore) run(ctx context.Context, op, cypher string, params map[string]any) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)
	if _, err := sess.Run(ctx, cypher, params); err != nil {
		return fmt.Errorf("graph: %s: %w", op, err)
	}
	return nil
}

// SaveMake creates or updates a Make node.
func (s *CatalogStore) SaveMake(ctx context.Context, m Make) error {
	return s.run(ctx, "save make", `MERGE (n:Make {id: $id}) SET n.name = $name`, map[string]any{
		"id":   m.ID,
		"name": m.Name,
	})
}

// SaveCarModel creates or updates a CarModel node and links it to its Make.
func (s *CatalogStore) SaveCarModel(ctx context.Context, m CarModel) error {
	cypher := `MERGE (n:CarModel {id: $id})
	           SET n.name = $name, n.make_id = $makeID, n.model_year = $modelYear,
	               n.summary = $summary, n.image_path = $imagePath
	           WITH n
	           MATCH (mk:Make {id: $makeID})
	           MERGE (mk)-[:HAS_MODEL]->(n)`
	return s.run(ctx, "save car model", cypher, carModelParams(m))
}

func carModelParams(m CarModel) map[string]any {
	return map[string]any{
		"id":        m.ID,
		"name":      m.Name,
		"makeID":    m.MakeID,
		"modelYear": m.ModelYear,
		"summary":   m.Summary,
		"imagePath": m.ImagePath,
	}
}

// EnsureCarHierarchy writes Make and CarModel in one transaction.
func (s *CatalogStore) EnsureCarHierarchy(ctx context.Context, mk Make, m CarModel) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx repo.Runner) (any, error) {
		if _, err := tx.Run(ctx, `MERGE (mk:Make {id: $id}) SET mk.name = $name`,
			map[string]any{"id": mk.ID, "name": mk.Name}); err != nil {
			return nil, err
		}
		cypher := `MERGE (n:CarModel {id: $id})
		           SET n.name = $name, n.make_id = $makeID, n.model_year = $modelYear,
		               n.summary = $summary, n.image_path = $imagePath
		           WITH n
		           MATCH (mk:Make {id: $makeID})
		           MERGE (mk)-[:HAS_MODEL]->(n)`
		return tx.Run(ctx, cypher, carModelParams(m))
	})
	if err != nil {
		return fmt.Errorf("graph: car hierarchy %s: %w", m.ID, err)
	}
	return nil
}

// SaveGeneration creates or updates a Generation and links it to its CarModel.
func (s *CatalogStore) SaveGeneration(ctx context.Context, g Generation) error {
	cypher := `MERGE (n:Generation {id: $id})
	           SET n.name = $name, n.model_id = $modelID, n.start_year = $startYear,
	               n.end_year = $endYear, n.chassis_codes = $chassis,
	               n.summary = $summary, n.image_path = $imagePath
	           WITH n
	           MATCH (m:CarModel {id: $modelID})
	           MERGE (m)-[:HAS_GENERATION]->(n)`
	chassis := g.ChassisCodes
	if chassis == nil {
		chassis = []string{}
	}
	return s.run(ctx, "save generation", cypher, map[string]any{
		"id":        g.ID,
		"name":      g.Name,
		"modelID":   g.ModelID,
		"startYear": nullableInt(g.StartYear),
		"endYear":   nullableStr(g.EndYear),
		"chassis":   chassis,
		"summary":   g.Summary,
		"imagePath": g.ImagePath,
	})
}

// SaveEngineClass creates or updates an EngineClass keyed by model.
func (s *CatalogStore) SaveEngineClass(ctx context.Context, c EngineClass) error {
	return s.classes.Upsert(ctx, c)
}

// SaveEngine creates or updates an Engine and links it to its class when the
// class exists.
func (s *CatalogStore) SaveEngine(ctx context.Context, e Engine) error {
	cypher := `MERGE (n:Engine {code: $code}) SET n += $props
	           WITH n
	           OPTIONAL MATCH (c:EngineClass {model: $class})
	           FOREACH (_ IN CASE WHEN c IS NULL THEN [] ELSE [1] END |
	             MERGE (c)-[:HAS_ENGINE]->(n))`
	return s.run(ctx, "save engine", cypher, map[string]any{
		"code":  e.Code,
		"class": e.ClassModel,
		"props": engineProps(e),
	})
}

// SaveEngineConfiguration merges a configuration on its full key so
// duplicates collapse, and links it to its engine.
func (s *CatalogStore) SaveEngineConfiguration(ctx context.Context, c EngineConfiguration) error {
	cypher := `MATCH (e:Engine {code: $code})
	           MERGE (n:EngineConfiguration {engine_code: $code, displacement: $displacement,
	                                         power: $power, torque: $torque, years: $years})
	           SET n.start_year = $startYear, n.end_year = $endYear
	           MERGE (e)-[:HAS_CONFIGURATION]->(n)`
	return s.run(ctx, "save engine configuration", cypher, map[string]any{
		"code":         c.EngineCode,
		"displacement": c.Displacement,
		"power":        c.Power,
		"torque":       c.Torque,
		"years":        c.Years,
		"startYear":    nullableInt(c.StartYear),
		"endYear":      nullableStr(c.EndYear),
	})
}

// LinkGenerationEngine records that a generation ships an engine. The engine
// node is created when the engine sync has not seen it yet.
func (s *CatalogStore) LinkGenerationEngine(ctx context.Context, l GenerationEngine) error {
	cypher := `MATCH (g:Generation {id: $genID})
	           MERGE (e:Engine {code: $code})
	           ON CREATE SET e.family = $family, e.valid = $valid
	           MERGE (g)-[r:USES_ENGINE {label: $label}]->(e)
	           SET r.years = $years, r.power = $power, r.torque = $torque`
	return s.run(ctx, "link generation engine", cypher, map[string]any{
		"genID":  l.GenerationID,
		"code":   l.EngineCode,
		"family": l.Family,
		"valid":  l.Valid,
		"label":  l.Label,
		"years":  l.Years,
		"power":  l.Power,
		"torque": l.Torque,
	})
}
