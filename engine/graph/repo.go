package graph

import (
	"context"

	"github.com/bmwdex/bmwdex/pkg/repo"
)

var engineMapping = repo.Neo4jMapping[Engine, string]{
	Label:    "Engine",
	IDKey:    "code",
	ID:       func(e Engine) string { return e.Code },
	ToProps:  engineProps,
	FromNode: engineFromProps,
}

var classMapping = repo.Neo4jMapping[EngineClass, string]{
	Label: "EngineClass",
	IDKey: "model",
	ID:    func(c EngineClass) string { return c.Model },
	ToProps: func(c EngineClass) map[string]any {
		return map[string]any{
			"model":         c.Model,
			"fuel_type":     c.FuelType,
			"summary":       c.Summary,
			"notes":         c.Notes,
			"image_path":    c.ImagePath,
			"wikipedia_url": c.WikipediaURL,
		}
	},
	FromNode: func(p map[string]any) (EngineClass, error) {
		return EngineClass{
			Model:        repo.Str(p, "model"),
			FuelType:     repo.Str(p, "fuel_type"),
			Summary:      repo.Str(p, "summary"),
			Notes:        repo.Str(p, "notes"),
			ImagePath:    repo.Str(p, "image_path"),
			WikipediaURL: repo.Str(p, "wikipedia_url"),
		}, nil
	},
}

func engineProps(e Engine) map[string]any {
	return map[string]any{
		"code":        e.Code,
		"family":      e.Family,
		"class_model": e.ClassModel,
		"valid":       e.Valid,
		"decoded":     e.Decoded,
		"image_path":  e.ImagePath,
	}
}

func engineFromProps(p map[string]any) (Engine, error) {
	return Engine{
		Code:       repo.Str(p, "code"),
		Family:     repo.Str(p, "family"),
		ClassModel: repo.Str(p, "class_model"),
		Valid:      repo.Bool(p, "valid"),
		Decoded:    repo.Str(p, "decoded"),
		ImagePath:  repo.Str(p, "image_path"),
	}, nil
}

// GetEngine returns an engine by code; a miss wraps repo.ErrNotFound.
func (s *CatalogStore) GetEngine(ctx context.Context, code string) (Engine, error) {
	return s.engines.Get(ctx, code)
}

// ListEngines pages through engines ordered by code.
func (s *CatalogStore) ListEngines(ctx context.Context, opts repo.ListOpts) ([]Engine, error) {
	return s.engines.List(ctx, opts)
}

// GetEngineClass returns an engine class by model.
func (s *CatalogStore) GetEngineClass(ctx context.Context, model string) (EngineClass, error) {
	return s.classes.Get(ctx, model)
}

// ListEngineClasses pages through engine classes ordered by model.
func (s *CatalogStore) ListEngineClasses(ctx context.Context, opts repo.ListOpts) ([]EngineClass, error) {
	return s.classes.List(ctx, opts)
}
