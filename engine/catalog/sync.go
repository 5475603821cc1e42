package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmwdex/bmwdex/engine/domain"
)

// Kind names a payload kind and the directory its files live in.
type Kind string

const (
	KindCars    Kind = "cars"
	KindEngines Kind = "engines"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// FileResult reports one synced file.
type FileResult struct {
	File      string `json:"file"`
	Kind      Kind   `json:"kind"`
	Status    string `json:"status"`
	Make      string `json:"make,omitempty"`
	Model     string `json:"model,omitempty"`
	Processed int    `json:"processed"`
	Error     string `json:"error,omitempty"`
	// Hash is the ContentHash of the bytes that were synced, "" when the
	// file could not be read.
	Hash string `json:"hash,omitempty"`
}

// ContentHash is the hex sha256 of a payload file's content.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SyncOpts tunes SyncDir. The zero value syncs engines then cars.
type SyncOpts struct {
	Kinds []Kind
	// Skip, when set, is asked about every file before it is read.
	Skip func(path string) bool
	// OnResult, when set, sees every result as it is produced.
	OnResult func(FileResult)
}

// SyncDir runs every <dir>/<make>/<kind>/*.json file through its pipeline.
// Engines go first so generation links find the engines they point at.
// A failing file is reported in its FileResult; the error return is for
// ctx cancellation and unreadable directories only.
func SyncDir(ctx context.Context, dir string, p Pipelines, opts SyncOpts) ([]FileResult, error) {
	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = []Kind{KindEngines, KindCars}
	}
	var results []FileResult
	for _, kind := range kinds {
		files, err := filepath.Glob(filepath.Join(dir, "*", string(kind), "*.json"))
		if err != nil {
			return results, fmt.Errorf("catalog: list %s: %w", kind, err)
		}
		sort.Strings(files)
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			var r FileResult
			if opts.Skip != nil && opts.Skip(f) {
				r = FileResult{File: f, Kind: kind, Status: StatusSkipped}
			} else {
				r = SyncFile(ctx, f, kind, p)
			}
			if opts.OnResult != nil {
				opts.OnResult(r)
			}
			results = append(results, r)
		}
	}
	return results, nil
}

// SyncFile decodes one payload file of kind and runs its pipeline.
func SyncFile(ctx context.Context, path string, kind Kind, p Pipelines) FileResult {
	res := FileResult{File: path, Kind: kind}
	data, err := os.ReadFile(path)
	if err != nil {
		return res.failed(err)
	}
	res.Hash = ContentHash(data)
	switch kind {
	case KindCars:
		var c domain.CarPayload
		if err := json.Unmarshal(data, &c); err != nil {
			return res.failed(fmt.Errorf("decode: %w", err))
		}
		res.Make, res.Model = c.Make, c.Model
		out, err := p.Cars(ctx, c).Unwrap()
		if err != nil {
			return res.failed(err)
		}
		res.Processed = out.Generations
	case KindEngines:
		var e domain.EnginePayload
		if err := json.Unmarshal(data, &e); err != nil {
			return res.failed(fmt.Errorf("decode: %w", err))
		}
		res.Model = e.Model
		out, err := p.Engines(ctx, e).Unwrap()
		if err != nil {
			return res.failed(err)
		}
		res.Processed = out.Engines
	default:
		return res.failed(fmt.Errorf("unknown kind %q", kind))
	}
	res.Status = StatusSuccess
	return res
}

func (r FileResult) failed(err error) FileResult {
	r.Status = StatusError
	r.Error = err.Error()
	return r
}

// KindOf infers a file's kind from its parent directory.
func KindOf(path string) (Kind, bool) {
	switch k := Kind(filepath.Base(filepath.Dir(path))); k {
	case KindCars, KindEngines:
		return k, true
	}
	return "", false
}
