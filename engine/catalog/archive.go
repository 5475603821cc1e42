package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmwdex/bmwdex/engine/domain"
)

// Archive writes received payloads below a data directory in the layout
// SyncDir reads back: <dir>/<make>/cars/<model>.json and
// <dir>/bmw/engines/<model>.json.
type Archive struct {
	Dir string
}

// WriteCar stores a car payload and returns the written path. Names that
// cannot form a path below Dir fail with domain.ErrUnsafePath.
func (a Archive) WriteCar(p domain.CarPayload) (string, error) {
	rel, err := domain.CarFilePath(p)
	if err != nil {
		return "", fmt.Errorf("catalog: archive: %w", err)
	}
	return a.write(rel, p)
}

// WriteEngine stores an engine payload and returns the written path.
func (a Archive) WriteEngine(p domain.EnginePayload) (string, error) {
	rel, err := domain.EngineFilePath(p)
	if err != nil {
		return "", fmt.Errorf("catalog: archive: %w", err)
	}
	return a.write(rel, p)
}

func (a Archive) write(rel string, v any) (string, error) {
	path := filepath.Join(a.Dir, filepath.FromSlash(rel))
	if inside, err := filepath.Rel(a.Dir, path); err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("catalog: archive %q: %w", rel, domain.NewValidationError("path", rel, domain.ErrUnsafePath))
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("catalog: archive: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("catalog: archive encode: %w", err)
	}
	// Write then rename so a concurrent SyncDir never reads half a file.
	// Each writer gets its own temp file; the last rename wins.
	f, err := os.CreateTemp(dir, ".*.tmp")
	if err != nil {
		return "", fmt.Errorf("catalog: archive: %w", err)
	}
	tmp := f.Name()
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmp, 0o644)
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("catalog: archive: %w", err)
	}
	return path, nil
}
