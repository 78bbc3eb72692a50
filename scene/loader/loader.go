// Package loader reads mesh geometry from asset files into scene meshes.
// Formats register themselves by extension; the dispatch mirrors how the
// host application picks importers.
package loader

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/procscene/procscene/scene"
)

type LoadFunc func(path string) ([]*scene.Mesh, error)

var loaders = map[string]LoadFunc{}

func register(ext string, fn LoadFunc) {
	loaders[ext] = fn
}

// Load reads every mesh from the file, dispatching on the extension.
func Load(path string) ([]*scene.Mesh, error) {
	ext := strings.ToLower(filepath.Ext(path))
	fn, ok := loaders[ext]
	if !ok {
		return nil, errors.Errorf("Unsupported mesh format %q (supported: %s)", ext, strings.Join(Supported(), ", "))
	}
	meshes, err := fn(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to load %q", path)
	}
	if len(meshes) == 0 {
		return nil, errors.Errorf("No meshes in %q", path)
	}
	for _, m := range meshes {
		m.Source = path
		if err := m.Validate(); err != nil {
			return nil, errors.Wrapf(err, "Invalid mesh in %q", path)
		}
	}
	return meshes, nil
}

// LoadEntities wraps every mesh of the file into an entity named after it.
func LoadEntities(path string) ([]*scene.Entity, error) {
	meshes, err := Load(path)
	if err != nil {
		return nil, err
	}
	entities := make([]*scene.Entity, 0, len(meshes))
	for _, m := range meshes {
		entities = append(entities, scene.NewEntity(m.Name, m))
	}
	return entities, nil
}

func Supported() []string {
	exts := make([]string, 0, len(loaders))
	for ext := range loaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
