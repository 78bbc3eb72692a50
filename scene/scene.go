package scene

import (
	"github.com/pkg/errors"

	"github.com/procscene/procscene/config"
	"github.com/procscene/procscene/utils"
)

// Scene is the pipeline side mirror of the host scene graph. Entities keep
// their insertion order; instance ids are derived from it (background is 0,
// the first entity is 1) and stay stable for the whole run.
type Scene struct {
	name     string
	entities []*Entity
	byName   map[string]*Entity
	lights   []*Light
	camera   *Camera
	names    *utils.NameGenerator
}

func New(name string) *Scene {
	w, h := config.Resolution()
	names := utils.NewNameGenerator(config.Seed())
	if name == "" {
		name = names.Unique("scene")
	}
	return &Scene{
		name:   name,
		byName: make(map[string]*Entity),
		camera: NewCamera(w, h),
		names:  names,
	}
}

func (s *Scene) Name() string    { return s.name }
func (s *Scene) Camera() *Camera { return s.camera }

// Add inserts an entity. Entities without a name get a generated one;
// duplicate names get a numeric suffix so handles stay unambiguous.
func (s *Scene) Add(e *Entity) error {
	if e.mesh == nil {
		return errors.Errorf("Entity %q has no mesh", e.name)
	}
	if err := e.mesh.Validate(); err != nil {
		return errors.Wrapf(err, "Failed to add entity")
	}
	if e.name == "" {
		e.name = s.names.Unique("entity")
	} else {
		e.name = s.names.UniqueSuffixed(e.name)
	}
	s.byName[e.name] = e
	s.entities = append(s.entities, e)
	return nil
}

func (s *Scene) Entities() []*Entity { return s.entities }

func (s *Scene) Get(name string) (*Entity, error) {
	e, ok := s.byName[name]
	if !ok {
		return nil, errors.Errorf("No entity %q in scene %q", name, s.name)
	}
	return e, nil
}

// InstanceID returns the segmentation id of an entity, 0 meaning not part
// of this scene.
func (s *Scene) InstanceID(e *Entity) int {
	for i, candidate := range s.entities {
		if candidate == e {
			return i + 1
		}
	}
	return 0
}

func (s *Scene) AddLight(l *Light) {
	if l.Name == "" {
		l.Name = s.names.Unique("light")
	}
	s.lights = append(s.lights, l)
}

func (s *Scene) Lights() []*Light { return s.lights }

// FrameRange is [0, n): one frame per appended camera pose.
func (s *Scene) FrameRange() (start, end int) {
	return 0, s.camera.PoseCount()
}

// KeyAllPoses records every entity's current transform at the given frame,
// used before object transforms are re-sampled for the next frame.
func (s *Scene) KeyAllPoses(frame int) {
	for _, e := range s.entities {
		e.KeyPose(frame)
	}
}
