package sampler

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/procscene/procscene/scene"
	"github.com/procscene/procscene/utils"
)

// PlacementOptions bound the region objects are scattered in and how hard
// the rejection sampler tries before giving up.
type PlacementOptions struct {
	Min, Max       mgl64.Vec3
	MaxTries       int
	RandomRotation bool
}

const defaultMaxTries = 100

// PlaceEntities samples a pose for each entity so that no axis aligned
// bounds overlap, neither among the newly placed entities nor against the
// already placed obstacles. Running out of tries is an error; silently
// keeping an intersecting pose would poison every annotation downstream.
func PlaceEntities(s *Sampler, entities []*scene.Entity, obstacles []*scene.Entity, opts PlacementOptions) error {
	maxTries := opts.MaxTries
	if maxTries <= 0 {
		maxTries = defaultMaxTries
	}
	for i := 0; i < 3; i++ {
		if opts.Min[i] > opts.Max[i] {
			return errors.Errorf("Placement region is empty on axis %d (%v > %v)", i, opts.Min[i], opts.Max[i])
		}
	}

	placed := make([]*scene.Entity, 0, len(obstacles)+len(entities))
	placed = append(placed, obstacles...)

	for _, e := range entities {
		ok := false
		for try := 0; try < maxTries; try++ {
			if opts.RandomRotation {
				e.SetTransform(s.Rotation().Mat4())
			}
			e.SetLocation(s.UniformBox(opts.Min, opts.Max))

			if !intersectsAny(e, placed) {
				ok = true
				break
			}
		}
		if !ok {
			return errors.Errorf("Failed to place %q without intersections after %d tries", e.Name(), maxTries)
		}
		placed = append(placed, e)
	}
	return nil
}

func intersectsAny(e *scene.Entity, placed []*scene.Entity) bool {
	eMin, eMax := e.WorldBounds()
	for _, other := range placed {
		oMin, oMax := other.WorldBounds()
		if utils.AABBIntersect(eMin, eMax, oMin, oMax) {
			return true
		}
	}
	return false
}
