package sampler

import (
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/procscene/procscene/scene"
	"github.com/procscene/procscene/utils"
)

func unitBoxEntity(name string) *scene.Entity {
	mesh := &scene.Mesh{
		Name: name,
		Positions: []mgl64.Vec3{
			{-0.5, -0.5, -0.5}, {0.5, -0.5, -0.5}, {0.5, 0.5, -0.5}, {-0.5, 0.5, -0.5},
			{-0.5, -0.5, 0.5}, {0.5, -0.5, 0.5}, {0.5, 0.5, 0.5}, {-0.5, 0.5, 0.5},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3, 4, 5, 6, 4, 6, 7},
	}
	return scene.NewEntity(name, mesh)
}

func TestPlaceEntitiesNoOverlap(t *testing.T) {
	s := New(11)
	entities := []*scene.Entity{unitBoxEntity("a"), unitBoxEntity("b"), unitBoxEntity("c")}

	err := PlaceEntities(s, entities, nil, PlacementOptions{
		Min:            mgl64.Vec3{-5, -5, 0},
		Max:            mgl64.Vec3{5, 5, 2},
		RandomRotation: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	for i, a := range entities {
		for _, b := range entities[i+1:] {
			aMin, aMax := a.WorldBounds()
			bMin, bMax := b.WorldBounds()
			if utils.AABBIntersect(aMin, aMax, bMin, bMax) {
				t.Errorf("%q and %q overlap", a.Name(), b.Name())
			}
		}
	}
}

func TestPlaceEntitiesImpossibleFails(t *testing.T) {
	s := New(11)
	// two unit cubes cannot both fit a point sized region
	entities := []*scene.Entity{unitBoxEntity("a"), unitBoxEntity("b")}
	err := PlaceEntities(s, entities, nil, PlacementOptions{
		Min:      mgl64.Vec3{0, 0, 0},
		Max:      mgl64.Vec3{0, 0, 0},
		MaxTries: 10,
	})
	if err == nil {
		t.Fatal("expected placement failure")
	}
	if !strings.Contains(err.Error(), "10 tries") {
		t.Errorf("error should report the budget: %v", err)
	}
}

func TestPlaceEntitiesRespectsObstacles(t *testing.T) {
	s := New(3)
	obstacle := unitBoxEntity("wall")
	obstacle.SetLocation(mgl64.Vec3{0, 0, 0})

	moved := unitBoxEntity("box")
	err := PlaceEntities(s, []*scene.Entity{moved}, []*scene.Entity{obstacle}, PlacementOptions{
		Min: mgl64.Vec3{-3, -3, -3},
		Max: mgl64.Vec3{3, 3, 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	oMin, oMax := obstacle.WorldBounds()
	mMin, mMax := moved.WorldBounds()
	if utils.AABBIntersect(mMin, mMax, oMin, oMax) {
		t.Error("placed entity overlaps obstacle")
	}
}

func TestPlaceEntitiesEmptyRegion(t *testing.T) {
	s := New(1)
	err := PlaceEntities(s, []*scene.Entity{unitBoxEntity("a")}, nil, PlacementOptions{
		Min: mgl64.Vec3{1, 0, 0},
		Max: mgl64.Vec3{-1, 0, 0},
	})
	if err == nil {
		t.Fatal("expected empty region error")
	}
}
