package scene

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// Mesh holds the geometry the pipeline itself needs: placement rejection,
// projection previews and the glb preview export. Full geometry, materials
// and textures stay inside the host application.
type Mesh struct {
	Name      string
	Source    string // asset file the mesh came from, forwarded to the host
	Positions []mgl64.Vec3
	Normals   []mgl64.Vec3
	Indices   []uint32

	boundsMin mgl64.Vec3
	boundsMax mgl64.Vec3
	hasBounds bool
}

func (m *Mesh) Validate() error {
	if len(m.Positions) == 0 {
		return errors.Errorf("Mesh %q has no vertices", m.Name)
	}
	if len(m.Indices)%3 != 0 {
		return errors.Errorf("Mesh %q index count %d is not triangles", m.Name, len(m.Indices))
	}
	for _, index := range m.Indices {
		if int(index) >= len(m.Positions) {
			return errors.Errorf("Mesh %q index %d out of range (%d vertices)", m.Name, index, len(m.Positions))
		}
	}
	if len(m.Normals) != 0 && len(m.Normals) != len(m.Positions) {
		return errors.Errorf("Mesh %q has %d normals for %d vertices", m.Name, len(m.Normals), len(m.Positions))
	}
	return nil
}

// Bounds returns the axis aligned bounds in mesh local space.
func (m *Mesh) Bounds() (min, max mgl64.Vec3) {
	if m.hasBounds {
		return m.boundsMin, m.boundsMax
	}
	for i, p := range m.Positions {
		if i == 0 {
			min, max = p, p
			continue
		}
		for axis := 0; axis < 3; axis++ {
			if p[axis] < min[axis] {
				min[axis] = p[axis]
			}
			if p[axis] > max[axis] {
				max[axis] = p[axis]
			}
		}
	}
	m.boundsMin, m.boundsMax, m.hasBounds = min, max, true
	return min, max
}

func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}
