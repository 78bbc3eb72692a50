package scene

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/procscene/procscene/utils"
)

// Well known custom property keys consumed by the annotation writers.
const (
	PropCategoryID   = "category_id"
	PropBopID        = "bop_id"
	PropPhysics      = "physics"
	PropMaterialName = "material"
)

// Entity mirrors one host object handle: a mesh reference, a transform and
// the custom properties that annotation writers read back.
type Entity struct {
	name      string
	mesh      *Mesh
	transform mgl64.Mat4
	props     map[string]interface{}
	poseKeys  map[int]mgl64.Mat4
}

func NewEntity(name string, mesh *Mesh) *Entity {
	return &Entity{
		name:      name,
		mesh:      mesh,
		transform: mgl64.Ident4(),
		props:     make(map[string]interface{}),
		poseKeys:  make(map[int]mgl64.Mat4),
	}
}

func (e *Entity) Name() string { return e.name }
func (e *Entity) Mesh() *Mesh  { return e.mesh }

func (e *Entity) Transform() mgl64.Mat4 { return e.transform }

func (e *Entity) SetTransform(m mgl64.Mat4) { e.transform = m }

func (e *Entity) SetLocation(p mgl64.Vec3) {
	e.transform.SetCol(3, p.Vec4(1))
}

func (e *Entity) Location() mgl64.Vec3 {
	return mgl64.Vec3{e.transform.At(0, 3), e.transform.At(1, 3), e.transform.At(2, 3)}
}

// SetRotationEuler replaces the rotation block, XYZ order, radians.
// Location is preserved.
func (e *Entity) SetRotationEuler(x, y, z float64) {
	loc := e.Location()
	q := mgl64.AnglesToQuat(x, y, z, mgl64.XYZ)
	e.transform = q.Mat4()
	e.SetLocation(loc)
}

func (e *Entity) SetCustomProperty(key string, value interface{}) {
	e.props[key] = value
}

func (e *Entity) CustomProperty(key string) (interface{}, bool) {
	v, ok := e.props[key]
	return v, ok
}

// IntProperty fetches a custom property as int, tolerating the numeric
// types that yaml and lua hand over.
func (e *Entity) IntProperty(key string) (int, error) {
	v, ok := e.props[key]
	if !ok {
		return 0, errors.Errorf("Entity %q has no custom property %q", e.name, key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, errors.Errorf("Entity %q property %q is %T, not a number", e.name, key, v)
	}
}

// KeyPose records the current transform at the given key frame.
func (e *Entity) KeyPose(frame int) {
	e.poseKeys[frame] = e.transform
}

// PoseAt returns the keyed transform for a frame, falling back to the
// current transform for entities that are static over the run.
func (e *Entity) PoseAt(frame int) mgl64.Mat4 {
	if m, ok := e.poseKeys[frame]; ok {
		return m
	}
	return e.transform
}

// WorldBounds returns the axis aligned bounds of the mesh under the current
// transform.
func (e *Entity) WorldBounds() (min, max mgl64.Vec3) {
	localMin, localMax := e.mesh.Bounds()
	return utils.TransformAABB(e.transform, localMin, localMax)
}
