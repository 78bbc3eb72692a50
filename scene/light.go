package scene

import "github.com/go-gl/mathgl/mgl64"

type LightKind string

const (
	LightPoint LightKind = "point"
	LightSun   LightKind = "sun"
	LightArea  LightKind = "area"
)

// Light is forwarded to the host verbatim; the pipeline only samples its
// pose and energy.
type Light struct {
	Name      string
	Kind      LightKind
	Energy    float64
	Color     mgl64.Vec3
	Transform mgl64.Mat4
}

func NewLight(name string, kind LightKind) *Light {
	return &Light{
		Name:      name,
		Kind:      kind,
		Energy:    1000,
		Color:     mgl64.Vec3{1, 1, 1},
		Transform: mgl64.Ident4(),
	}
}
