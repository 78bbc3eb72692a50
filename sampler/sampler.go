// Package sampler provides the random draws scene randomization is built
// from. All draws go through one seeded source so a run reproduces exactly.
package sampler

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/procscene/procscene/config"
	"github.com/procscene/procscene/utils"
)

type Sampler struct {
	rnd *rand.Rand
}

func New(seed int64) *Sampler {
	return &Sampler{rnd: rand.New(rand.NewSource(seed))}
}

// FromConfig seeds from the process wide run seed.
func FromConfig() *Sampler {
	return New(config.Seed())
}

func (s *Sampler) Float() float64 {
	return s.rnd.Float64()
}

func (s *Sampler) Range(min, max float64) float64 {
	return min + s.rnd.Float64()*(max-min)
}

func (s *Sampler) Intn(n int) int {
	return s.rnd.Intn(n)
}

// UniformBox draws a point uniformly from the axis aligned box [min, max].
func (s *Sampler) UniformBox(min, max mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{
		s.Range(min.X(), max.X()),
		s.Range(min.Y(), max.Y()),
		s.Range(min.Z(), max.Z()),
	}
}

// OnSphere draws a point uniformly on the sphere surface.
func (s *Sampler) OnSphere(center mgl64.Vec3, radius float64) mgl64.Vec3 {
	return center.Add(s.direction().Mul(radius))
}

// InSphere draws a point uniformly from the ball interior.
func (s *Sampler) InSphere(center mgl64.Vec3, radius float64) mgl64.Vec3 {
	r := radius * math.Cbrt(s.rnd.Float64())
	return center.Add(s.direction().Mul(r))
}

// Shell draws a point uniformly (by volume) from the spherical shell with
// radius in [rmin, rmax].
func (s *Sampler) Shell(center mgl64.Vec3, rmin, rmax float64) mgl64.Vec3 {
	u := s.rnd.Float64()
	r := math.Cbrt(u*(math.Pow(rmax, 3)-math.Pow(rmin, 3)) + math.Pow(rmin, 3))
	return center.Add(s.direction().Mul(r))
}

// OnDisk draws a point uniformly from a disk centered at center and
// perpendicular to normal.
func (s *Sampler) OnDisk(center mgl64.Vec3, radius float64, normal mgl64.Vec3) mgl64.Vec3 {
	r := radius * math.Sqrt(s.rnd.Float64())
	phi := s.Range(0, 2*math.Pi)
	p := mgl64.Vec3{r * math.Cos(phi), r * math.Sin(phi), 0}
	rot := mgl64.QuatBetweenVectors(mgl64.Vec3{0, 0, 1}, normal)
	return center.Add(rot.Rotate(p))
}

// Rotation draws a uniform random rotation (Shoemake's method).
func (s *Sampler) Rotation() mgl64.Quat {
	u1 := s.rnd.Float64()
	u2 := s.rnd.Float64()
	u3 := s.rnd.Float64()
	sq1 := math.Sqrt(1 - u1)
	sq2 := math.Sqrt(u1)
	return mgl64.Quat{
		W: sq2 * math.Cos(2*math.Pi*u3),
		V: mgl64.Vec3{
			sq1 * math.Sin(2*math.Pi*u2),
			sq1 * math.Cos(2*math.Pi*u2),
			sq2 * math.Sin(2*math.Pi*u3),
		},
	}
}

// LookAt builds a cam2world pose at eye facing target, z-up world.
func (s *Sampler) LookAt(eye, target mgl64.Vec3) mgl64.Mat4 {
	return utils.LookAt(eye, target, mgl64.Vec3{0, 0, 1})
}

// LookAtJittered perturbs the viewing direction by up to maxAngle radians,
// the usual trick to keep the object of interest off dead center.
func (s *Sampler) LookAtJittered(eye, target mgl64.Vec3, maxAngle float64) mgl64.Mat4 {
	dist := target.Sub(eye).Len()
	if dist == 0 || maxAngle <= 0 {
		return s.LookAt(eye, target)
	}
	offset := s.direction().Mul(dist * math.Tan(s.Range(0, maxAngle)))
	return s.LookAt(eye, target.Add(offset))
}

// direction draws a uniform unit vector.
func (s *Sampler) direction() mgl64.Vec3 {
	for {
		v := mgl64.Vec3{s.rnd.NormFloat64(), s.rnd.NormFloat64(), s.rnd.NormFloat64()}
		if l := v.Len(); l > 1e-12 {
			return v.Mul(1 / l)
		}
	}
}
