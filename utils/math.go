package utils

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Intrinsics builds a pinhole camera matrix from focal lengths and the
// principal point, both in pixels.
func Intrinsics(fx, fy, cx, cy float64) mgl64.Mat3 {
	return mgl64.Mat3{
		fx, 0, 0,
		0, fy, 0,
		cx, cy, 1,
	}
}

// IntrinsicsFromFOV derives the camera matrix from a horizontal field of
// view (radians) and the image resolution, principal point at the center.
func IntrinsicsFromFOV(fovX float64, width, height int) mgl64.Mat3 {
	fx := float64(width) / (2 * math.Tan(fovX/2))
	return Intrinsics(fx, fx, float64(width)/2, float64(height)/2)
}

// LookAt builds a cam2world matrix for a camera at eye looking towards
// target. The camera convention is +X right, +Y up, -Z forward.
func LookAt(eye, target, up mgl64.Vec3) mgl64.Mat4 {
	forward := target.Sub(eye)
	if forward.Len() == 0 {
		forward = mgl64.Vec3{0, 0, -1}
	}
	forward = forward.Normalize()

	right := forward.Cross(up)
	if right.Len() < 1e-9 {
		// looking straight along up, pick any perpendicular axis
		right = forward.Cross(mgl64.Vec3{1, 0, 0})
		if right.Len() < 1e-9 {
			right = forward.Cross(mgl64.Vec3{0, 1, 0})
		}
	}
	right = right.Normalize()
	camUp := right.Cross(forward)

	return mgl64.Mat4FromCols(
		right.Vec4(0),
		camUp.Vec4(0),
		forward.Mul(-1).Vec4(0),
		eye.Vec4(1),
	)
}

// CamToCV converts a cam2world matrix from the -Z forward convention used
// by the host to the computer vision convention (+Z forward, Y down) used
// by annotation formats. Rotation columns Y and Z flip sign.
func CamToCV(cam2world mgl64.Mat4) mgl64.Mat4 {
	out := cam2world
	for row := 0; row < 3; row++ {
		out.Set(row, 1, -cam2world.At(row, 1))
		out.Set(row, 2, -cam2world.At(row, 2))
	}
	return out
}

// DecomposeRT splits a rigid transform into its rotation block and
// translation column.
func DecomposeRT(m mgl64.Mat4) (r mgl64.Mat3, t mgl64.Vec3) {
	r = m.Mat3()
	t = mgl64.Vec3{m.At(0, 3), m.At(1, 3), m.At(2, 3)}
	return r, t
}

// RowMajor returns the rotation as a row-major 9 element slice, the layout
// annotation formats store matrices in. mgl matrices are column-major.
func RowMajor(r mgl64.Mat3) []float64 {
	out := make([]float64, 9)
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			out[row*3+col] = r.At(row, col)
		}
	}
	return out
}

// Mat3FromRowMajor is the inverse of RowMajor.
func Mat3FromRowMajor(v []float64) mgl64.Mat3 {
	var r mgl64.Mat3
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			r.Set(row, col, v[row*3+col])
		}
	}
	return r
}

// ProjectPoint projects a world point through K and a world2cam transform
// already in the computer vision convention. ok is false behind the camera.
func ProjectPoint(k mgl64.Mat3, world2cam mgl64.Mat4, p mgl64.Vec3) (u, v, depth float64, ok bool) {
	pc := world2cam.Mul4x1(p.Vec4(1))
	if pc.Z() <= 0 {
		return 0, 0, 0, false
	}
	u = k.At(0, 0)*pc.X()/pc.Z() + k.At(0, 2)
	v = k.At(1, 1)*pc.Y()/pc.Z() + k.At(1, 2)
	return u, v, pc.Z(), true
}

// TransformAABB maps an axis aligned box through a rigid transform and
// returns the axis aligned bounds of the result.
func TransformAABB(m mgl64.Mat4, min, max mgl64.Vec3) (outMin, outMax mgl64.Vec3) {
	first := true
	for i := 0; i < 8; i++ {
		corner := mgl64.Vec3{
			pick(i&1 == 0, min.X(), max.X()),
			pick(i&2 == 0, min.Y(), max.Y()),
			pick(i&4 == 0, min.Z(), max.Z()),
		}
		p := m.Mul4x1(corner.Vec4(1)).Vec3()
		if first {
			outMin, outMax = p, p
			first = false
			continue
		}
		outMin = mgl64.Vec3{math.Min(outMin.X(), p.X()), math.Min(outMin.Y(), p.Y()), math.Min(outMin.Z(), p.Z())}
		outMax = mgl64.Vec3{math.Max(outMax.X(), p.X()), math.Max(outMax.Y(), p.Y()), math.Max(outMax.Z(), p.Z())}
	}
	return outMin, outMax
}

func pick(cond bool, a, b float64) float64 {
	if cond {
		return a
	}
	return b
}

// AABBIntersect reports whether two axis aligned boxes overlap.
func AABBIntersect(aMin, aMax, bMin, bMax mgl64.Vec3) bool {
	for i := 0; i < 3; i++ {
		if aMax[i] < bMin[i] || bMax[i] < aMin[i] {
			return false
		}
	}
	return true
}
