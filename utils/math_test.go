package utils

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestLookAtAxes(t *testing.T) {
	eye := mgl64.Vec3{0, -2, 0}
	m := LookAt(eye, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 0, 1})

	// forward (-Z column) must point from eye to target
	fwd := mgl64.Vec3{-m.At(0, 2), -m.At(1, 2), -m.At(2, 2)}
	want := mgl64.Vec3{0, 1, 0}
	if fwd.Sub(want).Len() > 1e-9 {
		t.Errorf("forward: got %v, want %v", fwd, want)
	}

	pos := mgl64.Vec3{m.At(0, 3), m.At(1, 3), m.At(2, 3)}
	if pos.Sub(eye).Len() > 1e-9 {
		t.Errorf("position: got %v", pos)
	}

	// rotation block must be orthonormal
	r := m.Mat3()
	rt := r.Transpose()
	if !r.Mul3(rt).ApproxEqualThreshold(mgl64.Ident3(), 1e-9) {
		t.Errorf("rotation not orthonormal: %v", r)
	}
}

func TestProjectPointCenter(t *testing.T) {
	k := Intrinsics(500, 500, 320, 240)
	cam2world := CamToCV(LookAt(mgl64.Vec3{0, 0, 2}, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 1, 0}))
	world2cam := cam2world.Inv()

	u, v, depth, ok := ProjectPoint(k, world2cam, mgl64.Vec3{0, 0, 0})
	if !ok {
		t.Fatal("point in front of camera reported behind")
	}
	if math.Abs(u-320) > 1e-6 || math.Abs(v-240) > 1e-6 {
		t.Errorf("center projection: got (%v, %v)", u, v)
	}
	if math.Abs(depth-2) > 1e-9 {
		t.Errorf("depth: got %v", depth)
	}

	if _, _, _, ok := ProjectPoint(k, world2cam, mgl64.Vec3{0, 0, 5}); ok {
		t.Error("point behind camera reported visible")
	}
}

func TestRowMajorRoundTrip(t *testing.T) {
	r := mgl64.HomogRotate3DZ(0.7).Mat3()
	back := Mat3FromRowMajor(RowMajor(r))
	if !back.ApproxEqualThreshold(r, 1e-12) {
		t.Errorf("round trip mismatch: %v vs %v", back, r)
	}
	rm := RowMajor(r)
	if math.Abs(rm[1]-r.At(0, 1)) > 1e-12 {
		t.Errorf("layout is not row-major")
	}
}

func TestTransformAABB(t *testing.T) {
	m := mgl64.Translate3D(1, 2, 3)
	min, max := TransformAABB(m, mgl64.Vec3{-1, -1, -1}, mgl64.Vec3{1, 1, 1})
	if min.Sub(mgl64.Vec3{0, 1, 2}).Len() > 1e-9 || max.Sub(mgl64.Vec3{2, 3, 4}).Len() > 1e-9 {
		t.Errorf("translated bounds: %v %v", min, max)
	}

	// 90 degree rotation about Z of a non-cubic box swaps x/y extents
	rot := mgl64.HomogRotate3DZ(math.Pi / 2)
	min, max = TransformAABB(rot, mgl64.Vec3{-2, -1, 0}, mgl64.Vec3{2, 1, 1})
	if math.Abs(max.X()-1) > 1e-9 || math.Abs(max.Y()-2) > 1e-9 {
		t.Errorf("rotated bounds: %v %v", min, max)
	}
}

func TestAABBIntersect(t *testing.T) {
	a := [2]mgl64.Vec3{{0, 0, 0}, {1, 1, 1}}
	if !AABBIntersect(a[0], a[1], mgl64.Vec3{0.5, 0.5, 0.5}, mgl64.Vec3{2, 2, 2}) {
		t.Error("overlapping boxes reported disjoint")
	}
	if AABBIntersect(a[0], a[1], mgl64.Vec3{1.5, 0, 0}, mgl64.Vec3{2, 1, 1}) {
		t.Error("disjoint boxes reported overlapping")
	}
}
