package sampler

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestDeterminism(t *testing.T) {
	a := New(7)
	b := New(7)
	for i := 0; i < 100; i++ {
		pa := a.Shell(mgl64.Vec3{}, 0.5, 1.5)
		pb := b.Shell(mgl64.Vec3{}, 0.5, 1.5)
		if pa != pb {
			t.Fatalf("draw %d diverged: %v vs %v", i, pa, pb)
		}
	}
	if New(7).Float() == New(8).Float() {
		t.Error("different seeds produced identical first draw")
	}
}

func TestShellRadiusBounds(t *testing.T) {
	s := New(1)
	center := mgl64.Vec3{1, 2, 3}
	for i := 0; i < 1000; i++ {
		r := s.Shell(center, 0.5, 1.5).Sub(center).Len()
		if r < 0.5-1e-9 || r > 1.5+1e-9 {
			t.Fatalf("draw %d radius %v outside [0.5, 1.5]", i, r)
		}
	}
}

func TestOnSphereRadius(t *testing.T) {
	s := New(2)
	for i := 0; i < 100; i++ {
		r := s.OnSphere(mgl64.Vec3{}, 2).Len()
		if math.Abs(r-2) > 1e-9 {
			t.Fatalf("surface draw radius %v", r)
		}
	}
}

func TestUniformBoxBounds(t *testing.T) {
	s := New(3)
	min := mgl64.Vec3{-1, 0, 2}
	max := mgl64.Vec3{1, 0.5, 3}
	for i := 0; i < 500; i++ {
		p := s.UniformBox(min, max)
		for axis := 0; axis < 3; axis++ {
			if p[axis] < min[axis] || p[axis] > max[axis] {
				t.Fatalf("draw %v outside box", p)
			}
		}
	}
}

func TestRotationIsUnit(t *testing.T) {
	s := New(4)
	for i := 0; i < 100; i++ {
		q := s.Rotation()
		norm := math.Sqrt(q.W*q.W + q.V.Dot(q.V))
		if math.Abs(norm-1) > 1e-9 {
			t.Fatalf("non unit quaternion: %v", norm)
		}
	}
}

func TestOnDiskStaysInPlane(t *testing.T) {
	s := New(5)
	normal := mgl64.Vec3{0, 1, 0}
	center := mgl64.Vec3{0, 3, 0}
	for i := 0; i < 200; i++ {
		p := s.OnDisk(center, 2, normal)
		if math.Abs(p.Sub(center).Dot(normal)) > 1e-9 {
			t.Fatalf("draw %v left the disk plane", p)
		}
		if p.Sub(center).Len() > 2+1e-9 {
			t.Fatalf("draw %v outside disk radius", p)
		}
	}
}
