package loader

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"testing"
)

const testPLYAscii = `ply
format ascii 1.0
comment generated for tests
element vertex 4
property float x
property float y
property float z
property float nx
property float ny
property float nz
element face 2
property list uchar int vertex_indices
end_header
0 0 0 0 0 1
1 0 0 0 0 1
1 1 0 0 0 1
0 1 0 0 0 1
3 0 1 2
4 0 1 2 3
`

func TestParsePLYAscii(t *testing.T) {
	meshes, err := parsePLY(strings.NewReader(testPLYAscii), "obj_000001")
	if err != nil {
		t.Fatal(err)
	}
	m := meshes[0]
	if m.Name != "obj_000001" {
		t.Errorf("name: got %q", m.Name)
	}
	if len(m.Positions) != 4 || len(m.Normals) != 4 {
		t.Fatalf("vertices: got %d positions, %d normals", len(m.Positions), len(m.Normals))
	}
	// triangle + quad fan
	if m.TriangleCount() != 3 {
		t.Errorf("triangles: got %d, want 3", m.TriangleCount())
	}
	if err := m.Validate(); err != nil {
		t.Errorf("mesh invalid: %v", err)
	}
}

func TestParsePLYBinary(t *testing.T) {
	var body bytes.Buffer
	body.WriteString("ply\n")
	body.WriteString("format binary_little_endian 1.0\n")
	body.WriteString("element vertex 3\n")
	body.WriteString("property float x\nproperty float y\nproperty float z\n")
	body.WriteString("element face 1\n")
	body.WriteString("property list uchar uint vertex_indices\n")
	body.WriteString("end_header\n")

	for _, v := range [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 2.5, 0}} {
		for _, c := range v {
			binary.Write(&body, binary.LittleEndian, c)
		}
	}
	body.WriteByte(3)
	for _, index := range []uint32{0, 1, 2} {
		binary.Write(&body, binary.LittleEndian, index)
	}

	meshes, err := parsePLY(&body, "bin")
	if err != nil {
		t.Fatal(err)
	}
	m := meshes[0]
	if m.TriangleCount() != 1 {
		t.Fatalf("triangles: got %d", m.TriangleCount())
	}
	_, max := m.Bounds()
	if math.Abs(max.Y()-2.5) > 1e-6 {
		t.Errorf("bounds: %v", max)
	}
}

func TestParsePLYRejectsBigEndian(t *testing.T) {
	in := "ply\nformat binary_big_endian 1.0\nend_header\n"
	if _, err := parsePLY(strings.NewReader(in), "x"); err == nil {
		t.Fatal("expected unsupported format error")
	}
}
