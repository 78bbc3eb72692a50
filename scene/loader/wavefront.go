package loader

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/procscene/procscene/config"
	"github.com/procscene/procscene/scene"
)

func init() {
	register(".obj", loadOBJ)
}

func loadOBJ(path string) ([]*scene.Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open obj file")
	}
	defer f.Close()
	return parseOBJ(f)
}

// objParser accumulates the global vertex/normal pools of the file while
// splitting faces into one mesh per o/g statement. Face corners reference
// the pools with their own index pairs, so corners are re-indexed per mesh.
type objParser struct {
	positions []mgl64.Vec3
	normals   []mgl64.Vec3

	meshes  []*scene.Mesh
	current *scene.Mesh
	corners map[[2]int]uint32
}

func parseOBJ(r io.Reader) ([]*scene.Mesh, error) {
	p := &objParser{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)

		var err error
		switch fields[0] {
		case "v":
			err = p.parseVec(fields[1:], &p.positions)
		case "vn":
			err = p.parseVec(fields[1:], &p.normals)
		case "f":
			err = p.parseFace(fields[1:])
		case "o", "g":
			name := ""
			if len(fields) > 1 {
				name = config.DecodeLegacyName([]byte(strings.Join(fields[1:], " ")))
			}
			p.startMesh(name)
		default:
			// vt, s, mtllib, usemtl and friends are host concerns
		}
		if err != nil {
			return nil, errors.Wrapf(err, "Line %d", lineNum)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "Failed to read obj stream")
	}

	out := make([]*scene.Mesh, 0, len(p.meshes))
	for _, m := range p.meshes {
		if len(m.Positions) == 0 {
			continue
		}
		// faces mixing corners with and without normals leave the normal
		// pool incomplete, drop it rather than emit a broken mesh
		if len(m.Normals) != len(m.Positions) {
			m.Normals = nil
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil, errors.Errorf("No geometry found")
	}
	return out, nil
}

func (p *objParser) startMesh(name string) {
	p.current = &scene.Mesh{Name: name}
	p.corners = make(map[[2]int]uint32)
	p.meshes = append(p.meshes, p.current)
}

func (p *objParser) parseVec(fields []string, dst *[]mgl64.Vec3) error {
	if len(fields) < 3 {
		return errors.Errorf("Expected 3 components, got %d", len(fields))
	}
	var v mgl64.Vec3
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return errors.Wrapf(err, "Bad float %q", fields[i])
		}
		v[i] = f
	}
	*dst = append(*dst, v)
	return nil
}

func (p *objParser) parseFace(fields []string) error {
	if len(fields) < 3 {
		return errors.Errorf("Face with %d corners", len(fields))
	}
	if p.current == nil {
		p.startMesh("")
	}

	corners := make([]uint32, len(fields))
	for i, field := range fields {
		index, err := p.corner(field)
		if err != nil {
			return err
		}
		corners[i] = index
	}

	// triangle fan for quads and ngons
	for i := 2; i < len(corners); i++ {
		p.current.Indices = append(p.current.Indices, corners[0], corners[i-1], corners[i])
	}
	return nil
}

// corner resolves a face corner spec (v, v/vt, v//vn, v/vt/vn) to a mesh
// local vertex index, deduplicating repeated (v, vn) pairs.
func (p *objParser) corner(spec string) (uint32, error) {
	parts := strings.Split(spec, "/")

	vi, err := p.resolveIndex(parts[0], len(p.positions))
	if err != nil {
		return 0, errors.Wrapf(err, "Bad vertex reference %q", spec)
	}

	ni := -1
	if len(parts) == 3 && parts[2] != "" {
		ni, err = p.resolveIndex(parts[2], len(p.normals))
		if err != nil {
			return 0, errors.Wrapf(err, "Bad normal reference %q", spec)
		}
	}

	key := [2]int{vi, ni}
	if index, ok := p.corners[key]; ok {
		return index, nil
	}

	index := uint32(len(p.current.Positions))
	p.current.Positions = append(p.current.Positions, p.positions[vi])
	if ni >= 0 {
		p.current.Normals = append(p.current.Normals, p.normals[ni])
	}
	p.corners[key] = index
	return index, nil
}

// resolveIndex turns a 1-based obj index (negative meaning relative to the
// end of the pool) into a 0-based pool index.
func (p *objParser) resolveIndex(field string, poolSize int) (int, error) {
	raw, err := strconv.Atoi(field)
	if err != nil {
		return 0, err
	}
	index := raw
	if index < 0 {
		index = poolSize + index
	} else {
		index--
	}
	if index < 0 || index >= poolSize {
		return 0, errors.Errorf("Index %d out of range (%d available)", raw, poolSize)
	}
	return index, nil
}
