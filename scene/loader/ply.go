package loader

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/procscene/procscene/scene"
)

func init() {
	register(".ply", loadPLY)
}

// Pose benchmark model sets ship as ply, ascii or binary little endian.
// Only the vertex and face elements are read; everything else is skipped.

type plyProperty struct {
	name      string
	typ       string
	list      bool
	countType string
}

type plyElement struct {
	name  string
	count int
	props []plyProperty
}

func loadPLY(path string) ([]*scene.Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open ply file")
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return parsePLY(f, name)
}

func parsePLY(r io.Reader, name string) ([]*scene.Mesh, error) {
	br := bufio.NewReader(r)

	format, elements, err := parsePLYHeader(br)
	if err != nil {
		return nil, err
	}

	mesh := &scene.Mesh{Name: name}
	for _, elem := range elements {
		switch elem.name {
		case "vertex":
			err = readPLYVertices(br, format, elem, mesh)
		case "face":
			err = readPLYFaces(br, format, elem, mesh)
		default:
			err = skipPLYElement(br, format, elem)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to read ply element %q", elem.name)
		}
	}
	return []*scene.Mesh{mesh}, nil
}

func parsePLYHeader(br *bufio.Reader) (format string, elements []plyElement, err error) {
	magic, err := readPLYLine(br)
	if err != nil || magic != "ply" {
		return "", nil, errors.Errorf("Not a ply file (%q)", magic)
	}

	for {
		line, err := readPLYLine(br)
		if err != nil {
			return "", nil, errors.Wrapf(err, "Truncated header")
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) < 2 {
				return "", nil, errors.Errorf("Bad format line %q", line)
			}
			format = fields[1]
			if format != "ascii" && format != "binary_little_endian" {
				return "", nil, errors.Errorf("Unsupported ply format %q", format)
			}
		case "element":
			if len(fields) != 3 {
				return "", nil, errors.Errorf("Bad element line %q", line)
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil || count < 0 {
				return "", nil, errors.Errorf("Bad element count %q", fields[2])
			}
			elements = append(elements, plyElement{name: fields[1], count: count})
		case "property":
			if len(elements) == 0 {
				return "", nil, errors.Errorf("Property before element: %q", line)
			}
			elem := &elements[len(elements)-1]
			if len(fields) >= 5 && fields[1] == "list" {
				elem.props = append(elem.props, plyProperty{
					name: fields[4], typ: fields[3], list: true, countType: fields[2],
				})
			} else if len(fields) >= 3 {
				elem.props = append(elem.props, plyProperty{name: fields[2], typ: fields[1]})
			} else {
				return "", nil, errors.Errorf("Bad property line %q", line)
			}
		case "comment", "obj_info":
		case "end_header":
			return format, elements, nil
		default:
			return "", nil, errors.Errorf("Unknown header keyword %q", fields[0])
		}
	}
}

func readPLYLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func plyTypeSize(typ string) (int, error) {
	switch typ {
	case "char", "uchar", "int8", "uint8":
		return 1, nil
	case "short", "ushort", "int16", "uint16":
		return 2, nil
	case "int", "uint", "int32", "uint32", "float", "float32":
		return 4, nil
	case "double", "float64":
		return 8, nil
	}
	return 0, errors.Errorf("Unknown ply type %q", typ)
}

func readPLYScalar(br *bufio.Reader, typ string) (float64, error) {
	size, err := plyTypeSize(typ)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(br, buf); err != nil {
		return 0, err
	}
	switch typ {
	case "char", "int8":
		return float64(int8(buf[0])), nil
	case "uchar", "uint8":
		return float64(buf[0]), nil
	case "short", "int16":
		return float64(int16(binary.LittleEndian.Uint16(buf))), nil
	case "ushort", "uint16":
		return float64(binary.LittleEndian.Uint16(buf)), nil
	case "int", "int32":
		return float64(int32(binary.LittleEndian.Uint32(buf))), nil
	case "uint", "uint32":
		return float64(binary.LittleEndian.Uint32(buf)), nil
	case "float", "float32":
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf))), nil
	default: // double, float64
		return math.Float64frombits(binary.LittleEndian.Uint64(buf)), nil
	}
}

// readPLYRow reads one element row as float64 values; list properties
// append their count followed by the items.
func readPLYRow(br *bufio.Reader, format string, elem plyElement) ([]float64, error) {
	if format == "ascii" {
		line, err := readPLYLine(br)
		if err != nil {
			return nil, err
		}
		fields := strings.Fields(line)
		out := make([]float64, len(fields))
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "Bad value %q", field)
			}
			out[i] = v
		}
		return out, nil
	}

	var out []float64
	for _, prop := range elem.props {
		if prop.list {
			count, err := readPLYScalar(br, prop.countType)
			if err != nil {
				return nil, err
			}
			out = append(out, count)
			for i := 0; i < int(count); i++ {
				v, err := readPLYScalar(br, prop.typ)
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
		} else {
			v, err := readPLYScalar(br, prop.typ)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	}
	return out, nil
}

func readPLYVertices(br *bufio.Reader, format string, elem plyElement, mesh *scene.Mesh) error {
	posIdx := [3]int{-1, -1, -1}
	normIdx := [3]int{-1, -1, -1}
	for i, prop := range elem.props {
		switch prop.name {
		case "x":
			posIdx[0] = i
		case "y":
			posIdx[1] = i
		case "z":
			posIdx[2] = i
		case "nx":
			normIdx[0] = i
		case "ny":
			normIdx[1] = i
		case "nz":
			normIdx[2] = i
		}
	}
	if posIdx[0] < 0 || posIdx[1] < 0 || posIdx[2] < 0 {
		return errors.Errorf("Vertex element without x/y/z properties")
	}
	hasNormals := normIdx[0] >= 0 && normIdx[1] >= 0 && normIdx[2] >= 0

	for i := 0; i < elem.count; i++ {
		row, err := readPLYRow(br, format, elem)
		if err != nil {
			return errors.Wrapf(err, "Vertex %d", i)
		}
		if len(row) < len(elem.props) {
			return errors.Errorf("Vertex %d has %d values for %d properties", i, len(row), len(elem.props))
		}
		mesh.Positions = append(mesh.Positions, mgl64.Vec3{row[posIdx[0]], row[posIdx[1]], row[posIdx[2]]})
		if hasNormals {
			mesh.Normals = append(mesh.Normals, mgl64.Vec3{row[normIdx[0]], row[normIdx[1]], row[normIdx[2]]})
		}
	}
	return nil
}

func readPLYFaces(br *bufio.Reader, format string, elem plyElement, mesh *scene.Mesh) error {
	for i := 0; i < elem.count; i++ {
		row, err := readPLYRow(br, format, elem)
		if err != nil {
			return errors.Wrapf(err, "Face %d", i)
		}
		if len(row) == 0 {
			return errors.Errorf("Empty face %d", i)
		}
		count := int(row[0])
		if len(row) < 1+count || count < 3 {
			return errors.Errorf("Face %d has %d corners", i, count)
		}
		for c := 2; c < count; c++ {
			mesh.Indices = append(mesh.Indices,
				uint32(row[1]), uint32(row[c]), uint32(row[c+1]))
		}
	}
	return nil
}

func skipPLYElement(br *bufio.Reader, format string, elem plyElement) error {
	for i := 0; i < elem.count; i++ {
		if _, err := readPLYRow(br, format, elem); err != nil {
			return err
		}
	}
	return nil
}
