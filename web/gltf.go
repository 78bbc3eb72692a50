package web

import (
	"io"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/procscene/procscene/scene"
)

// ExportGLB writes the scene's placeholder geometry as a binary gltf so
// the browser viewer can show the layout without asking the host.
func ExportGLB(w io.Writer, sc *scene.Scene) error {
	doc := gltf.NewDocument()

	for _, e := range sc.Entities() {
		mesh := e.Mesh()

		positions := make([][3]float32, len(mesh.Positions))
		for i, p := range mesh.Positions {
			positions[i] = [3]float32{float32(p.X()), float32(p.Y()), float32(p.Z())}
		}
		attributes := map[string]uint32{
			"POSITION": modeler.WritePosition(doc, positions),
		}
		if len(mesh.Normals) == len(mesh.Positions) {
			normals := make([][3]float32, len(mesh.Normals))
			for i, n := range mesh.Normals {
				normals[i] = [3]float32{float32(n.X()), float32(n.Y()), float32(n.Z())}
			}
			attributes["NORMAL"] = modeler.WriteNormal(doc, normals)
		}

		primitive := &gltf.Primitive{Attributes: attributes}
		if len(mesh.Indices) != 0 {
			primitive.Indices = gltf.Index(modeler.WriteIndices(doc, mesh.Indices))
		}
		doc.Meshes = append(doc.Meshes, &gltf.Mesh{
			Name:       mesh.Name,
			Primitives: []*gltf.Primitive{primitive},
		})

		q := mgl64.Mat4ToQuat(e.Transform())
		loc := e.Location()
		doc.Nodes = append(doc.Nodes, &gltf.Node{
			Name:        e.Name(),
			Mesh:        gltf.Index(uint32(len(doc.Meshes) - 1)),
			Translation: [3]float32{float32(loc.X()), float32(loc.Y()), float32(loc.Z())},
			Rotation:    [4]float32{float32(q.V[0]), float32(q.V[1]), float32(q.V[2]), float32(q.W)},
		})
	}

	for iNode := range doc.Nodes {
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(iNode))
	}

	encoder := gltf.NewEncoder(w)
	encoder.AsBinary = true
	return encoder.Encode(doc)
}
