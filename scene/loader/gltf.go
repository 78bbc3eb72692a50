package loader

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/procscene/procscene/scene"
)

func init() {
	register(".gltf", loadGLTF)
	register(".glb", loadGLTF)
}

func loadGLTF(path string) ([]*scene.Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open gltf document")
	}

	meshes := make([]*scene.Mesh, 0, len(doc.Meshes))
	for iMesh, gltfMesh := range doc.Meshes {
		name := gltfMesh.Name
		if name == "" {
			name = fmt.Sprintf("mesh_%d", iMesh)
		}
		out := &scene.Mesh{Name: name}

		for iPrim, prim := range gltfMesh.Primitives {
			posAccessor, ok := prim.Attributes[gltf.POSITION]
			if !ok {
				return nil, errors.Errorf("Mesh %q primitive %d has no positions", name, iPrim)
			}

			base := uint32(len(out.Positions))

			positions, err := modeler.ReadPosition(doc, doc.Accessors[posAccessor], nil)
			if err != nil {
				return nil, errors.Wrapf(err, "Failed to read positions of %q", name)
			}
			for _, p := range positions {
				out.Positions = append(out.Positions, mgl64.Vec3{float64(p[0]), float64(p[1]), float64(p[2])})
			}

			if normAccessor, ok := prim.Attributes[gltf.NORMAL]; ok {
				normals, err := modeler.ReadNormal(doc, doc.Accessors[normAccessor], nil)
				if err != nil {
					return nil, errors.Wrapf(err, "Failed to read normals of %q", name)
				}
				for _, n := range normals {
					out.Normals = append(out.Normals, mgl64.Vec3{float64(n[0]), float64(n[1]), float64(n[2])})
				}
			}

			if prim.Indices != nil {
				indices, err := modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
				if err != nil {
					return nil, errors.Wrapf(err, "Failed to read indices of %q", name)
				}
				for _, index := range indices {
					out.Indices = append(out.Indices, base+index)
				}
			} else {
				// non-indexed primitive, triangles in vertex order
				for i := 0; i < len(positions); i++ {
					out.Indices = append(out.Indices, base+uint32(i))
				}
			}
		}
		meshes = append(meshes, out)
	}
	return meshes, nil
}
