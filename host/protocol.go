package host

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/procscene/procscene/render"
	"github.com/procscene/procscene/scene"
)

// Wire types for the remote host protocol. Matrices travel as row-major
// flat arrays; meshes travel as asset paths because the host loads the
// same files itself.

type wireScene struct {
	Name        string       `json:"name"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	CamK        []float64    `json:"cam_K"`
	CameraPoses [][]float64  `json:"camera_poses"`
	Entities    []wireEntity `json:"entities"`
	Lights      []wireLight  `json:"lights"`
}

type wireEntity struct {
	Name      string                 `json:"name"`
	Source    string                 `json:"source"`
	MeshName  string                 `json:"mesh_name"`
	Transform []float64              `json:"transform"`
	Props     map[string]interface{} `json:"custom_properties,omitempty"`
}

type wireLight struct {
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Energy    float64   `json:"energy"`
	Color     []float64 `json:"color"`
	Transform []float64 `json:"transform"`
}

type wireSettleRequest struct {
	MaxSimSeconds  float64 `json:"max_sim_seconds"`
	CheckIntervals float64 `json:"check_intervals"`
	SubstepsPerSec int     `json:"substeps_per_sec"`
}

type wireSettleResponse struct {
	Transforms map[string][]float64 `json:"transforms"`
	Error      string               `json:"error,omitempty"`
}

type wireRenderRequest struct {
	FrameStart int      `json:"frame_start"`
	FrameEnd   int      `json:"frame_end"`
	Outputs    []string `json:"outputs"`
}

// wireArrayHeader precedes each binary array payload on the render socket.
// A non empty Error aborts the stream; Done marks the end.
type wireArrayHeader struct {
	Frame int          `json:"frame"`
	Name  string       `json:"name"`
	DType render.DType `json:"dtype"`
	Shape []int        `json:"shape"`
	Done  bool         `json:"done,omitempty"`
	Error string       `json:"error,omitempty"`
}

func mat4RowMajor(m mgl64.Mat4) []float64 {
	out := make([]float64, 16)
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			out[row*4+col] = m.At(row, col)
		}
	}
	return out
}

func mat4FromRowMajor(v []float64) mgl64.Mat4 {
	var m mgl64.Mat4
	if len(v) != 16 {
		return mgl64.Ident4()
	}
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			m.Set(row, col, v[row*4+col])
		}
	}
	return m
}

func sceneToWire(sc *scene.Scene) *wireScene {
	cam := sc.Camera()
	w, h := cam.Resolution()

	k := cam.K()
	camK := make([]float64, 9)
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			camK[row*3+col] = k.At(row, col)
		}
	}

	ws := &wireScene{
		Name:   sc.Name(),
		Width:  w,
		Height: h,
		CamK:   camK,
	}
	for frame := 0; frame < cam.PoseCount(); frame++ {
		pose, _ := cam.Pose(frame)
		ws.CameraPoses = append(ws.CameraPoses, mat4RowMajor(pose))
	}
	for _, e := range sc.Entities() {
		we := wireEntity{
			Name:      e.Name(),
			Source:    e.Mesh().Source,
			MeshName:  e.Mesh().Name,
			Transform: mat4RowMajor(e.Transform()),
			Props:     map[string]interface{}{},
		}
		for _, key := range []string{scene.PropCategoryID, scene.PropBopID, scene.PropPhysics, scene.PropMaterialName} {
			if v, ok := e.CustomProperty(key); ok {
				we.Props[key] = v
			}
		}
		ws.Entities = append(ws.Entities, we)
	}
	for _, l := range sc.Lights() {
		ws.Lights = append(ws.Lights, wireLight{
			Name:      l.Name,
			Kind:      string(l.Kind),
			Energy:    l.Energy,
			Color:     []float64{l.Color.X(), l.Color.Y(), l.Color.Z()},
			Transform: mat4RowMajor(l.Transform),
		})
	}
	return ws
}
