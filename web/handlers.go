package web

import (
	"context"
	"image"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/procscene/procscene/config"
	"github.com/procscene/procscene/host"
	"github.com/procscene/procscene/render"
	"github.com/procscene/procscene/scene"
	"github.com/procscene/procscene/script"
	"github.com/procscene/procscene/status"
	"github.com/procscene/procscene/utils"
	"github.com/procscene/procscene/webutils"
	"github.com/procscene/procscene/writer/imageutil"
)

var logUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// HandlerLogStream attaches a websocket client to the status broadcast.
func HandlerLogStream(w http.ResponseWriter, r *http.Request) {
	conn, err := logUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	status.NewClient(conn)
}

type ajaxEntity struct {
	Name       string                 `json:"name"`
	InstanceID int                    `json:"instance_id"`
	Location   [3]float64             `json:"location"`
	Triangles  int                    `json:"triangles"`
	Source     string                 `json:"source"`
	Properties map[string]interface{} `json:"properties"`
}

type ajaxScene struct {
	Name       string       `json:"name"`
	Resolution [2]int       `json:"resolution"`
	Frames     int          `json:"frames"`
	Entities   []ajaxEntity `json:"entities"`
	Lights     int          `json:"lights"`
}

func sceneView(sc *scene.Scene) *ajaxScene {
	w, h := sc.Camera().Resolution()
	_, frames := sc.FrameRange()
	view := &ajaxScene{
		Name:       sc.Name(),
		Resolution: [2]int{w, h},
		Frames:     frames,
		Lights:     len(sc.Lights()),
	}
	for _, e := range sc.Entities() {
		loc := e.Location()
		props := make(map[string]interface{})
		for _, key := range []string{scene.PropCategoryID, scene.PropBopID, scene.PropPhysics, scene.PropMaterialName} {
			if v, ok := e.CustomProperty(key); ok {
				props[key] = v
			}
		}
		view.Entities = append(view.Entities, ajaxEntity{
			Name:       e.Name(),
			InstanceID: sc.InstanceID(e),
			Location:   [3]float64{loc.X(), loc.Y(), loc.Z()},
			Triangles:  e.Mesh().TriangleCount(),
			Source:     e.Mesh().Source,
			Properties: props,
		})
	}
	return view
}

func HandlerAjaxScene(w http.ResponseWriter, r *http.Request) {
	sc, _ := currentState()
	if sc == nil {
		webutils.WriteError(w, errors.Errorf("No scene has been run yet"))
		return
	}
	webutils.WriteJson(w, sceneView(sc))
}

func HandlerAjaxStatus(w http.ResponseWriter, r *http.Request) {
	sc, batch := currentState()
	status := struct {
		Running  bool   `json:"running"`
		Version  string `json:"version"`
		HasScene bool   `json:"has_scene"`
		Frames   int    `json:"frames"`
	}{
		Running:  isRunning(),
		Version:  config.Version,
		HasScene: sc != nil,
	}
	if batch != nil {
		status.Frames = batch.FrameCount()
	}
	webutils.WriteJson(w, status)
}

func HandlerDumpSceneJSON(w http.ResponseWriter, r *http.Request) {
	sc, _ := currentState()
	if sc == nil {
		webutils.WriteError(w, errors.Errorf("No scene has been run yet"))
		return
	}
	webutils.WriteJsonFile(w, sceneView(sc), sc.Name())
}

func HandlerDumpDebug(w http.ResponseWriter, r *http.Request) {
	sc, batch := currentState()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	utils.FDump(w, sc, batch)
}

func HandlerDumpSceneGLB(w http.ResponseWriter, r *http.Request) {
	sc, _ := currentState()
	if sc == nil {
		webutils.WriteError(w, errors.Errorf("No scene has been run yet"))
		return
	}
	webutils.WriteFileHeaders(w, sc.Name()+".glb")
	if err := ExportGLB(w, sc); err != nil {
		log.Printf("[web] Error exporting glb: %v", err)
	}
}

// HandlerPreviewFrame serves one output of one rendered frame as png.
func HandlerPreviewFrame(w http.ResponseWriter, r *http.Request) {
	_, batch := currentState()
	if batch == nil {
		webutils.WriteError(w, errors.Errorf("No frames have been rendered yet"))
		return
	}
	index, err := strconv.Atoi(mux.Vars(r)["frame"])
	if err != nil || index < 0 || index >= batch.FrameCount() {
		webutils.WriteError(w, errors.Errorf("Invalid frame %q", mux.Vars(r)["frame"]))
		return
	}
	a, err := batch.Frames[index].Get(mux.Vars(r)["output"])
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	img, err := previewImage(a)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	webutils.WritePng(w, img)
}

func previewImage(a *render.Array) (image.Image, error) {
	switch a.DType {
	case render.Uint8:
		return imageutil.ColorsToImage(a)
	case render.Float32:
		if len(a.Shape) != 2 {
			return nil, errors.Errorf("Output %q has no png preview", a.Name)
		}
		return imageutil.DepthToGray16(a, config.DepthScale())
	case render.Uint16:
		data, err := a.Uint16s()
		if err != nil {
			return nil, err
		}
		h, w := a.Shape[0], a.Shape[1]
		img := image.NewGray16(image.Rect(0, 0, w, h))
		for i, v := range data {
			// spread ids over the gray range so instances are tellable apart
			img.Pix[i*2] = uint8(v * 37)
			img.Pix[i*2+1] = uint8(v)
		}
		return img, nil
	}
	return nil, errors.Errorf("Output %q has no png preview", a.Name)
}

type runRequest struct {
	Script string   `json:"script"`
	Args   []string `json:"args"`
}

// HandlerRunScript runs a pipeline script posted as json. The run is
// synchronous; progress is streamed on /ws/log.
func HandlerRunScript(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := webutils.ReadJsonBody(r, &req); err != nil {
		webutils.WriteError(w, err)
		return
	}
	if req.Script == "" {
		webutils.WriteError(w, errors.Errorf("Empty script"))
		return
	}
	if !setRunning(true) {
		webutils.WriteError(w, errors.Errorf("A run is already in progress"))
		return
	}
	defer setRunning(false)

	engine := &recordingEngine{Engine: serverEngine()}
	defer engine.Close()

	status.Info("Run started")
	runner := script.NewRunner(r.Context(), engine, req.Args)
	if err := runner.RunSource(req.Script); err != nil {
		status.Error("Run failed: %v", err)
		webutils.WriteError(w, err)
		return
	}
	status.Progress(1, "Run finished")
	webutils.WriteJson(w, struct {
		OK bool `json:"ok"`
	}{OK: true})
}

// recordingEngine keeps the last scene and batch around for the preview
// endpoints.
type recordingEngine struct {
	host.Engine
}

func (e *recordingEngine) Initialize(ctx context.Context, sc *scene.Scene) error {
	if err := e.Engine.Initialize(ctx, sc); err != nil {
		return err
	}
	setLastScene(sc)
	return nil
}

func (e *recordingEngine) Render(ctx context.Context, req host.RenderRequest) (*render.Batch, error) {
	batch, err := e.Engine.Render(ctx, req)
	if err != nil {
		return nil, err
	}
	setLastBatch(batch)
	return batch, nil
}
