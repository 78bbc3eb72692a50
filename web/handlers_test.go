package web

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/mux"

	"github.com/procscene/procscene/host"
	"github.com/procscene/procscene/render"
	"github.com/procscene/procscene/scene"
)

func testScene(t *testing.T) *scene.Scene {
	t.Helper()
	sc := scene.New("web_test")
	mesh := &scene.Mesh{
		Name:      "tri",
		Positions: []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Normals:   []mgl64.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		Indices:   []uint32{0, 1, 2},
	}
	e := scene.NewEntity("tri", mesh)
	e.SetCustomProperty(scene.PropCategoryID, 2)
	if err := sc.Add(e); err != nil {
		t.Fatal(err)
	}
	sc.Camera().AddPose(mgl64.Ident4())
	return sc
}

func TestHandlerAjaxScene(t *testing.T) {
	setLastScene(testScene(t))

	rec := httptest.NewRecorder()
	HandlerAjaxScene(rec, httptest.NewRequest("GET", "/json/scene", nil))

	var view ajaxScene
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if view.Name != "web_test" || view.Frames != 1 {
		t.Errorf("unexpected view: %+v", view)
	}
	if len(view.Entities) != 1 || view.Entities[0].InstanceID != 1 {
		t.Errorf("unexpected entities: %+v", view.Entities)
	}
	if view.Entities[0].Properties[scene.PropCategoryID] == nil {
		t.Error("category property missing from view")
	}
}

func TestHandlerPreviewFrame(t *testing.T) {
	setLastScene(testScene(t))
	frame := render.NewFrame(0)
	if err := frame.Add(&render.Array{
		Name: render.OutputColors, DType: render.Uint8,
		Shape: []int{2, 2, 3}, Data: make([]uint8, 12),
	}); err != nil {
		t.Fatal(err)
	}
	batch := &render.Batch{}
	if err := batch.Append(frame); err != nil {
		t.Fatal(err)
	}
	setLastBatch(batch)

	r := mux.NewRouter()
	r.HandleFunc("/preview/{frame}/{output}", HandlerPreviewFrame)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/preview/0/colors", nil))
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type: %q, body %q", ct, rec.Body.String())
	}
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 2 {
		t.Errorf("preview size: %v", img.Bounds())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/preview/7/colors", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("out of range frame served: %d", rec.Code)
	}
}

func TestHandlerRunScript(t *testing.T) {
	serverEngine = func() host.Engine { return host.NewDryRun() }

	asset := filepath.Join(t.TempDir(), "tri.obj")
	obj := "o tri\nv 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"
	if err := os.WriteFile(asset, []byte(obj), 0666); err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(runRequest{
		Script: `
			local sc = proc.scene("run_test")
			sc:load(proc.args[1])
			sc:camera_pose{location = {0, -3, 1}, look_at = {0, 0, 0}}
			sc:render{outputs = {"depth"}}
		`,
		Args: []string{asset},
	})
	req := httptest.NewRequest("POST", "/run", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	HandlerRunScript(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("run failed: %s", rec.Body.String())
	}

	sc, batch := currentState()
	if sc == nil || sc.Name() != "run_test" {
		t.Error("scene not recorded")
	}
	if batch == nil || batch.FrameCount() != 1 {
		t.Error("batch not recorded")
	}
}

func TestHandlerRunScriptRejectsBadRequests(t *testing.T) {
	serverEngine = func() host.Engine { return host.NewDryRun() }

	rec := httptest.NewRecorder()
	HandlerRunScript(rec, httptest.NewRequest("GET", "/run", nil))
	if rec.Code == http.StatusOK {
		t.Error("GET accepted")
	}

	body, _ := json.Marshal(runRequest{Script: `error("nope")`})
	rec = httptest.NewRecorder()
	HandlerRunScript(rec, httptest.NewRequest("POST", "/run", bytes.NewReader(body)))
	if rec.Code == http.StatusOK {
		t.Error("failing script reported success")
	}
	if !strings.Contains(rec.Body.String(), "nope") {
		t.Errorf("script error lost: %s", rec.Body.String())
	}
}

func TestExportGLB(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportGLB(&buf, testScene(t)); err != nil {
		t.Fatal(err)
	}
	if buf.Len() < 12 || string(buf.Bytes()[:4]) != "glTF" {
		t.Errorf("not a binary gltf (%d bytes)", buf.Len())
	}
}

