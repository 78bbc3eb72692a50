package bop

import (
	"image"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/procscene/procscene/render"
	"github.com/procscene/procscene/scene"
	"github.com/procscene/procscene/writer/imageutil"
)

func testScene(t *testing.T, poses int) *scene.Scene {
	t.Helper()
	sc := scene.New("bop_test")

	mesh := &scene.Mesh{
		Name:      "block",
		Positions: []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Indices:   []uint32{0, 1, 2},
	}
	block := scene.NewEntity("block", mesh)
	block.SetCustomProperty(scene.PropBopID, 5)
	block.SetLocation(mgl64.Vec3{0, 0, -2})
	if err := sc.Add(block); err != nil {
		t.Fatal(err)
	}

	clutter := scene.NewEntity("clutter", mesh)
	if err := sc.Add(clutter); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < poses; i++ {
		sc.Camera().AddPose(mgl64.Ident4())
	}
	return sc
}

func testBatch(t *testing.T, frames int, depthValue float32) *render.Batch {
	t.Helper()
	const width, height = 2, 2

	batch := &render.Batch{}
	for i := 0; i < frames; i++ {
		depth := make([]float32, width*height)
		for p := range depth {
			depth[p] = depthValue
		}
		frame := render.NewFrame(i)
		if err := frame.Add(&render.Array{
			Name: render.OutputColors, DType: render.Uint8,
			Shape: []int{height, width, 3}, Data: make([]uint8, width*height*3),
		}); err != nil {
			t.Fatal(err)
		}
		if err := frame.Add(&render.Array{
			Name: render.OutputDepth, DType: render.Float32,
			Shape: []int{height, width}, Data: depth,
		}); err != nil {
			t.Fatal(err)
		}
		if err := batch.Append(frame); err != nil {
			t.Fatal(err)
		}
	}
	return batch
}

func TestWriteChunkLayout(t *testing.T) {
	dir := t.TempDir()
	sc := testScene(t, 3)
	opts := Options{Dir: dir, Dataset: "blocks", ChunkSize: 2, DepthScale: 0.1}

	if err := Write(sc, testBatch(t, 3, 1.25), opts); err != nil {
		t.Fatal(err)
	}

	splitDir := filepath.Join(dir, "blocks", splitName)
	for _, p := range []string{
		"000000/rgb/000000.png", "000000/rgb/000001.png",
		"000000/depth/000000.png", "000000/depth/000001.png",
		"000001/rgb/000000.png", "000001/depth/000000.png",
		"000000/scene_camera.json", "000001/scene_gt.json",
	} {
		if _, err := os.Stat(filepath.Join(splitDir, filepath.FromSlash(p))); err != nil {
			t.Errorf("missing %q: %v", p, err)
		}
	}
	if _, err := os.Stat(filepath.Join(splitDir, "000001", "rgb", "000001.png")); err == nil {
		t.Error("chunk 000001 holds more frames than it should")
	}

	camera, err := LoadSceneCamera(filepath.Join(splitDir, "000000", cameraName))
	if err != nil {
		t.Fatal(err)
	}
	if len(camera) != 2 {
		t.Fatalf("chunk 0 camera entries: got %d, want 2", len(camera))
	}
	info, ok := camera["1"]
	if !ok {
		t.Fatal("no camera entry for frame 1")
	}
	if info.DepthScale != 0.1 {
		t.Errorf("depth_scale: got %v", info.DepthScale)
	}
	if len(info.CamK) != 9 {
		t.Fatalf("cam_K has %d values", len(info.CamK))
	}
	k := sc.Camera().K()
	if info.CamK[0] != k.At(0, 0) || info.CamK[2] != k.At(0, 2) || info.CamK[5] != k.At(1, 2) {
		t.Errorf("cam_K is not row-major: %v", info.CamK)
	}
}

func TestWriteGroundTruthPoses(t *testing.T) {
	dir := t.TempDir()
	sc := testScene(t, 1)
	opts := Options{Dir: dir, Dataset: "blocks", ChunkSize: 10, DepthScale: 0.1}

	if err := Write(sc, testBatch(t, 1, 1.25), opts); err != nil {
		t.Fatal(err)
	}

	gtPath := filepath.Join(dir, "blocks", splitName, "000000", gtName)
	gt, err := LoadSceneGT(gtPath)
	if err != nil {
		t.Fatal(err)
	}
	entries := gt["0"]
	if len(entries) != 1 {
		t.Fatalf("gt entries: got %d, want 1 (only the bop_id entity)", len(entries))
	}
	e := entries[0]
	if e.ObjID != 5 {
		t.Errorf("obj_id: got %d, want 5", e.ObjID)
	}

	// identity cam2world: the cv convention flips Y and Z, so the entity
	// at (0, 0, -2) sits 2m in front of the camera, in millimeters
	wantT := []float64{0, 0, 2000}
	for i := range wantT {
		if math.Abs(e.CamTm2c[i]-wantT[i]) > 1e-6 {
			t.Errorf("cam_t_m2c: got %v, want %v", e.CamTm2c, wantT)
			break
		}
	}
	wantR := []float64{1, 0, 0, 0, -1, 0, 0, 0, -1}
	for i := range wantR {
		if math.Abs(e.CamRm2c[i]-wantR[i]) > 1e-6 {
			t.Errorf("cam_R_m2c: got %v, want %v", e.CamRm2c, wantR)
			break
		}
	}
}

func TestWriteDepthEncoding(t *testing.T) {
	dir := t.TempDir()
	sc := testScene(t, 1)
	opts := Options{Dir: dir, Dataset: "blocks", ChunkSize: 10, DepthScale: 0.1}

	if err := Write(sc, testBatch(t, 1, 1.25), opts); err != nil {
		t.Fatal(err)
	}

	img, err := imageutil.ReadPNG(filepath.Join(dir, "blocks", splitName, "000000", depthSubdir, "000000.png"))
	if err != nil {
		t.Fatal(err)
	}
	gray, ok := img.(*image.Gray16)
	if !ok {
		t.Fatalf("depth png decoded as %T, want Gray16", img)
	}
	depth, _, _ := imageutil.Gray16ToDepth(gray, 0.1)
	if math.Abs(float64(depth[0])-1.25) > 1e-4 {
		t.Errorf("depth value: got %v, want 1.25", depth[0])
	}
}

func TestWriteAppendContinuesChunk(t *testing.T) {
	dir := t.TempDir()
	sc := testScene(t, 1)
	opts := Options{Dir: dir, Dataset: "blocks", ChunkSize: 3, DepthScale: 0.1}

	if err := Write(sc, testBatch(t, 1, 1.0), opts); err != nil {
		t.Fatal(err)
	}
	opts.Append = true
	if err := Write(sc, testBatch(t, 1, 2.0), opts); err != nil {
		t.Fatal(err)
	}

	chunkDir := filepath.Join(dir, "blocks", splitName, "000000")
	camera, err := LoadSceneCamera(filepath.Join(chunkDir, cameraName))
	if err != nil {
		t.Fatal(err)
	}
	if len(camera) != 2 {
		t.Fatalf("camera entries after append: got %d, want 2", len(camera))
	}
	if _, ok := camera["0"]; !ok {
		t.Error("frame 0 entry lost on append")
	}
	if _, ok := camera["1"]; !ok {
		t.Error("appended frame not recorded")
	}
	if _, err := os.Stat(filepath.Join(chunkDir, rgbSubdir, "000001.png")); err != nil {
		t.Errorf("appended rgb frame missing: %v", err)
	}
}

func TestWriteRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	sc := testScene(t, 1)
	opts := Options{Dir: dir, Dataset: "blocks", ChunkSize: 3, DepthScale: 0.1}

	if err := Write(sc, testBatch(t, 1, 1.0), opts); err != nil {
		t.Fatal(err)
	}
	if err := Write(sc, testBatch(t, 1, 1.0), opts); err == nil {
		t.Error("second non-append write accepted")
	}
}

func TestWriteNeedsDepth(t *testing.T) {
	dir := t.TempDir()
	sc := testScene(t, 1)

	batch := &render.Batch{}
	frame := render.NewFrame(0)
	if err := frame.Add(&render.Array{
		Name: render.OutputColors, DType: render.Uint8,
		Shape: []int{2, 2, 3}, Data: make([]uint8, 12),
	}); err != nil {
		t.Fatal(err)
	}
	if err := batch.Append(frame); err != nil {
		t.Fatal(err)
	}

	opts := Options{Dir: dir, Dataset: "blocks", ChunkSize: 3, DepthScale: 0.1}
	if err := Write(sc, batch, opts); err == nil {
		t.Error("batch without depth accepted")
	}
}
