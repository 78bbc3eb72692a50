package imageutil

import (
	"image"
	"math"
	"path/filepath"
	"testing"

	"github.com/procscene/procscene/render"
)

func TestColorsToImage(t *testing.T) {
	a := &render.Array{
		Name: render.OutputColors, DType: render.Uint8,
		Shape: []int{2, 2, 3},
		Data: []uint8{
			255, 0, 0, 0, 255, 0,
			0, 0, 255, 10, 20, 30,
		},
	}
	img, err := ColorsToImage(a)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.Bounds(); got != image.Rect(0, 0, 2, 2) {
		t.Fatalf("bounds: got %v", got)
	}
	r, g, b, alpha := img.At(1, 0).RGBA()
	if r>>8 != 0 || g>>8 != 255 || b>>8 != 0 || alpha>>8 != 255 {
		t.Errorf("pixel (1,0): got %d %d %d %d", r>>8, g>>8, b>>8, alpha>>8)
	}

	bad := &render.Array{Name: "x", DType: render.Uint8, Shape: []int{2, 2}, Data: make([]uint8, 4)}
	if _, err := ColorsToImage(bad); err == nil {
		t.Error("2d array accepted as colors")
	}
}

func TestDepthRoundTrip(t *testing.T) {
	const scale = 0.1
	a := &render.Array{
		Name: render.OutputDepth, DType: render.Float32,
		Shape: []int{2, 3},
		Data:  []float32{0, 0.5, 1.25, 6.5535, 100, 1e9},
	}
	img, err := DepthToGray16(a, scale)
	if err != nil {
		t.Fatal(err)
	}

	// millimeter units: 1.25m at scale 0.1 is pixel value 12500
	if got := img.Gray16At(2, 0).Y; got != 12500 {
		t.Errorf("1.25m encoded as %d, want 12500", got)
	}

	decoded, w, h := Gray16ToDepth(img, scale)
	if w != 3 || h != 2 {
		t.Fatalf("decoded size: got %dx%d", w, h)
	}
	want := []float32{0, 0.5, 1.25, 6.5535, 6.5535, 6.5535} // uint16 caps at 6.5535m
	for i, v := range want {
		if math.Abs(float64(decoded[i]-v)) > 1e-4 {
			t.Errorf("pixel %d: got %v, want %v", i, decoded[i], v)
		}
	}

	if _, err := DepthToGray16(a, 0); err == nil {
		t.Error("zero scale accepted")
	}
}

func TestWriteReadPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	if err := WritePNG(path, img); err != nil {
		t.Fatal(err)
	}
	read, err := ReadPNG(path)
	if err != nil {
		t.Fatal(err)
	}
	if read.Bounds() != img.Bounds() {
		t.Errorf("bounds changed: %v", read.Bounds())
	}
}
