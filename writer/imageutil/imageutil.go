// Package imageutil converts render arrays to Go images and handles the
// png files the annotation writers emit.
package imageutil

import (
	"image"
	"image/png"
	"os"

	"github.com/pkg/errors"

	"github.com/procscene/procscene/render"
)

// ColorsToImage converts a (h, w, 3) uint8 color array to an RGBA image.
func ColorsToImage(a *render.Array) (*image.RGBA, error) {
	data, err := a.Uint8s()
	if err != nil {
		return nil, err
	}
	if len(a.Shape) != 3 || a.Shape[2] != 3 {
		return nil, errors.Errorf("Array %q has shape %v, want (h, w, 3)", a.Name, a.Shape)
	}
	h, w := a.Shape[0], a.Shape[1]

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src := (y*w + x) * 3
			dst := img.PixOffset(x, y)
			img.Pix[dst+0] = data[src+0]
			img.Pix[dst+1] = data[src+1]
			img.Pix[dst+2] = data[src+2]
			img.Pix[dst+3] = 255
		}
	}
	return img, nil
}

// DepthToGray16 converts a (h, w) float32 depth map (in meters) to the
// 16 bit png encoding pose benchmarks use: value = depth in millimeters
// divided by scale, saturating at the uint16 range. Zero stays zero
// (invalid depth).
func DepthToGray16(a *render.Array, scale float64) (*image.Gray16, error) {
	data, err := a.Float32s()
	if err != nil {
		return nil, err
	}
	if len(a.Shape) != 2 {
		return nil, errors.Errorf("Array %q has shape %v, want (h, w)", a.Name, a.Shape)
	}
	if scale <= 0 {
		return nil, errors.Errorf("Invalid depth scale %v", scale)
	}
	h, w := a.Shape[0], a.Shape[1]

	img := image.NewGray16(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := float64(data[y*w+x]) * 1000 / scale
			if v < 0 {
				v = 0
			}
			if v > 65535 {
				v = 65535
			}
			encoded := uint16(v + 0.5)
			dst := img.PixOffset(x, y)
			img.Pix[dst+0] = uint8(encoded >> 8)
			img.Pix[dst+1] = uint8(encoded)
		}
	}
	return img, nil
}

// Gray16ToDepth is the inverse of DepthToGray16, used by tests and the
// preview server.
func Gray16ToDepth(img *image.Gray16, scale float64) ([]float32, int, int) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src := img.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
			encoded := uint16(img.Pix[src])<<8 | uint16(img.Pix[src+1])
			out[y*w+x] = float32(float64(encoded) * scale / 1000)
		}
	}
	return out, w, h
}

func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Failed to create %q", path)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return errors.Wrapf(err, "Failed to encode %q", path)
	}
	return nil
}

func ReadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open %q", path)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to decode %q", path)
	}
	return img, nil
}
