package coco

import (
	"github.com/pkg/errors"
)

// RLE is the uncompressed run length encoding pycocotools uses: counts of
// alternating 0 and 1 runs, starting with zeros, in column-major order.
// Size is [height, width].
type RLE struct {
	Counts []int  `json:"counts"`
	Size   [2]int `json:"size"`
}

// EncodeMask turns a row-major binary mask (non-zero = foreground) into an
// RLE.
func EncodeMask(mask []uint8, width, height int) (RLE, error) {
	if len(mask) != width*height {
		return RLE{}, errors.Errorf("Mask has %d pixels for %dx%d", len(mask), width, height)
	}
	rle := RLE{Size: [2]int{height, width}}

	run := 0
	current := uint8(0)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			v := mask[y*width+x]
			if v != 0 {
				v = 1
			}
			if v == current {
				run++
				continue
			}
			rle.Counts = append(rle.Counts, run)
			current = v
			run = 1
		}
	}
	rle.Counts = append(rle.Counts, run)
	return rle, nil
}

// DecodeMask is the inverse of EncodeMask.
func DecodeMask(rle RLE) ([]uint8, error) {
	height, width := rle.Size[0], rle.Size[1]
	if height <= 0 || width <= 0 {
		return nil, errors.Errorf("Invalid RLE size %v", rle.Size)
	}
	total := 0
	for _, c := range rle.Counts {
		if c < 0 {
			return nil, errors.Errorf("Negative RLE count %d", c)
		}
		total += c
	}
	if total != width*height {
		return nil, errors.Errorf("RLE counts sum to %d, size wants %d", total, width*height)
	}

	mask := make([]uint8, width*height)
	pos := 0
	value := uint8(0)
	for _, count := range rle.Counts {
		for i := 0; i < count; i++ {
			x := pos / height
			y := pos % height
			mask[y*width+x] = value
			pos++
		}
		value = 1 - value
	}
	return mask, nil
}

// MaskBBox returns the tight [x, y, w, h] box of the foreground, all zero
// for an empty mask.
func MaskBBox(mask []uint8, width, height int) [4]float64 {
	minX, minY := width, height
	maxX, maxY := -1, -1
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if mask[y*width+x] == 0 {
				continue
			}
			if x < minX {
				minX = x
			}
			if y < minY {
				minY = y
			}
			if x > maxX {
				maxX = x
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < 0 {
		return [4]float64{}
	}
	return [4]float64{float64(minX), float64(minY), float64(maxX - minX + 1), float64(maxY - minY + 1)}
}

// MaskArea counts foreground pixels.
func MaskArea(mask []uint8) int {
	area := 0
	for _, v := range mask {
		if v != 0 {
			area++
		}
	}
	return area
}
