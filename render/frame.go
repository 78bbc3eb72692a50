// Package render models rendered outputs as named n-dimensional arrays,
// the unit every writer consumes. The pixels themselves come from the host
// engine; this package only enforces shape and dtype discipline.
package render

import (
	"github.com/pkg/errors"
)

type DType string

const (
	Uint8   DType = "uint8"
	Uint16  DType = "uint16"
	Float32 DType = "float32"
)

// Standard output names shared between engines and writers.
const (
	OutputColors       = "colors"
	OutputDepth        = "depth"
	OutputDistance     = "distance"
	OutputNormals      = "normals"
	OutputInstanceSeg  = "instance_segmaps"
	OutputClassSeg     = "class_segmaps"
	OutputForwardFlow  = "forward_flow"
	OutputBackwardFlow = "backward_flow"
)

// Array is one named output of one frame. Data holds a flat slice of the
// dtype's Go type in row-major order.
type Array struct {
	Name  string
	DType DType
	Shape []int
	Data  interface{}
}

func (a *Array) Elements() int {
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

func (a *Array) Validate() error {
	if a.Name == "" {
		return errors.Errorf("Array without a name")
	}
	if len(a.Shape) == 0 {
		return errors.Errorf("Array %q has no shape", a.Name)
	}
	for _, d := range a.Shape {
		if d <= 0 {
			return errors.Errorf("Array %q has invalid shape %v", a.Name, a.Shape)
		}
	}
	want := a.Elements()
	var got int
	switch data := a.Data.(type) {
	case []uint8:
		got = len(data)
		if a.DType != Uint8 {
			return errors.Errorf("Array %q dtype %q does not match []uint8 data", a.Name, a.DType)
		}
	case []uint16:
		got = len(data)
		if a.DType != Uint16 {
			return errors.Errorf("Array %q dtype %q does not match []uint16 data", a.Name, a.DType)
		}
	case []float32:
		got = len(data)
		if a.DType != Float32 {
			return errors.Errorf("Array %q dtype %q does not match []float32 data", a.Name, a.DType)
		}
	default:
		return errors.Errorf("Array %q has unsupported data type %T", a.Name, a.Data)
	}
	if got != want {
		return errors.Errorf("Array %q has %d elements, shape %v wants %d", a.Name, got, a.Shape, want)
	}
	return nil
}

func (a *Array) Float32s() ([]float32, error) {
	data, ok := a.Data.([]float32)
	if !ok {
		return nil, errors.Errorf("Array %q is %q, not float32", a.Name, a.DType)
	}
	return data, nil
}

func (a *Array) Uint16s() ([]uint16, error) {
	data, ok := a.Data.([]uint16)
	if !ok {
		return nil, errors.Errorf("Array %q is %q, not uint16", a.Name, a.DType)
	}
	return data, nil
}

func (a *Array) Uint8s() ([]uint8, error) {
	data, ok := a.Data.([]uint8)
	if !ok {
		return nil, errors.Errorf("Array %q is %q, not uint8", a.Name, a.DType)
	}
	return data, nil
}

// Frame bundles the arrays of one key frame keyed by output name.
type Frame struct {
	Index  int
	Arrays map[string]*Array
}

func NewFrame(index int) *Frame {
	return &Frame{Index: index, Arrays: make(map[string]*Array)}
}

func (f *Frame) Add(a *Array) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if _, exists := f.Arrays[a.Name]; exists {
		return errors.Errorf("Frame %d already has output %q", f.Index, a.Name)
	}
	f.Arrays[a.Name] = a
	return nil
}

func (f *Frame) Get(name string) (*Array, error) {
	a, ok := f.Arrays[name]
	if !ok {
		return nil, errors.Errorf("Frame %d has no output %q", f.Index, name)
	}
	return a, nil
}

// Batch holds the frames of a run in key frame order. Every frame must
// carry the same output set; the writers rely on it.
type Batch struct {
	Frames []*Frame
}

func (b *Batch) Append(f *Frame) error {
	if len(b.Frames) != 0 {
		prev := b.Frames[len(b.Frames)-1]
		if len(prev.Arrays) != len(f.Arrays) {
			return errors.Errorf("Frame %d has %d outputs, previous had %d", f.Index, len(f.Arrays), len(prev.Arrays))
		}
		for name := range prev.Arrays {
			if _, ok := f.Arrays[name]; !ok {
				return errors.Errorf("Frame %d is missing output %q", f.Index, name)
			}
		}
	}
	b.Frames = append(b.Frames, f)
	return nil
}

func (b *Batch) FrameCount() int {
	return len(b.Frames)
}
