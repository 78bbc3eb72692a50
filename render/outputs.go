package render

import (
	"github.com/pkg/errors"
)

// Outputs is the set of render passes requested from the host. Color is
// always rendered; everything else is opt-in per run.
type Outputs struct {
	Depth       bool
	Distance    bool
	Normals     bool
	InstanceSeg bool
	ClassSeg    bool
	ForwardFlow bool
}

// Names lists the output names the host must deliver per frame, in a fixed
// order so container datasets come out deterministic.
func (o Outputs) Names() []string {
	names := []string{OutputColors}
	if o.Depth {
		names = append(names, OutputDepth)
	}
	if o.Distance {
		names = append(names, OutputDistance)
	}
	if o.Normals {
		names = append(names, OutputNormals)
	}
	if o.InstanceSeg {
		names = append(names, OutputInstanceSeg)
	}
	if o.ClassSeg {
		names = append(names, OutputClassSeg)
	}
	if o.ForwardFlow {
		names = append(names, OutputForwardFlow)
	}
	return names
}

// Enable toggles an output by name, the form the scripting layer uses.
func (o *Outputs) Enable(name string) error {
	switch name {
	case OutputColors:
		// always on
	case OutputDepth:
		o.Depth = true
	case OutputDistance:
		o.Distance = true
	case OutputNormals:
		o.Normals = true
	case OutputInstanceSeg:
		o.InstanceSeg = true
	case OutputClassSeg:
		o.ClassSeg = true
	case OutputForwardFlow:
		o.ForwardFlow = true
	default:
		return errors.Errorf("Unknown render output %q", name)
	}
	return nil
}

// ExpectedShape returns shape and dtype of a standard output for a given
// resolution. Unknown names are an error so typos surface early.
func ExpectedShape(name string, width, height int) ([]int, DType, error) {
	switch name {
	case OutputColors:
		return []int{height, width, 3}, Uint8, nil
	case OutputDepth, OutputDistance:
		return []int{height, width}, Float32, nil
	case OutputNormals:
		return []int{height, width, 3}, Float32, nil
	case OutputInstanceSeg, OutputClassSeg:
		return []int{height, width}, Uint16, nil
	case OutputForwardFlow, OutputBackwardFlow:
		return []int{height, width, 2}, Float32, nil
	}
	return nil, "", errors.Errorf("Unknown render output %q", name)
}

// ValidateBatch checks every frame of a batch against the requested output
// set and resolution before anything is written to disk.
func ValidateBatch(b *Batch, o Outputs, width, height int) error {
	names := o.Names()
	for _, f := range b.Frames {
		for _, name := range names {
			a, err := f.Get(name)
			if err != nil {
				return err
			}
			shape, dtype, err := ExpectedShape(name, width, height)
			if err != nil {
				return err
			}
			if a.DType != dtype {
				return errors.Errorf("Frame %d output %q has dtype %q, want %q", f.Index, name, a.DType, dtype)
			}
			if len(a.Shape) != len(shape) {
				return errors.Errorf("Frame %d output %q has shape %v, want %v", f.Index, name, a.Shape, shape)
			}
			for i := range shape {
				if a.Shape[i] != shape[i] {
					return errors.Errorf("Frame %d output %q has shape %v, want %v", f.Index, name, a.Shape, shape)
				}
			}
		}
	}
	return nil
}
