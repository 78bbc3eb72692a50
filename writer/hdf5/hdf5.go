// Package hdf5 packs all outputs of a key frame into one .hdf5 container
// per frame, one dataset per output, named by frame index.
package hdf5

import (
	"log"
	"os"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/hdf5"

	"github.com/procscene/procscene/config"
	"github.com/procscene/procscene/output"
	"github.com/procscene/procscene/render"
)

const versionDataset = "version"

type Options struct {
	Dir string
	// Append numbers new containers after the existing ones instead of
	// failing on a non-empty directory.
	Append bool
}

// Write stores every frame of the batch as <dir>/<index %06d>.hdf5.
func Write(batch *render.Batch, opts Options) error {
	if opts.Dir == "" {
		return errors.Errorf("No output dir for hdf5 writer")
	}
	if err := output.EnsureDir(opts.Dir); err != nil {
		return err
	}
	next, err := output.NextFrameIndex(opts.Dir)
	if err != nil {
		return err
	}
	if next > 0 && !opts.Append {
		return errors.Errorf("Output dir %q already holds %d frames (enable append to extend)", opts.Dir, next)
	}

	for _, frame := range batch.Frames {
		path := output.FramePath(opts.Dir, next, ".hdf5")
		if err := writeFrame(path, frame); err != nil {
			os.Remove(path) // do not leave a half written container
			return err
		}
		next++
	}
	log.Printf("[hdf5] Wrote %d containers to %q", batch.FrameCount(), opts.Dir)
	return nil
}

func writeFrame(path string, frame *render.Frame) error {
	f, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		return errors.Wrapf(err, "Failed to create container %q", path)
	}
	defer f.Close()

	for _, name := range sortedNames(frame) {
		if err := writeArray(f, frame.Arrays[name]); err != nil {
			return errors.Wrapf(err, "Failed to store %q in %q", name, path)
		}
	}
	if err := writeVersion(f); err != nil {
		return errors.Wrapf(err, "Failed to stamp %q", path)
	}
	return nil
}

func writeArray(f *hdf5.File, a *render.Array) error {
	if err := a.Validate(); err != nil {
		return err
	}
	dims := make([]uint, len(a.Shape))
	for i, d := range a.Shape {
		dims[i] = uint(d)
	}
	space, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		return err
	}
	defer space.Close()

	dset, err := f.CreateDataset(a.Name, dtypeOf(a.DType), space)
	if err != nil {
		return err
	}
	defer dset.Close()

	switch data := a.Data.(type) {
	case []uint8:
		return dset.Write(&data)
	case []uint16:
		return dset.Write(&data)
	case []float32:
		return dset.Write(&data)
	default:
		return errors.Errorf("Unsupported data type %T", a.Data)
	}
}

func dtypeOf(t render.DType) *hdf5.Datatype {
	switch t {
	case render.Uint8:
		return hdf5.T_NATIVE_UINT8
	case render.Uint16:
		return hdf5.T_NATIVE_UINT16
	default:
		return hdf5.T_NATIVE_FLOAT
	}
}

func writeVersion(f *hdf5.File) error {
	space, err := hdf5.CreateSimpleDataspace([]uint{1}, nil)
	if err != nil {
		return err
	}
	defer space.Close()
	dset, err := f.CreateDataset(versionDataset, hdf5.T_GO_STRING, space)
	if err != nil {
		return err
	}
	defer dset.Close()
	version := config.Version
	return dset.Write(&version)
}

// ReadFrame loads a container back into a Frame, used by the round-trip
// tests and the preview server.
func ReadFrame(path string, index int) (*render.Frame, error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open container %q", path)
	}
	defer f.Close()

	frame := render.NewFrame(index)
	n, err := f.NumObjects()
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to list container %q", path)
	}
	for i := uint(0); i < n; i++ {
		name, err := f.ObjectNameByIndex(i)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to list container %q", path)
		}
		if name == versionDataset {
			continue
		}
		a, err := readArray(f, name)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to read %q from %q", name, path)
		}
		if err := frame.Add(a); err != nil {
			return nil, err
		}
	}
	return frame, nil
}

// ReadVersion returns the pipeline version a container was written by.
func ReadVersion(path string) (string, error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return "", errors.Wrapf(err, "Failed to open container %q", path)
	}
	defer f.Close()
	dset, err := f.OpenDataset(versionDataset)
	if err != nil {
		return "", errors.Wrapf(err, "Container %q carries no version", path)
	}
	defer dset.Close()
	var version string
	if err := dset.Read(&version); err != nil {
		return "", errors.Wrapf(err, "Failed to read version from %q", path)
	}
	return version, nil
}

func readArray(f *hdf5.File, name string) (*render.Array, error) {
	dset, err := f.OpenDataset(name)
	if err != nil {
		return nil, err
	}
	defer dset.Close()

	space := dset.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, err
	}
	shape := make([]int, len(dims))
	elements := 1
	for i, d := range dims {
		shape[i] = int(d)
		elements *= int(d)
	}

	a := &render.Array{Name: name, Shape: shape}
	dtype, err := dset.Datatype()
	if err != nil {
		return nil, err
	}
	defer dtype.Close()

	switch dtype.Size() {
	case 1:
		data := make([]uint8, elements)
		if err := dset.Read(&data); err != nil {
			return nil, err
		}
		a.DType, a.Data = render.Uint8, data
	case 2:
		data := make([]uint16, elements)
		if err := dset.Read(&data); err != nil {
			return nil, err
		}
		a.DType, a.Data = render.Uint16, data
	case 4:
		data := make([]float32, elements)
		if err := dset.Read(&data); err != nil {
			return nil, err
		}
		a.DType, a.Data = render.Float32, data
	default:
		return nil, errors.Errorf("Dataset %q has unsupported element size %d", name, dtype.Size())
	}
	return a, nil
}

func sortedNames(frame *render.Frame) []string {
	names := make([]string, 0, len(frame.Arrays))
	for name := range frame.Arrays {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
