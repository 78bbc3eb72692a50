// Package bop writes datasets in the layout 6D pose benchmarks consume:
// frames grouped into fixed size chunk directories, each holding rgb and
// 16 bit depth images next to per-chunk camera and ground truth json.
package bop

import (
	"encoding/json"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"

	"github.com/procscene/procscene/config"
	"github.com/procscene/procscene/output"
	"github.com/procscene/procscene/render"
	"github.com/procscene/procscene/scene"
	"github.com/procscene/procscene/utils"
	"github.com/procscene/procscene/writer/imageutil"
)

const (
	splitName   = "train_pbr"
	rgbSubdir   = "rgb"
	depthSubdir = "depth"
	cameraName  = "scene_camera.json"
	gtName      = "scene_gt.json"
)

// CameraInfo is one frame's entry in scene_camera.json. CamK is row-major.
type CameraInfo struct {
	CamK       []float64 `json:"cam_K"`
	DepthScale float64   `json:"depth_scale"`
}

// GTEntry is one object pose in scene_gt.json. The transform maps model
// space to camera space in the computer vision convention, translation in
// millimeters.
type GTEntry struct {
	CamRm2c []float64 `json:"cam_R_m2c"`
	CamTm2c []float64 `json:"cam_t_m2c"`
	ObjID   int       `json:"obj_id"`
}

type Options struct {
	Dir     string
	Dataset string
	// Append continues the last partially filled chunk instead of failing
	// on an existing dataset.
	Append     bool
	ChunkSize  int     // 0 means the configured default
	DepthScale float64 // 0 means the configured default
}

// Write appends the batch to <dir>/<dataset>/train_pbr. Only entities
// carrying a bop_id custom property end up in the ground truth.
func Write(sc *scene.Scene, batch *render.Batch, opts Options) error {
	if opts.Dir == "" || opts.Dataset == "" {
		return errors.Errorf("Bop writer needs both an output dir and a dataset name")
	}
	chunkSize := opts.ChunkSize
	if chunkSize == 0 {
		chunkSize = config.ChunkSize()
	}
	depthScale := opts.DepthScale
	if depthScale == 0 {
		depthScale = config.DepthScale()
	}

	splitDir := filepath.Join(opts.Dir, opts.Dataset, splitName)
	chunkIndex, used := 0, 0
	if opts.Append {
		var err error
		chunkIndex, used, err = output.NextChunkState(splitDir, rgbSubdir, chunkSize)
		if err != nil {
			return err
		}
	} else if _, err := os.Stat(splitDir); err == nil {
		return errors.Errorf("Dataset split %q already exists (enable append to extend)", splitDir)
	}

	chunk, err := openChunk(splitDir, chunkIndex, used)
	if err != nil {
		return err
	}

	camK := utils.RowMajor(sc.Camera().K())
	frames := 0
	for _, frame := range batch.Frames {
		if chunk.used >= chunkSize {
			if err := chunk.flush(); err != nil {
				return err
			}
			chunk, err = openChunk(splitDir, chunk.index+1, 0)
			if err != nil {
				return err
			}
		}
		if err := writeFrame(chunk, sc, frame, camK, depthScale); err != nil {
			return err
		}
		frames++
	}
	if err := chunk.flush(); err != nil {
		return err
	}
	log.Printf("[bop] Wrote %d frames to %q, last chunk %06d", frames, splitDir, chunk.index)
	return nil
}

func writeFrame(c *chunkState, sc *scene.Scene, frame *render.Frame, camK []float64, depthScale float64) error {
	colors, err := frame.Get(render.OutputColors)
	if err != nil {
		return err
	}
	depth, err := frame.Get(render.OutputDepth)
	if err != nil {
		return errors.Wrapf(err, "Bop writer needs the depth output")
	}

	img, err := imageutil.ColorsToImage(colors)
	if err != nil {
		return err
	}
	if err := imageutil.WritePNG(output.FramePath(filepath.Join(c.dir, rgbSubdir), c.used, ".png"), img); err != nil {
		return err
	}
	depthImg, err := imageutil.DepthToGray16(depth, depthScale)
	if err != nil {
		return err
	}
	if err := imageutil.WritePNG(output.FramePath(filepath.Join(c.dir, depthSubdir), c.used, ".png"), depthImg); err != nil {
		return err
	}

	world2cv, err := sc.Camera().World2CV(frame.Index)
	if err != nil {
		return err
	}
	key := strconv.Itoa(c.used)
	c.camera[key] = CameraInfo{CamK: camK, DepthScale: depthScale}

	var entries []GTEntry
	for _, e := range sc.Entities() {
		objID, err := e.IntProperty(scene.PropBopID)
		if err != nil {
			continue // not part of the benchmark
		}
		m2c := world2cv.Mul4(e.PoseAt(frame.Index))
		r, t := utils.DecomposeRT(m2c)
		entries = append(entries, GTEntry{
			CamRm2c: utils.RowMajor(r),
			CamTm2c: []float64{t.X() * 1000, t.Y() * 1000, t.Z() * 1000},
			ObjID:   objID,
		})
	}
	c.gt[key] = entries

	c.used++
	return nil
}

// chunkState is one chunk directory being appended to, with its json
// sidecars held in memory until flush.
type chunkState struct {
	dir    string
	index  int
	used   int
	camera map[string]CameraInfo
	gt     map[string][]GTEntry
}

func openChunk(splitDir string, index, used int) (*chunkState, error) {
	c := &chunkState{
		dir:    output.ChunkDir(splitDir, index),
		index:  index,
		used:   used,
		camera: make(map[string]CameraInfo),
		gt:     make(map[string][]GTEntry),
	}
	for _, sub := range []string{rgbSubdir, depthSubdir} {
		if err := output.EnsureDir(filepath.Join(c.dir, sub)); err != nil {
			return nil, err
		}
	}
	if used > 0 {
		// continuing a partial chunk, keep its recorded frames
		if err := loadJSON(filepath.Join(c.dir, cameraName), &c.camera); err != nil {
			return nil, err
		}
		if err := loadJSON(filepath.Join(c.dir, gtName), &c.gt); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *chunkState) flush() error {
	if err := writeJSON(filepath.Join(c.dir, cameraName), c.camera); err != nil {
		return err
	}
	return writeJSON(filepath.Join(c.dir, gtName), c.gt)
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "Failed to marshal %q", path)
	}
	if err := ioutil.WriteFile(path, data, 0666); err != nil {
		return errors.Wrapf(err, "Failed to write %q", path)
	}
	return nil
}

func loadJSON(path string, v interface{}) error {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "Failed to read %q", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "Failed to parse %q", path)
	}
	return nil
}

// LoadSceneCamera reads a chunk's scene_camera.json, used by tests and the
// preview server.
func LoadSceneCamera(path string) (map[string]CameraInfo, error) {
	out := make(map[string]CameraInfo)
	if err := loadJSON(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadSceneGT reads a chunk's scene_gt.json.
func LoadSceneGT(path string) (map[string][]GTEntry, error) {
	out := make(map[string][]GTEntry)
	if err := loadJSON(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}
