// Package coco emits object detection annotations in the COCO schema:
// an images list, per-instance RLE masks and a category table, next to the
// rendered color images.
package coco

import (
	"encoding/json"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/procscene/procscene/output"
	"github.com/procscene/procscene/render"
	"github.com/procscene/procscene/scene"
	"github.com/procscene/procscene/writer/imageutil"
)

type Image struct {
	ID       int    `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type Category struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory"`
}

type Annotation struct {
	ID           int        `json:"id"`
	ImageID      int        `json:"image_id"`
	CategoryID   int        `json:"category_id"`
	IsCrowd      int        `json:"iscrowd"`
	Area         int        `json:"area"`
	BBox         [4]float64 `json:"bbox"`
	Segmentation RLE        `json:"segmentation"`
}

type Dataset struct {
	Images      []Image      `json:"images"`
	Annotations []Annotation `json:"annotations"`
	Categories  []Category   `json:"categories"`
}

type Options struct {
	Dir string
	// Append merges into an existing annotation file instead of failing.
	Append bool
}

const (
	annotationsName = "coco_annotations.json"
	imagesSubdir    = "images"
)

// Write emits the batch as COCO annotations plus color images under
// opts.Dir. Instances come from the instance segmentation output; only
// entities carrying a category_id custom property are annotated.
func Write(sc *scene.Scene, batch *render.Batch, opts Options) error {
	if opts.Dir == "" {
		return errors.Errorf("No output dir for coco writer")
	}
	imagesDir := filepath.Join(opts.Dir, imagesSubdir)
	if err := output.EnsureDir(imagesDir); err != nil {
		return err
	}

	dataset := &Dataset{}
	annotationsPath := filepath.Join(opts.Dir, annotationsName)
	if opts.Append {
		existing, err := Load(annotationsPath)
		if err == nil {
			dataset = existing
		} else if !os.IsNotExist(errors.Cause(err)) {
			return err
		}
	} else if _, err := os.Stat(annotationsPath); err == nil {
		return errors.Errorf("Annotation file %q already exists (enable append to merge)", annotationsPath)
	}

	if err := mergeCategories(dataset, sc); err != nil {
		return err
	}

	nextImageID := maxImageID(dataset) + 1
	nextAnnID := maxAnnotationID(dataset) + 1
	nextFrame, err := output.NextFrameIndex(imagesDir)
	if err != nil {
		return err
	}

	for _, frame := range batch.Frames {
		colors, err := frame.Get(render.OutputColors)
		if err != nil {
			return err
		}
		instSeg, err := frame.Get(render.OutputInstanceSeg)
		if err != nil {
			return errors.Wrapf(err, "Coco writer needs the instance segmentation output")
		}
		width, height := colors.Shape[1], colors.Shape[0]

		img, err := imageutil.ColorsToImage(colors)
		if err != nil {
			return err
		}
		fileName := output.FramePath(imagesSubdir, nextFrame, ".png")
		if err := imageutil.WritePNG(filepath.Join(opts.Dir, fileName), img); err != nil {
			return err
		}
		nextFrame++

		dataset.Images = append(dataset.Images, Image{
			ID:       nextImageID,
			FileName: filepath.ToSlash(fileName),
			Width:    width,
			Height:   height,
		})

		annotations, err := frameAnnotations(sc, instSeg, width, height, nextImageID, &nextAnnID)
		if err != nil {
			return err
		}
		dataset.Annotations = append(dataset.Annotations, annotations...)
		nextImageID++
	}

	data, err := json.MarshalIndent(dataset, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "Failed to marshal coco annotations")
	}
	if err := ioutil.WriteFile(annotationsPath, data, 0666); err != nil {
		return errors.Wrapf(err, "Failed to write %q", annotationsPath)
	}
	log.Printf("[coco] Wrote %d images, %d annotations to %q",
		len(dataset.Images), len(dataset.Annotations), opts.Dir)
	return nil
}

func frameAnnotations(sc *scene.Scene, instSeg *render.Array, width, height int, imageID int, nextAnnID *int) ([]Annotation, error) {
	seg, err := instSeg.Uint16s()
	if err != nil {
		return nil, err
	}

	var annotations []Annotation
	for _, e := range sc.Entities() {
		category, err := e.IntProperty(scene.PropCategoryID)
		if err != nil {
			continue // not annotated
		}
		instance := uint16(sc.InstanceID(e))

		mask := make([]uint8, width*height)
		found := false
		for i, v := range seg {
			if v == instance {
				mask[i] = 1
				found = true
			}
		}
		if !found {
			continue // not visible this frame
		}

		rle, err := EncodeMask(mask, width, height)
		if err != nil {
			return nil, err
		}
		annotations = append(annotations, Annotation{
			ID:           *nextAnnID,
			ImageID:      imageID,
			CategoryID:   category,
			Area:         MaskArea(mask),
			BBox:         MaskBBox(mask, width, height),
			Segmentation: rle,
		})
		*nextAnnID++
	}
	return annotations, nil
}

// mergeCategories adds the scene's categories to the dataset table. A name
// already present must keep its id; silently renumbering would corrupt
// every prior annotation.
func mergeCategories(dataset *Dataset, sc *scene.Scene) error {
	byID := make(map[int]string)
	byName := make(map[string]int)
	for _, c := range dataset.Categories {
		byID[c.ID] = c.Name
		byName[c.Name] = c.ID
	}

	for _, e := range sc.Entities() {
		id, err := e.IntProperty(scene.PropCategoryID)
		if err != nil {
			continue
		}
		name := categoryName(e, id)
		if existingID, ok := byName[name]; ok {
			if existingID != id {
				return errors.Errorf("Category %q already has id %d, entity %q wants %d",
					name, existingID, e.Name(), id)
			}
			continue
		}
		if existingName, ok := byID[id]; ok {
			if existingName != name {
				return errors.Errorf("Category id %d already named %q, entity %q wants %q",
					id, existingName, e.Name(), name)
			}
			continue
		}
		byID[id] = name
		byName[name] = id
		dataset.Categories = append(dataset.Categories, Category{ID: id, Name: name, Supercategory: "procscene"})
	}

	sort.Slice(dataset.Categories, func(i, j int) bool {
		return dataset.Categories[i].ID < dataset.Categories[j].ID
	})
	return nil
}

// categoryName prefers an explicit category name property, falling back to
// a synthetic one derived from the id.
func categoryName(e *scene.Entity, id int) string {
	if v, ok := e.CustomProperty("category_name"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return categoryFallbackName(id)
}

func categoryFallbackName(id int) string {
	return "category_" + strconv.Itoa(id)
}

// Load parses an annotation file back, used by append mode and by the
// round-trip tests.
func Load(path string) (*Dataset, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read %q", path)
	}
	dataset := &Dataset{}
	if err := json.Unmarshal(data, dataset); err != nil {
		return nil, errors.Wrapf(err, "Failed to parse %q", path)
	}
	return dataset, nil
}

func maxImageID(d *Dataset) int {
	max := 0
	for _, img := range d.Images {
		if img.ID > max {
			max = img.ID
		}
	}
	return max
}

func maxAnnotationID(d *Dataset) int {
	max := 0
	for _, a := range d.Annotations {
		if a.ID > max {
			max = a.ID
		}
	}
	return max
}
