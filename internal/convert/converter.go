package convert

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/lehigh-university-libraries/labelme2coco/internal/coco"
	"github.com/lehigh-university-libraries/labelme2coco/internal/imagedata"
	"github.com/lehigh-university-libraries/labelme2coco/internal/labelme"
)

// ImageStore decodes an embedded image payload and persists it at path.
type ImageStore interface {
	Save(payload, path string) (imagedata.Size, error)
}

// Annotation is an annotation of a partial result. Its ID is provisional
// (1.. within one file) and CategoryID is local to the converter that
// produced it; Category carries the name the merger resolves ids from.
type Annotation struct {
	coco.Annotation
	Category string
}

// PartialResult is the conversion of a single source file.
type PartialResult struct {
	Source      string
	Image       coco.Image
	Annotations []Annotation
	// Categories first seen by the converter while processing this file.
	Categories []coco.Category
}

// Converter turns LabelMe files into partial results. It owns a category
// registry and must not be shared between goroutines; run one per worker.
type Converter struct {
	imageDir string
	images   ImageStore
	registry *Registry
}

// NewConverter creates a converter that writes images into imageDir.
func NewConverter(imageDir string, images ImageStore) *Converter {
	return &Converter{
		imageDir: imageDir,
		images:   images,
		registry: NewRegistry(),
	}
}

// ConvertFile loads and converts one file. Errors are *FileError.
func (c *Converter) ConvertFile(path string) (*PartialResult, error) {
	src, err := labelme.Load(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}

	partial, err := c.Convert(src)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	return partial, nil
}

// Convert converts an already loaded document.
func (c *Converter) Convert(src *labelme.File) (*PartialResult, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if src.ImageData == nil {
		return nil, fmt.Errorf("%w: embedded image payload is missing", ErrDecode)
	}

	fileName := imagedata.FileName(src.Path)
	size, err := c.images.Save(*src.ImageData, filepath.Join(c.imageDir, fileName))
	if err != nil {
		return nil, err
	}

	imageID := ImageID(src.Path)
	partial := &PartialResult{
		Source: src.Path,
		Image: coco.Image{
			ID:       imageID,
			Width:    size.Width,
			Height:   size.Height,
			FileName: fileName,
		},
		Annotations: make([]Annotation, 0, len(src.Shapes)),
	}

	for i := range src.Shapes {
		shape := &src.Shapes[i]

		categoryID, added := c.registry.resolve(shape.Label)
		if added {
			partial.Categories = append(partial.Categories, coco.Category{
				ID:            categoryID,
				Name:          shape.Label,
				Supercategory: coco.Supercategory,
			})
		}

		minX, minY, maxX, maxY := shape.Bounds()
		width, height := maxX-minX, maxY-minY

		partial.Annotations = append(partial.Annotations, Annotation{
			Annotation: coco.Annotation{
				ID:           i + 1,
				ImageID:      imageID,
				CategoryID:   categoryID,
				BBox:         [4]float64{minX, minY, width, height},
				Segmentation: [][]float64{shape.Flatten()},
				Area:         width * height,
				IsCrowd:      0,
			},
			Category: shape.Label,
		})
	}

	slog.Debug("Converted file", "path", src.Path, "image_id", imageID,
		"annotations", len(partial.Annotations), "new_categories", len(partial.Categories))

	return partial, nil
}
