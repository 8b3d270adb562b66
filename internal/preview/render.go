package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/labelme2coco/internal/coco"
	"github.com/llgcode/draw2d/draw2dimg"
)

// Suffix is appended to the image base name of each preview file.
const Suffix = "_preview.png"

var palette = []color.RGBA{
	{230, 25, 75, 255},
	{60, 180, 75, 255},
	{255, 225, 25, 255},
	{0, 130, 200, 255},
	{245, 130, 48, 255},
	{145, 30, 180, 255},
	{70, 240, 240, 255},
	{240, 50, 230, 255},
}

// CategoryColor is the outline color used for a category id.
func CategoryColor(categoryID int) color.RGBA {
	if categoryID < 1 {
		categoryID = 1
	}
	return palette[(categoryID-1)%len(palette)]
}

// Options control preview rendering.
type Options struct {
	LineWidth float64
	// DrawBoxes also outlines each annotation's bounding box.
	DrawBoxes bool
}

// DefaultOptions returns the options used by the preview command
func DefaultOptions() Options {
	return Options{LineWidth: 2, DrawBoxes: true}
}

// Render draws every image of the dataset found in imageDir with its
// annotations overlaid and writes the results into outDir. Images missing
// from imageDir are skipped. Returns the number of previews written.
func Render(ds *coco.Dataset, imageDir, outDir string, opts Options) (int, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create preview directory: %w", err)
	}

	byImage := ds.AnnotationsByImage()
	rendered := 0

	for _, img := range ds.Images {
		src := filepath.Join(imageDir, img.FileName)
		canvas, err := loadRGBA(src)
		if err != nil {
			if os.IsNotExist(err) {
				slog.Warn("Image not found, skipping preview", "path", src)
				continue
			}
			return rendered, err
		}

		DrawAnnotations(canvas, byImage[img.ID], opts)

		dst := filepath.Join(outDir, strings.TrimSuffix(img.FileName, filepath.Ext(img.FileName))+Suffix)
		if err := draw2dimg.SaveToPngFile(dst, canvas); err != nil {
			return rendered, fmt.Errorf("failed to save preview %s: %w", dst, err)
		}

		slog.Debug("Preview written", "path", dst, "annotations", len(byImage[img.ID]))
		rendered++
	}

	return rendered, nil
}

// DrawAnnotations outlines each annotation's polygon, and optionally its
// box, onto canvas.
func DrawAnnotations(canvas *image.RGBA, annotations []coco.Annotation, opts Options) {
	gc := draw2dimg.NewGraphicContext(canvas)
	gc.SetLineWidth(opts.LineWidth)

	for _, ann := range annotations {
		gc.SetStrokeColor(CategoryColor(ann.CategoryID))

		for _, poly := range ann.Segmentation {
			if len(poly) < 4 {
				continue
			}
			gc.MoveTo(poly[0], poly[1])
			for i := 2; i+1 < len(poly); i += 2 {
				gc.LineTo(poly[i], poly[i+1])
			}
			gc.Close()
			gc.Stroke()
		}

		if opts.DrawBoxes {
			x, y, w, h := ann.BBox[0], ann.BBox[1], ann.BBox[2], ann.BBox[3]
			gc.MoveTo(x, y)
			gc.LineTo(x+w, y)
			gc.LineTo(x+w, y+h)
			gc.LineTo(x, y+h)
			gc.Close()
			gc.Stroke()
		}
	}
}

func loadRGBA(path string) (*image.RGBA, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	draw.Draw(canvas, canvas.Bounds(), img, img.Bounds().Min, draw.Src)
	return canvas, nil
}
