package coco

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
)

// AnnotationRow is one annotation with its image and category resolved,
// the shape used for the flat parquet export.
type AnnotationRow struct {
	AnnotationID int       `parquet:"annotation_id"`
	ImageID      int64     `parquet:"image_id"`
	FileName     string    `parquet:"file_name"`
	ImageWidth   int       `parquet:"image_width"`
	ImageHeight  int       `parquet:"image_height"`
	CategoryID   int       `parquet:"category_id"`
	CategoryName string    `parquet:"category_name"`
	BBoxX        float64   `parquet:"bbox_x"`
	BBoxY        float64   `parquet:"bbox_y"`
	BBoxWidth    float64   `parquet:"bbox_width"`
	BBoxHeight   float64   `parquet:"bbox_height"`
	Area         float64   `parquet:"area"`
	Polygon      []float64 `parquet:"polygon,list"`
}

// AnnotationTable flattens the dataset into one row per annotation, in
// annotation order.
func (d *Dataset) AnnotationTable() []AnnotationRow {
	images := d.ImageIndex()
	categories := make(map[int]string, len(d.Categories))
	for _, c := range d.Categories {
		categories[c.ID] = c.Name
	}

	rows := make([]AnnotationRow, 0, len(d.Annotations))
	for _, ann := range d.Annotations {
		img := images[ann.ImageID]
		row := AnnotationRow{
			AnnotationID: ann.ID,
			ImageID:      ann.ImageID,
			FileName:     img.FileName,
			ImageWidth:   img.Width,
			ImageHeight:  img.Height,
			CategoryID:   ann.CategoryID,
			CategoryName: categories[ann.CategoryID],
			BBoxX:        ann.BBox[0],
			BBoxY:        ann.BBox[1],
			BBoxWidth:    ann.BBox[2],
			BBoxHeight:   ann.BBox[3],
			Area:         ann.Area,
		}
		if len(ann.Segmentation) > 0 {
			row.Polygon = ann.Segmentation[0]
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteAnnotationTable exports the dataset's annotation table to a parquet file.
func WriteAnnotationTable(path string, dataset *Dataset) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}

	rows := dataset.AnnotationTable()
	writer := parquet.NewGenericWriter[AnnotationRow](file)
	if _, err := writer.Write(rows); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close parquet file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to move parquet file: %w", err)
	}

	slog.Info("Annotation table written", "path", path, "rows", len(rows))
	return nil
}

// ReadAnnotationTable loads rows written by WriteAnnotationTable.
func ReadAnnotationTable(path string) ([]AnnotationRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[AnnotationRow](pf)
	defer reader.Close()

	var records []AnnotationRow
	for {
		// fresh batch each time, the reader may reuse list storage of rows it decodes into
		rows := make([]AnnotationRow, 128)
		n, err := reader.Read(rows)
		records = append(records, rows[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}

	return records, nil
}
