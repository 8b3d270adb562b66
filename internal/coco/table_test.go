package coco

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnotationTable(t *testing.T) {
	rows := sampleDataset().AnnotationTable()
	require.Len(t, rows, 2)

	assert.Equal(t, AnnotationRow{
		AnnotationID: 1,
		ImageID:      12,
		FileName:     "12.png",
		ImageWidth:   640,
		ImageHeight:  480,
		CategoryID:   1,
		CategoryName: "cat",
		BBoxX:        2,
		BBoxY:        3,
		BBoxWidth:    6,
		BBoxHeight:   6,
		Area:         36,
		Polygon:      []float64{2, 3, 8, 3, 8, 9, 2, 9},
	}, rows[0])
	assert.Equal(t, "dog", rows[1].CategoryName)
	assert.Equal(t, "abc.png", rows[1].FileName)
}

func TestWriteAndReadAnnotationTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export", "annotations.parquet")
	ds := sampleDataset()

	require.NoError(t, WriteAnnotationTable(path, ds))

	rows, err := ReadAnnotationTable(path)
	require.NoError(t, err)
	assert.Equal(t, ds.AnnotationTable(), rows)
}
