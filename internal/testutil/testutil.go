// Package testutil builds LabelMe fixtures for tests.
package testutil

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// Shape mirrors a LabelMe shape for fixture generation.
type Shape struct {
	Label     string      `json:"label"`
	Points    [][]float64 `json:"points"`
	ShapeType string      `json:"shape_type,omitempty"`
}

// Polygon is a shorthand for a labeled polygon shape.
func Polygon(label string, points ...[]float64) Shape {
	return Shape{Label: label, Points: points, ShapeType: "polygon"}
}

// PNGPayload returns a base64 PNG of the given size.
func PNGPayload(t testing.TB, width, height int) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, gradient(width, height)); err != nil {
		t.Fatalf("Failed to encode png: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// JPEGPayload returns a base64 JPEG of the given size.
func JPEGPayload(t testing.TB, width, height int) string {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gradient(width, height), nil); err != nil {
		t.Fatalf("Failed to encode jpeg: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func gradient(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	return img
}

// WriteLabelMe writes a LabelMe document named name into dir and returns its path.
func WriteLabelMe(t testing.TB, dir, name, payload string, shapes ...Shape) string {
	t.Helper()
	if shapes == nil {
		shapes = []Shape{}
	}
	doc := map[string]any{
		"version":   "5.2.1",
		"flags":     map[string]any{},
		"shapes":    shapes,
		"imagePath": name,
		"imageData": payload,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Failed to marshal labelme fixture: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	return path
}
