package labelme

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// ErrMalformed marks a document that cannot be read, is not valid JSON,
// or lacks the fields a conversion needs.
var ErrMalformed = errors.New("malformed labelme file")

// Load reads and validates a LabelMe document
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", ErrMalformed, path, err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.Path = path

	slog.Debug("Loaded labelme file", "path", path, "shapes", len(f.Shapes), "has_image_data", f.ImageData != nil)

	return f, nil
}

// Parse decodes a LabelMe document held in memory and validates it.
func Parse(data []byte) (*File, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %w", ErrMalformed, err)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}

	return &f, nil
}

// Validate checks the structural requirements of a document: a shapes array
// must be present and every shape needs at least one 2D point.
// An empty shapes array is valid.
func (f *File) Validate() error {
	if f.Shapes == nil {
		return fmt.Errorf("%w: missing shapes", ErrMalformed)
	}

	for i, shape := range f.Shapes {
		if len(shape.Points) == 0 {
			return fmt.Errorf("%w: shape %d (%q) has no points", ErrMalformed, i, shape.Label)
		}
		for j, p := range shape.Points {
			if len(p) != 2 {
				return fmt.Errorf("%w: shape %d (%q) point %d has %d coordinates, want 2", ErrMalformed, i, shape.Label, j, len(p))
			}
		}
	}

	return nil
}
