package coco

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// WriteFile writes the dataset as JSON to path. The document is written to a
// temporary file in the target directory and renamed into place, so path
// either holds the complete new dataset or is left untouched.
func WriteFile(path string, dataset *Dataset) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary dataset file: %w", err)
	}
	tempPath := tmp.Name()

	if err := json.NewEncoder(tmp).Encode(dataset); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode dataset: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close dataset file: %w", err)
	}

	// CreateTemp uses 0600
	if err := os.Chmod(tempPath, 0644); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to set dataset file mode: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to move dataset file: %w", err)
	}

	slog.Info("Dataset written", "path", path,
		"images", len(dataset.Images),
		"annotations", len(dataset.Annotations),
		"categories", len(dataset.Categories))

	return nil
}

// ReadFile loads a dataset previously written by WriteFile.
func ReadFile(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer file.Close()

	dataset := NewDataset()
	if err := json.NewDecoder(file).Decode(dataset); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}

	return dataset, nil
}
