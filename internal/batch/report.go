package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lehigh-university-libraries/labelme2coco/internal/config"
	"gopkg.in/yaml.v3"
)

// ReportConfig records the settings a report was produced with.
type ReportConfig struct {
	LabelmeDir string `yaml:"labelmedir"`
	ImageDir   string `yaml:"imagedir"`
	OutputPath string `yaml:"outputpath"`
	Threaded   bool   `yaml:"threaded"`
	FailFast   bool   `yaml:"failfast"`
	Timestamp  string `yaml:"timestamp"`
}

// ReportSummary holds the run counts
type ReportSummary struct {
	Inputs      int `yaml:"inputs"`
	Converted   int `yaml:"converted"`
	Failed      int `yaml:"failed"`
	Images      int `yaml:"images"`
	Annotations int `yaml:"annotations"`
	Categories  int `yaml:"categories"`
}

// ReportFailure is one excluded file.
type ReportFailure struct {
	File  string `yaml:"file"`
	Kind  string `yaml:"kind"`
	Error string `yaml:"error"`
}

// Report is the YAML document written after a run.
type Report struct {
	Config   ReportConfig    `yaml:"config"`
	Summary  ReportSummary   `yaml:"summary"`
	Failures []ReportFailure `yaml:"failures"`
}

// NewReport summarizes a run.
func NewReport(cfg config.Config, result *Result) *Report {
	report := &Report{
		Config: ReportConfig{
			LabelmeDir: cfg.LabelmeDir,
			ImageDir:   cfg.ImageDir,
			OutputPath: cfg.OutputPath,
			Threaded:   cfg.Threaded,
			FailFast:   cfg.FailFast,
			Timestamp:  time.Now().Format("2006-01-02_15-04-05"),
		},
		Summary: ReportSummary{
			Inputs:    len(result.Inputs),
			Converted: result.Converted(),
			Failed:    len(result.Failures),
		},
		Failures: make([]ReportFailure, 0, len(result.Failures)),
	}

	if result.Dataset != nil {
		report.Summary.Images = len(result.Dataset.Images)
		report.Summary.Annotations = len(result.Dataset.Annotations)
		report.Summary.Categories = len(result.Dataset.Categories)
	}

	for _, f := range result.Failures {
		report.Failures = append(report.Failures, ReportFailure{
			File:  f.Path,
			Kind:  f.Kind(),
			Error: f.Err.Error(),
		})
	}

	return report
}

// WriteReport writes the report for a run as YAML to path.
func WriteReport(path string, cfg config.Config, result *Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := yaml.Marshal(NewReport(cfg, result))
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}

	return nil
}
