package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Default paths, relative to the working directory.
const (
	DefaultLabelmeDir = "./figures/fig201-400/201-400json/"
	DefaultImageDir   = "./figures/fig201-400/201-400fig/"
	DefaultOutputPath = "./figures/coco/coco_201-400.json"
)

// Config holds the settings of a conversion run.
type Config struct {
	LabelmeDir string `yaml:"labelme_dir"`
	ImageDir   string `yaml:"image_dir"`
	OutputPath string `yaml:"output_path"`

	Threaded bool `yaml:"threaded"`
	Workers  int  `yaml:"workers"` // parallel mode only; 0 means one per CPU
	FailFast bool `yaml:"fail_fast"`

	ParquetPath string `yaml:"parquet_path,omitempty"`
	ReportPath  string `yaml:"report_path,omitempty"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		LabelmeDir: DefaultLabelmeDir,
		ImageDir:   DefaultImageDir,
		OutputPath: DefaultOutputPath,
	}
}

// Load returns the defaults overlaid with the YAML file at path (if path is
// not empty) and then with environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("LABELME_DIR"); v != "" {
		c.LabelmeDir = v
	}
	if v := os.Getenv("IMAGE_SAVE_DIR"); v != "" {
		c.ImageDir = v
	}
	if v := os.Getenv("COCO_SAVE_PATH"); v != "" {
		c.OutputPath = v
	}
	if v := os.Getenv("LABELME2COCO_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LABELME2COCO_WORKERS %q: %w", v, err)
		}
		c.Workers = n
	}
	return nil
}

// Validate fills defaults for empty paths and checks numeric settings.
func (c *Config) Validate() error {
	if c.LabelmeDir == "" {
		c.LabelmeDir = DefaultLabelmeDir
	}
	if c.ImageDir == "" {
		c.ImageDir = DefaultImageDir
	}
	if c.OutputPath == "" {
		c.OutputPath = DefaultOutputPath
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	return nil
}

// WorkerCount is the size of the worker pool for a parallel run.
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}
