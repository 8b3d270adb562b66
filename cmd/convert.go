package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/labelme2coco/internal/batch"
	"github.com/lehigh-university-libraries/labelme2coco/internal/coco"
	"github.com/lehigh-university-libraries/labelme2coco/internal/config"
	"github.com/lehigh-university-libraries/labelme2coco/internal/imagedata"
	"github.com/spf13/cobra"
)

func newConvertCmd() *cobra.Command {
	var configPath string
	var flags config.Config

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a directory of LabelMe files into one COCO dataset",
		Long: `Reads every .json file in the LabelMe directory, writes the embedded image of
each as PNG into the image directory and writes one COCO dataset.

Image ids come from the file name: "12.json" becomes image 12, other names
get a stable 53-bit hash. Category ids are assigned by label name in order
of first appearance, annotation ids run from 1.

Files that cannot be converted are logged and left out of the dataset; with
--fail-fast the first failure aborts the run and no dataset is written (the
--report file is still written and lists the failure). The parquet table and
the report are written before the dataset, so if either fails the dataset
is not written.

Settings are read from defaults, then --config, then the environment
(LABELME_DIR, IMAGE_SAVE_DIR, COCO_SAVE_PATH, LABELME2COCO_WORKERS, also
from .env), then flags.`,
		Example: `  # Convert with the default paths
  labelme2coco convert

  # Convert using a worker pool
  labelme2coco convert --labelme-json-dir ./json --image-save-dir ./images --coco-save-path ./coco.json --threaded

  # Also export a parquet annotation table and a failure report
  labelme2coco convert --parquet ./annotations.parquet --report ./report.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			fs := cmd.Flags()
			if fs.Changed("labelme-json-dir") {
				cfg.LabelmeDir = flags.LabelmeDir
			}
			if fs.Changed("image-save-dir") {
				cfg.ImageDir = flags.ImageDir
			}
			if fs.Changed("coco-save-path") {
				cfg.OutputPath = flags.OutputPath
			}
			if fs.Changed("threaded") {
				cfg.Threaded = flags.Threaded
			}
			if fs.Changed("workers") {
				cfg.Workers = flags.Workers
			}
			if fs.Changed("fail-fast") {
				cfg.FailFast = flags.FailFast
			}
			if fs.Changed("parquet") {
				cfg.ParquetPath = flags.ParquetPath
			}
			if fs.Changed("report") {
				cfg.ReportPath = flags.ReportPath
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			return executeConvert(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	cmd.Flags().StringVar(&flags.LabelmeDir, "labelme-json-dir", config.DefaultLabelmeDir, "Directory of LabelMe JSON files")
	cmd.Flags().StringVar(&flags.ImageDir, "image-save-dir", config.DefaultImageDir, "Directory the extracted PNG images are written to")
	cmd.Flags().StringVar(&flags.OutputPath, "coco-save-path", config.DefaultOutputPath, "Path of the COCO dataset file")
	cmd.Flags().BoolVar(&flags.Threaded, "threaded", false, "Convert files with a worker pool")
	cmd.Flags().IntVar(&flags.Workers, "workers", 0, "Worker pool size with --threaded (0 for one per CPU)")
	cmd.Flags().BoolVar(&flags.FailFast, "fail-fast", false, "Abort on the first file that cannot be converted")
	cmd.Flags().StringVar(&flags.ParquetPath, "parquet", "", "Also export the annotations as a parquet table to this path")
	cmd.Flags().StringVar(&flags.ReportPath, "report", "", "Write a YAML report of the run to this path")

	return cmd
}

// executeConvert writes the side outputs (parquet table, report) before the
// dataset, so a run that exits non-zero never leaves a new dataset behind.
// A run aborted on a file failure still writes its report.
func executeConvert(ctx context.Context, cfg config.Config) error {
	driver := batch.NewDriver(cfg, imagedata.NewPNGStore())

	result, err := driver.Run(ctx)
	if err != nil {
		if result != nil && cfg.ReportPath != "" {
			if reportErr := batch.WriteReport(cfg.ReportPath, cfg, result); reportErr != nil {
				slog.Error("Failed to write report", "path", cfg.ReportPath, "error", reportErr)
			} else {
				slog.Info("Report written", "path", cfg.ReportPath)
			}
		}
		return fmt.Errorf("conversion failed, no dataset written: %w", err)
	}

	if cfg.ParquetPath != "" {
		if err := coco.WriteAnnotationTable(cfg.ParquetPath, result.Dataset); err != nil {
			return fmt.Errorf("no dataset written: %w", err)
		}
	}

	if cfg.ReportPath != "" {
		if err := batch.WriteReport(cfg.ReportPath, cfg, result); err != nil {
			return fmt.Errorf("no dataset written: %w", err)
		}
		slog.Info("Report written", "path", cfg.ReportPath)
	}

	if err := coco.WriteFile(cfg.OutputPath, result.Dataset); err != nil {
		return err
	}

	printSummary(result, cfg)
	return nil
}

func printSummary(result *batch.Result, cfg config.Config) {
	fmt.Printf("\nConversion complete!\n")
	fmt.Printf("  Files found:      %d\n", len(result.Inputs))
	fmt.Printf("  Converted:        %d\n", result.Converted())
	fmt.Printf("  Failed:           %d\n", len(result.Failures))
	fmt.Printf("  Images:           %d\n", len(result.Dataset.Images))
	fmt.Printf("  Annotations:      %d\n", len(result.Dataset.Annotations))
	fmt.Printf("  Categories:       %d\n", len(result.Dataset.Categories))
	fmt.Printf("  Dataset:          %s\n", cfg.OutputPath)
	fmt.Printf("  Images directory: %s\n", cfg.ImageDir)

	if len(result.Failures) > 0 {
		fmt.Printf("\nFiles left out of the dataset:\n")
		for _, f := range result.Failures {
			fmt.Printf("  %s [%s]: %v\n", f.Path, f.Kind(), f.Err)
		}
	}
}
