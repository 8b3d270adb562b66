package cmd

import (
	"fmt"

	"github.com/lehigh-university-libraries/labelme2coco/internal/coco"
	"github.com/lehigh-university-libraries/labelme2coco/internal/config"
	"github.com/lehigh-university-libraries/labelme2coco/internal/preview"
	"github.com/spf13/cobra"
)

func newPreviewCmd() *cobra.Command {
	var datasetPath string
	var imageDir string
	var outputDir string
	var lineWidth float64
	var boxes bool

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render dataset annotations over the extracted images",
		Long: `Draws the polygons (and optionally the bounding boxes) of a COCO dataset
over its images, one color per category, and writes <name>_preview.png files.
Useful for checking a conversion by eye.`,
		Example: `  # Render previews of a converted dataset
  labelme2coco preview --dataset ./coco.json --images ./images --output ./previews`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := coco.ReadFile(datasetPath)
			if err != nil {
				return err
			}

			opts := preview.DefaultOptions()
			opts.LineWidth = lineWidth
			opts.DrawBoxes = boxes

			n, err := preview.Render(ds, imageDir, outputDir, opts)
			if err != nil {
				return err
			}

			fmt.Printf("Rendered %d of %d images to %s\n", n, len(ds.Images), outputDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&datasetPath, "dataset", config.DefaultOutputPath, "Path of the COCO dataset file")
	cmd.Flags().StringVar(&imageDir, "images", config.DefaultImageDir, "Directory holding the dataset images")
	cmd.Flags().StringVar(&outputDir, "output", "./previews", "Directory previews are written to")
	cmd.Flags().Float64Var(&lineWidth, "line-width", 2, "Outline width in pixels")
	cmd.Flags().BoolVar(&boxes, "boxes", true, "Also draw bounding boxes")

	return cmd
}
