package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "labelme2coco",
		Short: "Convert LabelMe annotation files into a COCO dataset",
		Long: `labelme2coco converts a directory of LabelMe JSON files, each holding
labeled shapes and an embedded image, into a single COCO object detection
dataset and extracts the embedded images as PNG files.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	cmd.AddCommand(newConvertCmd())
	cmd.AddCommand(newPreviewCmd())

	return cmd
}
