package commands

import (
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/spf13/cobra"

	"github.com/ygzhang/sealkit/document"
	"github.com/ygzhang/sealkit/raster"
)

var composeOut string

var composeCmd = &cobra.Command{
	Use:   "compose <image> [image...]",
	Short: "Build a document from images, one page each",
	Long: `Compose turns images into a document with one page per image, each
page exactly the image's pixel size at one point per pixel.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCompose,
}

func init() {
	composeCmd.Flags().StringVarP(&composeOut, "out", "o", "composed.pdf", "output file")
	rootCmd.AddCommand(composeCmd)
}

func runCompose(cmd *cobra.Command, args []string) error {
	images := make([]image.Image, len(args))
	for i, path := range args {
		img, err := raster.DecodeFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		images[i] = img
	}

	e := document.New(document.Config{Logger: log})
	out := e.ImagesToDocument(images)
	if out == nil {
		return errors.New("no usable pages")
	}
	return os.WriteFile(composeOut, out, 0o644)
}
