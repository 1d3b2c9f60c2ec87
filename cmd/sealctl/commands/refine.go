package commands

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ygzhang/sealkit/batch"
	"github.com/ygzhang/sealkit/observability"
	"github.com/ygzhang/sealkit/raster"
	"github.com/ygzhang/sealkit/stamp"
)

var (
	refineOut     string
	refineKeepBG  bool
	refineEdges   bool
	refineWorkers int
)

var refineCmd = &cobra.Command{
	Use:   "refine <image> [image...]",
	Short: "Refine photographed stamps into clean transparent assets",
	Long: `Refine removes the background from a photographed ink stamp and runs
the optimization pass. Multiple inputs are processed concurrently
through the bulk coordinator; one failed image fails the whole batch.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRefine,
}

func init() {
	refineCmd.Flags().StringVarP(&refineOut, "out", "o", "", "output file, or directory for multiple inputs")
	refineCmd.Flags().BoolVar(&refineKeepBG, "keep-bg", false, "skip background removal, optimize only")
	refineCmd.Flags().BoolVar(&refineEdges, "edges", false, "report the detected stamp boundary instead of writing output")
	refineCmd.Flags().IntVar(&refineWorkers, "workers", 0, "bound batch concurrency (0 = one goroutine per image)")
	rootCmd.AddCommand(refineCmd)
}

func runRefine(cmd *cobra.Command, args []string) error {
	if refineEdges {
		return reportEdges(args)
	}

	images := make([]image.Image, len(args))
	for i, path := range args {
		img, err := raster.DecodeFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		images[i] = img
	}

	proc := stamp.Refine
	if refineKeepBG {
		proc = stamp.Optimize
	}
	c := batch.New(batch.Config{Workers: refineWorkers, Processor: proc, Logger: log})
	results, err := c.ProcessMany(cmd.Context(), images)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		dst := refineOut
		if dst == "" {
			dst = refinedName(args[0])
		}
		return writePNG(dst, results[0])
	}
	for i, img := range results {
		dst := refinedName(args[i])
		if refineOut != "" {
			dst = filepath.Join(refineOut, filepath.Base(dst))
		}
		if err := writePNG(dst, img); err != nil {
			return err
		}
	}
	return nil
}

func reportEdges(args []string) error {
	for _, path := range args {
		img, err := raster.DecodeFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		set, err := stamp.DetectEdges(img)
		if errors.Is(err, stamp.ErrNoEdgesDetected) {
			fmt.Printf("%s: no boundary found\n", path)
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		b := set.Bounds
		fmt.Printf("%s: %d contours, confidence %.2f, bounds [%.2f %.2f %.2f %.2f]\n",
			path, len(set.Contours), set.Confidence, b.MinX, b.MinY, b.MaxX, b.MaxY)
	}
	return nil
}

func refinedName(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + "_refined.png"
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := raster.EncodePNG(f, img); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	log.Info("wrote image", observability.String("path", path))
	return nil
}
