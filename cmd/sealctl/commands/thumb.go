package commands

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ygzhang/sealkit/document"
)

var (
	thumbOut  string
	thumbPage int
	thumbSize string
)

var thumbCmd = &cobra.Command{
	Use:   "thumb <doc.pdf>",
	Short: "Render a page thumbnail",
	Args:  cobra.ExactArgs(1),
	RunE:  runThumb,
}

func init() {
	thumbCmd.Flags().StringVarP(&thumbOut, "out", "o", "thumb.png", "output file")
	thumbCmd.Flags().IntVar(&thumbPage, "page", 0, "page to render, zero-indexed")
	thumbCmd.Flags().StringVar(&thumbSize, "size", "320x240", "target size WxH in pixels")
	rootCmd.AddCommand(thumbCmd)
}

func runThumb(cmd *cobra.Command, args []string) error {
	w, h, err := parseSize(thumbSize)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	e := document.New(document.Config{Logger: log})
	img := e.RenderThumbnail(data, thumbPage, w, h)
	if img == nil {
		return errors.New("thumbnail failed: malformed document or bad page index")
	}
	return writePNG(thumbOut, img)
}

func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("size %q is not WxH", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, fmt.Errorf("size %q is not WxH", s)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("size %q is not WxH", s)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("size %q must be positive", s)
	}
	return w, h, nil
}
