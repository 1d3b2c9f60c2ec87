package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ygzhang/sealkit/ir"
)

var infoCmd = &cobra.Command{
	Use:   "info <doc.pdf>",
	Short: "Show document structure",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	doc, err := ir.NewDefault().Parse(cmd.Context(), data)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	fmt.Printf("version: %s\n", doc.Version)
	if doc.Info != nil {
		if doc.Info.Title != "" {
			fmt.Printf("title:   %s\n", doc.Info.Title)
		}
		if doc.Info.Author != "" {
			fmt.Printf("author:  %s\n", doc.Info.Author)
		}
		if len(doc.Info.Keywords) > 0 {
			fmt.Printf("keywords: %s\n", strings.Join(doc.Info.Keywords, ", "))
		}
	}
	fmt.Printf("pages:   %d\n", len(doc.Pages))
	for _, p := range doc.Pages {
		line := fmt.Sprintf("  page %d: %.0fx%.0f pt", p.Index, p.MediaBox.Width(), p.MediaBox.Height())
		if p.Rotate != 0 {
			line += fmt.Sprintf(", rotated %d", p.Rotate)
		}
		if p.Resources != nil && len(p.Resources.XObjects) > 0 {
			line += fmt.Sprintf(", %d images", len(p.Resources.XObjects))
		}
		fmt.Println(line)
	}
	return nil
}
