package commands

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/ygzhang/sealkit/document"
)

var mergeOut string

var mergeCmd = &cobra.Command{
	Use:   "merge <doc.pdf> <doc.pdf>...",
	Short: "Concatenate documents into one",
	Long: `Merge concatenates the pages of every input in order. Inputs that
fail to parse are skipped with a warning; their pages are simply absent
from the result.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().StringVarP(&mergeOut, "out", "o", "merged.pdf", "output file")
	rootCmd.AddCommand(mergeCmd)
}

func runMerge(cmd *cobra.Command, args []string) error {
	docs := make([][]byte, len(args))
	for i, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		docs[i] = data
	}

	e := document.New(document.Config{Logger: log})
	out := e.Merge(docs)
	if out == nil {
		return errors.New("merge produced nothing")
	}
	return os.WriteFile(mergeOut, out, 0o644)
}
