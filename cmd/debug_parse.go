package cmd

import (
	"fmt"
	"sort"
	"strings"

	"daily-digest/internal/markdown"

	"github.com/spf13/cobra"
)

var debugParseCmd = &cobra.Command{
	Use:   "debug-parse <markdown_path>",
	Short: "Debug: parse an archived digest and print its frontmatter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := markdown.ParseFile(args[0])
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(doc.Frontmatter))
		for k := range doc.Frontmatter {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "frontmatter keys: %s\n", strings.Join(keys, ", "))
		for _, k := range keys {
			fmt.Fprintf(out, "  %s: %s\n", k, doc.String(k))
		}
		fmt.Fprintf(out, "body bytes: %d\n", len(doc.Body))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(debugParseCmd)
}
