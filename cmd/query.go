package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/souper/internal/locator"
	"github.com/xkilldash9x/souper/internal/query"
	"github.com/xkilldash9x/souper/internal/snapshot"
)

// queryResult is one match as printed by `souper query`.
type queryResult struct {
	Tag         string `json:"tag"`
	XPath       string `json:"xpath"`
	CSSPath     string `json:"css_path"`
	Description string `json:"description"`
	Text        string `json:"text"`
	Depth       int    `json:"depth"`
}

// newQueryCmd creates the `query` command.
func newQueryCmd() *cobra.Command {
	queryCmd := &cobra.Command{
		Use:   "query FILE",
		Short: "Queries a saved HTML file and prints element locators",
		Long:  "Parses FILE (or - for stdin) and runs one CSS, id or text query against it. No browser is started.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfig(cmd)
			if err != nil {
				return err
			}
			q, err := queryFromFlags(cmd, cfg.Query().CaseSensitive)
			if err != nil {
				return err
			}

			raw, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			tree, err := snapshot.Parse(raw)
			if err != nil {
				return err
			}
			matches, err := query.Find(tree, q)
			if err != nil {
				return err
			}

			results := make([]queryResult, 0, len(matches))
			for _, m := range matches {
				loc, err := locator.Locate(m.Node)
				if err != nil {
					return err
				}
				text, _ := tree.VisibleText(m.Node)
				results = append(results, queryResult{
					Tag:         loc.Tag,
					XPath:       loc.XPath,
					CSSPath:     loc.CSSPath,
					Description: loc.Description,
					Text:        text,
					Depth:       m.Depth,
				})
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			return printQueryResults(cmd.OutOrStdout(), q, results)
		},
	}
	queryCmd.Flags().String("css", "", "CSS selector")
	queryCmd.Flags().String("id", "", "element id")
	queryCmd.Flags().String("text", "", "exact visible text")
	queryCmd.Flags().String("partial-text", "", "visible text substring")
	queryCmd.Flags().BoolP("ignore-case", "i", false, "match text case-insensitively")
	queryCmd.Flags().Bool("json", false, "print matches as JSON")
	queryCmd.MarkFlagsMutuallyExclusive("css", "id", "text", "partial-text")
	queryCmd.MarkFlagsOneRequired("css", "id", "text", "partial-text")
	return queryCmd
}

func queryFromFlags(cmd *cobra.Command, caseSensitive bool) (query.Query, error) {
	css, _ := cmd.Flags().GetString("css")
	id, _ := cmd.Flags().GetString("id")
	text, _ := cmd.Flags().GetString("text")
	partial, _ := cmd.Flags().GetString("partial-text")
	ignoreCase, _ := cmd.Flags().GetBool("ignore-case")

	var q query.Query
	switch {
	case css != "":
		q = query.ByCSS(css)
	case id != "":
		q = query.ByID(id)
	case text != "":
		q = query.ByText(text)
	case partial != "":
		q = query.ByPartialText(partial)
	default:
		return query.Query{}, errors.New("one of --css, --id, --text or --partial-text is required")
	}
	if ignoreCase || !caseSensitive {
		q = q.IgnoringCase()
	}
	return q, nil
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(raw), nil
}

func printQueryResults(w io.Writer, q query.Query, results []queryResult) error {
	if len(results) == 0 {
		_, err := fmt.Fprintf(w, "no matches for %s\n", q)
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Tag, r.XPath, truncate(r.Text, 60))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d match(es) for %s\n", len(results), q)
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
