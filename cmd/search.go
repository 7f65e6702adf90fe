package main

import (
	"context"
	"encoding/json"
	"io"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/marksearch/internal/config"
)

var searchSource string

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the registries once and print JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd.Context(), cmd.OutOrStdout(), cfg, args[0], searchSource)
	},
}

// runSearch queries one source, or every enabled source when sourceID is
// empty or "all", and writes the indented JSON result to w.
func runSearch(ctx context.Context, w io.Writer, c *config.Config, query, sourceID string) error {
	if utf8.RuneCountInString(query) < 2 {
		return eris.New("query must be at least 2 characters")
	}

	env, err := initEnv(ctx, c, false)
	if err != nil {
		return err
	}
	defer env.Close()

	var out any
	if sourceID == "" || sourceID == "all" {
		out = env.Orchestrator.SearchAll(ctx, query)
	} else {
		res, err := env.Orchestrator.Search(ctx, sourceID, query)
		if err != nil {
			return err
		}
		out = res
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return eris.Wrap(enc.Encode(out), "encode result")
}

func init() {
	searchCmd.Flags().StringVar(&searchSource, "source", "all", "source id to search (turkpatent, wipo, euipo or all)")
	rootCmd.AddCommand(searchCmd)
}
