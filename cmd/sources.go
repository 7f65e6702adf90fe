package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/marksearch/internal/config"
	"github.com/sells-group/marksearch/internal/source"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the configured registry profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSources(cmd.OutOrStdout(), cfg)
	},
}

func runSources(w io.Writer, c *config.Config) error {
	profiles, err := source.LoadProfiles(c.Sources.ProfilesPath)
	if err != nil {
		return err
	}
	enabled := make(map[string]bool, len(c.Sources.Enabled))
	for _, id := range c.Sources.Enabled {
		enabled[id] = true
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tENABLED\tENTRY URL")
	for _, p := range profiles {
		on := len(enabled) == 0 || enabled[p.ID]
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", p.ID, p.Label, on, p.EntryURL)
	}
	return tw.Flush()
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
