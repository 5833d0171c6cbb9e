// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search PubMed for a keyword and create a project",
	Long: `Search asks the backend for papers mentioning a keyword, published within
the last --years years. The ordered results become a new project, which is
saved to the project store and becomes the active project.

With --enrich the new project is enriched right away.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	keyword := strings.TrimSpace(strings.Join(args, " "))
	if keyword == "" {
		return fmt.Errorf("keyword must not be empty")
	}
	years, _ := cmd.Flags().GetInt("years")
	if years < 1 {
		return fmt.Errorf("--years must be at least 1")
	}

	a, err := newApp(enrichOverrides(cmd))
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	p, err := a.ws.Search(ctx, keyword, years)
	if err != nil {
		return err
	}
	printProjectSummary(p)

	if doEnrich, _ := cmd.Flags().GetBool("enrich"); !doEnrich {
		fmt.Printf("Run 'figurescout enrich %s' to fetch full text.\n", p.ID)
		return nil
	}
	return enrichActive(ctx, a)
}

func init() {
	searchCmd.Flags().Int("years", 3, "publication window in years")
	searchCmd.Flags().Bool("enrich", false, "enrich the new project immediately")
	addEnrichFlags(searchCmd)

	rootCmd.AddCommand(searchCmd)
}
