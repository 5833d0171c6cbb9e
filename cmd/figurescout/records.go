// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/pdiddy/figurescout/internal/records"
	"github.com/pdiddy/figurescout/pkg/types"
)

const titleWidth = 60

var recordsCmd = &cobra.Command{
	Use:   "records [project-id]",
	Short: "List a project's records with their processing state",
	Long: `Records prints the records of a project. The default order is the
original search order; --sort changes the display order only.

Without a project id the last active project is restored from the
side-cache.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRecords,
}

func runRecords(cmd *cobra.Command, args []string) error {
	sortName, _ := cmd.Flags().GetString("sort")
	by, err := records.ParseSortBy(sortName)
	if err != nil {
		return err
	}
	stateName, _ := cmd.Flags().GetString("state")
	state, err := parseState(stateName)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.activate(cmd.Context(), args); err != nil {
		return err
	}
	target, err := a.ws.Target()
	if err != nil {
		return err
	}

	var recs []types.Record
	for _, r := range target.Records.Sorted(by) {
		if state != "" && r.State() != state {
			continue
		}
		recs = append(recs, r)
		if limit > 0 && len(recs) == limit {
			break
		}
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return writeJSON(recs)
	}
	if len(recs) == 0 {
		fmt.Println("No records found.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "PMID", "Title", "Journal", "Year", "Score", "State", "Figures"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 3, WidthMax: titleWidth},
		{Number: 6, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})
	for _, r := range recs {
		figures := len(r.Figures)
		if r.Fulltext != nil && len(r.Fulltext.Figures) > figures {
			figures = len(r.Fulltext.Figures)
		}
		t.AppendRow(table.Row{
			r.Ordinal + 1,
			r.PMID,
			r.Title,
			r.Journal,
			r.Year,
			fmt.Sprintf("%.1f", r.Relevance.Score),
			r.State(),
			figures,
		})
	}
	c := target.Records.Counters()
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d records, %d processed, %d full text, %d failed",
		c.Total, c.Processed, c.Fulltext, c.Failed)})
	t.Render()
	return nil
}

func parseState(s string) (types.ProcessingState, error) {
	switch st := types.ProcessingState(s); st {
	case "", types.StateUnprocessed, types.StateSucceeded, types.StateFailed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown state %q: use unprocessed, succeeded, or failed", s)
	}
}

func init() {
	recordsCmd.Flags().String("sort", "ordinal", "display order: ordinal, relevance, date, or journal")
	recordsCmd.Flags().String("state", "", "only show records in this state: unprocessed, succeeded, or failed")
	recordsCmd.Flags().Int("limit", 0, "maximum number of records (0 for all)")
	recordsCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(recordsCmd)
}
