// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pdiddy/figurescout/internal/export"
	"github.com/pdiddy/figurescout/internal/projectstore"
	"github.com/pdiddy/figurescout/internal/records"
	"github.com/pdiddy/figurescout/pkg/types"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "List, inspect, rename, delete, and export projects",
	Long: `Project manages the projects held by the project store. Every search
creates one project; its records and enrichment progress live there.`,
}

// --- list subcommand ---

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects, most recently updated first",
	Args:  cobra.NoArgs,
	RunE:  runProjectList,
}

func runProjectList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	projects, err := a.projects.ListProjects(cmd.Context(), limit, offset)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return writeJSON(projects)
	}
	if len(projects) == 0 {
		fmt.Println("No projects found.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Name", "Keyword", "Years", "Records", "Processed", "Full text", "Updated"})
	for _, p := range projects {
		c := p.Counters()
		t.AppendRow(table.Row{
			p.ID,
			p.Name,
			p.Keyword,
			p.Years,
			c.Total,
			fmt.Sprintf("%d (%d%%)", c.Processed, c.Percent()),
			c.Fulltext,
			p.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	t.Render()
	return nil
}

// --- show subcommand ---

var projectShowCmd = &cobra.Command{
	Use:   "show <project-id>",
	Short: "Show a project's metadata and counters",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectShow,
}

func runProjectShow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	b, err := a.projects.LoadProject(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	p := b.Project
	c := types.CountRecords(b.Records)
	p.TotalArticles, p.ProcessedArticles, p.FulltextArticles = c.Total, c.Processed, c.Fulltext

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return writeJSON(p)
	}
	printProjectSummary(p)
	if p.Description != "" {
		fmt.Printf("  description: %s\n", p.Description)
	}
	fmt.Printf("  failed:    %d\n", c.Failed)
	fmt.Printf("  created:   %s\n", p.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Printf("  updated:   %s\n", p.UpdatedAt.Local().Format("2006-01-02 15:04"))
	return nil
}

// --- delete subcommand ---

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <project-id>",
	Short: "Delete a project and its records",
	Long: `Delete removes a project from the project store. When the side-cache
holds a snapshot of the same project, the snapshot is cleared too.`,
	Args: cobra.ExactArgs(1),
	RunE: runProjectDelete,
}

func runProjectDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	id := args[0]
	if err := a.projects.DeleteProject(ctx, id); err != nil {
		return err
	}
	if entry, err := a.cache.Load(ctx); err == nil && entry.ProjectID == id {
		if err := a.cache.Clear(ctx); err != nil {
			return fmt.Errorf("clearing side-cache: %w", err)
		}
	}
	fmt.Printf("Deleted project %s\n", id)
	return nil
}

// --- rename subcommand ---

var projectRenameCmd = &cobra.Command{
	Use:   "rename <project-id> [name]",
	Short: "Change a project's name or description",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runProjectRename,
}

func runProjectRename(cmd *cobra.Command, args []string) error {
	var u projectstore.Update
	if len(args) == 2 {
		u.Name = &args[1]
	}
	if cmd.Flags().Changed("description") {
		desc, _ := cmd.Flags().GetString("description")
		u.Description = &desc
	}
	if u.IsZero() {
		return fmt.Errorf("nothing to change: pass a new name or --description")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.projects.UpdateProject(cmd.Context(), args[0], u); err != nil {
		return err
	}
	fmt.Printf("Updated project %s\n", args[0])
	return nil
}

// --- export subcommand ---

var projectExportCmd = &cobra.Command{
	Use:   "export <project-id>",
	Short: "Export a project as YAML, JSON, or a CSL bibliography",
	Long: `Export writes a project and its records in ordinal order. The yaml and
json formats include the project, its counters, and one summary per record.
The csl format writes a CSL-YAML bibliography usable with Pandoc.`,
	Args: cobra.ExactArgs(1),
	RunE: runProjectExport,
}

func runProjectExport(cmd *cobra.Command, args []string) error {
	formatName, _ := cmd.Flags().GetString("format")
	format, err := export.ParseFormat(formatName)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	b, err := a.projects.LoadProject(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	recs := records.FromProject(b.Records).Snapshot()

	out := os.Stdout
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}
	return export.Write(out, format, b.Project, recs)
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	projectListCmd.Flags().Int("limit", projectstore.DefaultListLimit, "maximum number of projects")
	projectListCmd.Flags().Int("offset", 0, "number of projects to skip")
	projectListCmd.Flags().Bool("json", false, "output as JSON")
	projectShowCmd.Flags().Bool("json", false, "output as JSON")
	projectRenameCmd.Flags().String("description", "", "new project description")
	projectExportCmd.Flags().String("format", "yaml", "export format: yaml, json, or csl")
	projectExportCmd.Flags().StringP("output", "o", "", "write to file instead of stdout")

	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectDeleteCmd)
	projectCmd.AddCommand(projectRenameCmd)
	projectCmd.AddCommand(projectExportCmd)
	rootCmd.AddCommand(projectCmd)
}
