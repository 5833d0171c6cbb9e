// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/figurescout/internal/sidecache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the side-cache snapshot",
	Long: `The side-cache keeps a snapshot of the last active project so commands
run without a project id can resume it. Snapshots older than cache.max_age
are treated as absent.`,
}

// --- show subcommand ---

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the cached project snapshot",
	Args:  cobra.NoArgs,
	RunE:  runCacheShow,
}

func runCacheShow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	entry, err := a.cache.Load(cmd.Context())
	if errors.Is(err, sidecache.ErrMiss) {
		fmt.Println("Side-cache is empty.")
		return nil
	}
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		entry.Results = nil
		return writeJSON(entry)
	}
	fmt.Printf("Project %s\n", entry.ProjectID)
	fmt.Printf("  keyword:   %s (%d years)\n", entry.Keyword, entry.Years)
	fmt.Printf("  records:   %d\n", entry.TotalArticles)
	fmt.Printf("  processed: %d\n", entry.ProcessedCount)
	fmt.Printf("  full text: %d\n", entry.FulltextCount)
	fmt.Printf("  written:   %s (%s ago)\n", entry.WrittenAt().Local().Format("2006-01-02 15:04:05"),
		time.Since(entry.WrittenAt()).Round(time.Second))
	return nil
}

// --- clear subcommand ---

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the cached project snapshot",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ws.Home(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Side-cache cleared.")
	return nil
}

func init() {
	cacheShowCmd.Flags().Bool("json", false, "output as JSON (without records)")

	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
