// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var retryCmd = &cobra.Command{
	Use:   "retry [project-id]",
	Short: "Resubmit a project's failed records in one request",
	Long: `Retry sends every record that was attempted without full text to the
backend's retry endpoint. Recovered records are merged and saved; records
that still fail stay failed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRetry,
}

func runRetry(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if _, err := a.activate(ctx, args); err != nil {
		return err
	}

	rr, err := a.ws.Retry(ctx)
	if err != nil {
		return err
	}
	if rr.Skipped() {
		fmt.Println("No failed records to retry.")
		return nil
	}
	fmt.Printf("Retry: %d submitted, %d recovered, %d still failed\n", rr.Submitted, rr.Processed(), rr.Failed())
	c := rr.Counters
	fmt.Printf("Project: %d/%d processed, %d with full text, %d failed\n", c.Processed, c.Total, c.Fulltext, c.Failed)
	return nil
}

func init() {
	rootCmd.AddCommand(retryCmd)
}
