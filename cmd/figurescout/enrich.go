// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/figurescout/internal/enrich"
	"github.com/pdiddy/figurescout/internal/workspace"
	"github.com/pdiddy/figurescout/pkg/types"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich [project-id]",
	Short: "Fetch full-text figure data for a project's unprocessed records",
	Long: `Enrich submits the active project's unprocessed records to the backend in
batches and merges the returned full text. Each committed batch is saved to
the project store and the side-cache, so a later run picks up where this one
stopped. Records already processed are never resubmitted.

Without a project id the last active project is restored from the
side-cache. When the run completes, failed records get one retry pass
unless --no-retry is set.

Press Ctrl-C once to stop after the current batch; press it again to cancel
the in-flight request.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEnrich,
}

func runEnrich(cmd *cobra.Command, args []string) error {
	a, err := newApp(enrichOverrides(cmd))
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	p, err := a.activate(ctx, args)
	if err != nil {
		return err
	}
	printProjectSummary(p)
	return enrichActive(ctx, a)
}

// enrichOverrides applies the enrichment flags that were set explicitly.
func enrichOverrides(cmd *cobra.Command) func(*types.Config) {
	return func(cfg *types.Config) {
		if cmd.Flags().Changed("batch-size") {
			cfg.Enrich.BatchSize, _ = cmd.Flags().GetInt("batch-size")
		}
		if cmd.Flags().Changed("delay") {
			cfg.Enrich.BatchDelay, _ = cmd.Flags().GetDuration("delay")
		}
		if noRetry, _ := cmd.Flags().GetBool("no-retry"); noRetry {
			cfg.Enrich.Retry = false
		}
	}
}

// enrichActive runs an enrichment session over the active project. The
// first interrupt aborts the session at the next batch boundary; a second
// one cancels the context and with it any request in flight.
func enrichActive(ctx context.Context, a *app) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	var res workspace.EnrichResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		var err error
		res, err = a.ws.Enrich(gctx, printProgress)
		return err
	})
	g.Go(func() error {
		interrupts := 0
		for {
			select {
			case <-done:
				return nil
			case <-sigCh:
				interrupts++
				if interrupts == 1 {
					fmt.Fprintln(os.Stderr, "Stopping after the current batch (interrupt again to cancel now)...")
					a.ws.Abort()
					continue
				}
				cancel()
				return nil
			}
		}
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, enrich.ErrFatalRun) {
			fmt.Fprintln(os.Stderr, "Enrichment stopped on an internal error; committed batches are saved. Reload the project to continue.")
		}
		return err
	}

	printEnrichResult(res)
	if res.Run.Outcome == enrich.OutcomeCompleted && res.RetryErr != nil {
		fmt.Fprintf(os.Stderr, "Retry pass failed: %v\n", res.RetryErr)
	}
	return nil
}

func printProgress(p enrich.Progress) {
	fmt.Fprintf(os.Stderr, "  batch %d/%d  processed %d/%d (%d%%)  full text %d\n",
		p.Batch, p.Batches, p.Counters.Processed, p.Counters.Total, p.Counters.Percent(), p.Counters.Fulltext)
}

func printEnrichResult(res workspace.EnrichResult) {
	r := res.Run
	switch r.Outcome {
	case enrich.OutcomeAlreadyComplete:
		fmt.Println("All records are already processed.")
	case enrich.OutcomeAborted:
		fmt.Printf("Stopped after %d of %d batches.\n", r.Committed, r.Planned)
	default:
		fmt.Printf("Processed %d batches.\n", r.Committed)
	}
	if r.FailedBatches > 0 {
		fmt.Printf("  %d batch(es) failed and stay unprocessed; run enrich again to resubmit them.\n", r.FailedBatches)
	}
	if r.Discarded > 0 {
		fmt.Printf("  %d batch result(s) discarded after the project changed.\n", r.Discarded)
	}
	fmt.Printf("  submitted %d, full text for %d\n", r.Attempted, r.Succeeded)
	if rr := res.Retry; rr != nil {
		fmt.Printf("Retry: %d submitted, %d recovered, %d still failed\n", rr.Submitted, rr.Processed(), rr.Failed())
	}
	c := r.Counters
	if res.Retry != nil {
		c = res.Retry.Counters
	}
	fmt.Printf("Project: %d/%d processed (%d%%), %d with full text, %d failed\n",
		c.Processed, c.Total, c.Percent(), c.Fulltext, c.Failed)
}

func addEnrichFlags(cmd *cobra.Command) {
	cmd.Flags().Int("batch-size", 10, "records per enrichment request")
	cmd.Flags().Duration("delay", 0, "pause between batches")
	cmd.Flags().Bool("no-retry", false, "skip the retry pass over failed records")
}

func init() {
	addEnrichFlags(enrichCmd)
	rootCmd.AddCommand(enrichCmd)
}
