package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docqa/internal/helper"
	"docqa/internal/ingest"

	"github.com/spf13/cobra"
)

var (
	ingestRecreate bool
	ingestWatch    bool
	ingestPrune    bool
	ingestJSON     bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <docs_path>",
	Short: "Load, chunk and embed documents into the vector index",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestRecreate, "recreate", false, "drop and recreate the collection first")
	ingestCmd.Flags().BoolVar(&ingestPrune, "prune", false, "delete points this run did not write")
	ingestCmd.Flags().BoolVar(&ingestWatch, "watch", false, "keep running and re-ingest when files change")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "print the run report as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(cfg, true)
	if err != nil {
		return err
	}
	defer app.Close()

	ingestor, err := app.Ingestor()
	if err != nil {
		return err
	}

	opts := ingest.Options{Path: args[0], Recreate: ingestRecreate, Prune: ingestPrune}
	if ingestWatch {
		return ingestor.Watch(ctx, opts, ingest.WatchOptions{
			Debounce: cfg.Ingest.WatchDebounce,
			OnRun: func(report ingest.Report, err error) {
				if err == nil {
					printReport(cmd, report)
				}
			},
		})
	}

	report, err := ingestor.Run(ctx, opts)
	if err != nil {
		return err
	}
	printReport(cmd, report)
	return nil
}

func printReport(cmd *cobra.Command, report ingest.Report) {
	if ingestJSON {
		helper.PrettyPrint(cmd.OutOrStdout(), report)
		return
	}
	cmd.Printf("Run %s: %s\n", report.RunID, report.Status)
	cmd.Printf("  documents: %d  chunks: %d  embedded: %d  skipped: %d  pruned: %t  (%s)\n",
		report.Documents, report.Chunks, report.Embedded, report.Skipped, report.Pruned, report.Duration.Round(time.Millisecond))
}
