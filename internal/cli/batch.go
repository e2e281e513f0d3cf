package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/sheetblocks/pkg/match"
	"github.com/matzehuels/sheetblocks/pkg/pipeline"
	"github.com/matzehuels/sheetblocks/pkg/watch"
)

// batchCommand creates the batch command.
func (c *CLI) batchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "batch FILE...",
		Short: "Upload files and label each with the first matching template",
		Long: `Upload every file, detect its blocks and copy the labels of the first
saved template with a compatible layout. Templates are tried in the order
they were saved. A file that fails does not stop the others.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withService(ctx, func(svc *pipeline.Service) error {
				spinner := startSpinner(ctx, os.Stderr, "Reading files...")
				items, err := readItems(args, func(i int, path string) {
					spinner.Update("Reading %s (%d/%d)", filepath.Base(path), i+1, len(args))
				})
				if err != nil {
					spinner.Stop()
					return err
				}

				spinner.Update("Matching %d files...", len(items))
				outcomes, stats, err := svc.Batch(ctx, items)
				spinner.Stop()
				if err != nil {
					return err
				}
				for _, o := range outcomes {
					printOutcome(o)
				}
				printBatchStats(stats)
				if stats.Failed > 0 {
					return fmt.Errorf("%d of %d files failed", stats.Failed, stats.Files)
				}
				return nil
			})
		},
	}
}

// readItems loads every path into a batch item named after its base name.
func readItems(paths []string, onRead func(i int, path string)) ([]match.Item, error) {
	items := make([]match.Item, 0, len(paths))
	for i, path := range paths {
		if onRead != nil {
			onRead(i, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		items = append(items, match.Item{Filename: filepath.Base(path), Data: data})
	}
	return items, nil
}

func printBatchStats(s pipeline.Stats) {
	printNewline()
	printDetail("%s files, %s matched, %s failed in %s",
		StyleNumber.Render(fmt.Sprint(s.Files)),
		StyleNumber.Render(fmt.Sprint(s.Matched)),
		StyleNumber.Render(fmt.Sprint(s.Failed)),
		s.Duration.Round(time.Millisecond))
}

// watchCommand creates the watch command.
func (c *CLI) watchCommand() *cobra.Command {
	var (
		initialScan bool
		debounce    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch DIR...",
		Short: "Batch-process spreadsheets as they appear in directories",
		Long: `Watch directories recursively and run every new or changed spreadsheet
through the batch matcher. Runs until interrupted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.config()
			if !cmd.Flags().Changed("initial-scan") {
				initialScan = cfg.Watch.InitialScan
			}
			if !cmd.Flags().Changed("debounce") {
				debounce = cfg.Watch.Debounce.Duration
			}
			return c.withService(cmd.Context(), func(svc *pipeline.Service) error {
				return c.runWatch(cmd.Context(), svc, watch.Config{
					Roots:       args,
					InitialScan: initialScan,
					Debounce:    debounce,
					Logger:      c.Logger,
				})
			})
		},
	}
	cmd.Flags().BoolVar(&initialScan, "initial-scan", false, "also process files that already exist")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before a changed file is processed")
	return cmd
}

func (c *CLI) runWatch(ctx context.Context, svc *pipeline.Service, cfg watch.Config) error {
	paths, errs, err := watch.Start(ctx, cfg)
	if err != nil {
		return err
	}
	printInfo("Watching %d director%s, press Ctrl+C to stop", len(cfg.Roots), plural(len(cfg.Roots), "y", "ies"))

	for {
		select {
		case path, ok := <-paths:
			if !ok {
				return nil
			}
			items, err := readItems([]string{path}, nil)
			if err != nil {
				printWarning("%v", err)
				continue
			}
			outcomes, _, err := svc.Batch(ctx, items)
			if err != nil {
				return err
			}
			for _, o := range outcomes {
				printOutcome(o)
			}
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			c.Logger.Warn("watch", "error", err)
		}
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
