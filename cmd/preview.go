package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smazurov/dropzone/internal/cache"
	"github.com/smazurov/dropzone/internal/history"
	"github.com/smazurov/dropzone/internal/logging"
	"github.com/smazurov/dropzone/internal/preview"
	"github.com/smazurov/dropzone/internal/process"
)

// CreatePreviewCmd creates the preview command.
func CreatePreviewCmd() *cobra.Command {
	var workDir string
	var sequential, record bool

	cmd := &cobra.Command{
		Use:   "preview [file...]",
		Short: "Build a combined preview of clips in order",
		Long: `Prepares a working copy of every clip and concatenates them into preview_combined.mp4 in the work ` +
			`directory. Clips with matching formats are stream copied; mixed formats are standardized to the ` +
			`configured target. Ctrl-C cancels and removes all working copies.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			if workDir != "" {
				settings.Paths.WorkDir = workDir
			}
			if sequential {
				settings.Processing.Parallel = false
			}
			engine := NewEngine(settings)
			orch := engine.Orchestrator(newConsoleNotifier(cmd.OutOrStdout()))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := orch.Build(ctx, args)
			if process.IsCanceled(err) {
				orch.Reset()
				return err
			}
			if err != nil {
				return err
			}

			cached := 0
			for _, f := range res.Files {
				if f.Cached {
					cached++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %d copied, %d encoded, %d cached\n",
				res.Path, res.Initial, res.Copied, res.Encoded, cached)
			if record {
				recordProcessed(ctx, settings.Paths.History, args)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&workDir, "work-dir", "", "Directory for working copies (default from settings)")
	cmd.Flags().BoolVar(&sequential, "sequential", false, "Standardize one clip at a time")
	cmd.Flags().BoolVar(&record, "record", false, "Record the clips in the processed history")
	return cmd
}

func recordProcessed(ctx context.Context, dbPath string, sources []string) {
	logger := logging.GetLogger("history")
	if dbPath == "" {
		dbPath = history.DefaultPath()
	}
	store, err := history.Open(dbPath, logger)
	if err != nil {
		logger.Warn("History unavailable", "error", err)
		return
	}
	defer store.Close()

	for _, src := range sources {
		id, err := cache.NewIdentity(src)
		if err != nil {
			continue
		}
		if err := store.MarkProcessed(ctx, id, history.StatusProcessed, src, string(preview.StateCombined)); err != nil {
			logger.Warn("Failed to record clip", "path", src, "error", err)
		}
	}
}
