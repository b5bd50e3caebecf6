package cmd

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/dropzone/internal/cache"
	"github.com/smazurov/dropzone/internal/history"
	"github.com/smazurov/dropzone/internal/logging"
)

func openHistory(cmd *cobra.Command) (*history.Store, error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	path := settings.Paths.History
	if path == "" {
		path = history.DefaultPath()
	}
	return history.Open(path, logging.GetLogger("history"))
}

// CreateHistoryCmd creates the history command group.
func CreateHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the processed clip history",
	}
	cmd.AddCommand(createHistoryListCmd(), createHistoryCheckCmd(), createHistoryMarkCmd(), createHistoryForgetCmd())
	return cmd
}

func createHistoryListCmd() *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List processed clips, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), records)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSIZE\tSTATUS\tPROCESSED")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, cache.FormatSize(r.Size), r.Status, r.ProcessedAt.Local().Format(time.DateTime))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of records")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print machine readable output")
	return cmd
}

func createHistoryCheckCmd() *cobra.Command {
	var newOnly bool

	cmd := &cobra.Command{
		Use:   "check [file...]",
		Short: "Show which clips still need processing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			ids := make([]cache.Identity, len(args))
			for i, path := range args {
				if ids[i], err = cache.NewIdentity(path); err != nil {
					return err
				}
			}
			pending, err := store.Pending(cmd.Context(), ids)
			if err != nil {
				return err
			}
			todo := make(map[cache.Identity]bool, len(pending))
			for _, id := range pending {
				todo[id] = true
			}

			for i, path := range args {
				switch {
				case newOnly && todo[ids[i]]:
					fmt.Fprintln(cmd.OutOrStdout(), path)
				case newOnly:
				case todo[ids[i]]:
					fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", "new", path)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", "processed", path)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&newOnly, "new-only", false, "Print only the paths that still need processing")
	return cmd
}

func createHistoryMarkCmd() *cobra.Command {
	status := statusValue(history.StatusProcessed)
	var message string

	cmd := &cobra.Command{
		Use:   "mark [file...]",
		Short: "Record clips as processed, uploaded or failed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := history.Status(status)
			store, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			for _, path := range args {
				id, err := cache.NewIdentity(path)
				if err != nil {
					return err
				}
				if err := store.MarkProcessed(cmd.Context(), id, st, path, message); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().Var(&status, "status", "processed, uploaded or failed")
	cmd.Flags().StringVar(&message, "message", "", "Optional note")
	return cmd
}

func createHistoryForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget [name] [size]",
		Short: "Remove a clip so the next import processes it again",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid size %q: %w", args[1], err)
			}
			store, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			ok, err := store.Forget(cmd.Context(), cache.Identity{Name: args[0], Size: size})
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no record for %s (%d bytes)", args[0], size)
			}
			return nil
		},
	}
}
