package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/dropzone/internal/cutter"
	"github.com/smazurov/dropzone/internal/ffmpeg"
)

func encodeOptions(cmd *cobra.Command, software bool) []cutter.EncodeOption {
	out := cmd.ErrOrStderr()
	last := -1
	opts := []cutter.EncodeOption{
		cutter.WithProgress(func(percent float64, _ ffmpeg.Progress) {
			if p := int(percent); p/10 != last/10 {
				last = p
				fmt.Fprintf(out, "  %3d%%\n", p)
			}
		}),
	}
	if software {
		opts = append(opts, cutter.WithSoftware())
	}
	return opts
}

// CreateTrimCmd creates the trim command.
func CreateTrimCmd() *cobra.Command {
	var start, end timecode
	var software, asJSON bool

	cmd := &cobra.Command{
		Use:   "trim [file]",
		Short: "Keep a time range of a video, in place",
		Long: `Keeps [start, end) of the file and replaces it. Cut points on keyframes are stream copied; ` +
			`otherwise only the frames around the cut points are re-encoded when the kept middle is long enough.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if end <= start {
				return fmt.Errorf("--end (%s) must be after --start (%s)", end.String(), start.String())
			}
			engine, err := loadEngine(cmd)
			if err != nil {
				return err
			}
			plan, err := engine.Trim(cmd.Context(), args[0], float64(start), float64(end), encodeOptions(cmd, software)...)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), plan)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "trimmed %s using %s (%d segments, %.2fs)\n",
				args[0], plan.Strategy, len(plan.Segments), plan.Duration())
			return nil
		},
	}

	cmd.Flags().Var(&start, "start", "Start of the kept range, seconds or [hh:]mm:ss")
	cmd.Flags().Var(&end, "end", "End of the kept range, seconds or [hh:]mm:ss")
	cmd.Flags().BoolVar(&software, "software", false, "Do not use hardware encoders")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the executed plan as JSON")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

// CreateSplitCmd creates the split command.
func CreateSplitCmd() *cobra.Command {
	var at timecode
	var first, second string
	var software, asJSON bool

	cmd := &cobra.Command{
		Use:   "split [file]",
		Short: "Cut a video into two parts",
		Long:  `Writes <name>_part1 and <name>_part2 next to the source unless --first and --second are given. The source is kept.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := loadEngine(cmd)
			if err != nil {
				return err
			}
			if first == "" || second == "" {
				first, second = cutter.SplitOutputs(args[0])
			}
			plan, err := engine.Split(cmd.Context(), args[0], float64(at), first, second, encodeOptions(cmd, software)...)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), plan)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "split %s using %s\n  %s\n  %s\n", args[0], plan.Strategy, first, second)
			return nil
		},
	}

	cmd.Flags().Var(&at, "at", "Split point, seconds or [hh:]mm:ss")
	cmd.Flags().StringVar(&first, "first", "", "Output path of the first part")
	cmd.Flags().StringVar(&second, "second", "", "Output path of the second part")
	cmd.Flags().BoolVar(&software, "software", false, "Do not use hardware encoders")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the executed plan as JSON")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}
