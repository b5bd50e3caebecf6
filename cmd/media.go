package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smazurov/dropzone/internal/cache"
	"github.com/smazurov/dropzone/internal/ffmpeg"
)

// CreateProbeCmd creates the probe command.
func CreateProbeCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe [file...]",
		Short: "Show video properties",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := loadEngine(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, path := range args {
				info, err := engine.Prober.VideoInfo(cmd.Context(), path)
				if err != nil {
					return err
				}
				if asJSON {
					if err := writeJSON(out, info); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(out, "%s\n  %s  %s  %s %s\n", path,
					cache.FormatDuration(info.Duration()), cache.FormatLabel(info), info.VideoCodec, info.PixelFormat)
				if info.Audio != nil {
					fmt.Fprintf(out, "  audio: %s %d Hz %d ch\n", info.Audio.Codec, info.Audio.SampleRate, info.Audio.Channels)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print machine readable output")
	return cmd
}

// CreateKeyframesCmd creates the keyframes command.
func CreateKeyframesCmd() *cobra.Command {
	var refresh, asJSON bool

	cmd := &cobra.Command{
		Use:   "keyframes [file]",
		Short: "List keyframe timestamps",
		Long:  `Lists the keyframes of the first video stream. An empty list means cuts in this file are always re-encoded.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := loadEngine(cmd)
			if err != nil {
				return err
			}
			idx := engine.Prober.Keyframes(cmd.Context(), args[0], refresh)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), idx)
			}
			parts := make([]string, len(idx))
			for i, t := range idx {
				parts[i] = ffmpeg.FormatSeconds(t)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d keyframes\n%s\n", len(idx), strings.Join(parts, " "))
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Ignore cached keyframe data")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print machine readable output")
	return cmd
}

// CreateDetectHWCmd creates the detect-hw command.
func CreateDetectHWCmd() *cobra.Command {
	var refresh, asJSON bool

	cmd := &cobra.Command{
		Use:   "detect-hw",
		Short: "Detect hardware video encoders",
		Long: `Probes the GPU vendor and test-encodes with each candidate encoder. The result is cached ` +
			`for a week; --refresh probes again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := loadEngine(cmd)
			if err != nil {
				return err
			}
			detect := engine.Detector.Detect
			if refresh {
				detect = engine.Detector.Refresh
			}
			profile, err := detect(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), profile)
			}
			fmt.Fprintln(cmd.OutOrStdout(), profile.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Discard the cached profile")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print machine readable output")
	return cmd
}
