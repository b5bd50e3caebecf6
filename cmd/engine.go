package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/smazurov/dropzone/internal/cache"
	"github.com/smazurov/dropzone/internal/config"
	"github.com/smazurov/dropzone/internal/cutter"
	"github.com/smazurov/dropzone/internal/ffmpeg"
	"github.com/smazurov/dropzone/internal/hardware"
	"github.com/smazurov/dropzone/internal/logging"
	"github.com/smazurov/dropzone/internal/media"
	"github.com/smazurov/dropzone/internal/preview"
	"github.com/smazurov/dropzone/internal/process"
)

// Engine holds the media components built from one Settings value.
type Engine struct {
	Settings   config.Settings
	Runner     *process.ExecRunner
	Prober     *media.Prober
	Detector   *hardware.Detector
	Signatures *ffmpeg.SignatureTable
	Encoder    *cutter.Encoder
	Assembler  *cutter.Assembler
	Cutter     *cutter.Cutter
	Cache      *cache.Cache
}

// NewEngine wires the probe, hardware, encode and cut layers.
func NewEngine(s config.Settings) *Engine {
	runner := process.NewRunner(
		logging.GetLogger("process"),
		process.WithLogParser(logging.GetLogger("ffmpeg"), ffmpeg.ParseLogLevel),
	)

	var hwOpts []hardware.Option
	if s.Paths.HardwareCache != "" {
		hwOpts = append(hwOpts, hardware.WithCachePath(s.Paths.HardwareCache))
	}
	detector := hardware.NewDetector(runner, s.FFmpeg.Binary, logging.GetLogger("hardware"), hwOpts...)

	prober := media.NewProber(runner, s.FFmpeg.ProbeBinary, logging.GetLogger("media"))
	signatures := ffmpeg.NewSignatureTable(s.FFmpeg.FailureSignatures...)
	encoder := cutter.NewEncoder(runner, prober, cutter.EncoderConfig{
		FFmpegBinary:    s.FFmpeg.Binary,
		Hardware:        detector,
		HardwareEnabled: s.Processing.HardwareAcceleration,
		Signatures:      signatures,
		Target:          s.EncodeTarget(),
	}, logging.GetLogger("encoder"))
	assembler := cutter.NewAssembler(runner, prober, s.FFmpeg.Binary, logging.GetLogger("cutter"))

	return &Engine{
		Settings:   s,
		Runner:     runner,
		Prober:     prober,
		Detector:   detector,
		Signatures: signatures,
		Encoder:    encoder,
		Assembler:  assembler,
		Cutter:     cutter.New(prober, encoder, assembler, logging.GetLogger("cutter")),
		Cache:      cache.New(logging.GetLogger("cache")),
	}
}

// Apply pushes reloadable settings into the running components. Binary
// paths and the hardware cache location need a restart.
func (e *Engine) Apply(s config.Settings) {
	e.Settings = s
	e.Encoder.SetHardwareEnabled(s.Processing.HardwareAcceleration)
	e.Encoder.SetTarget(s.EncodeTarget())
	e.Signatures.Replace(s.FFmpeg.FailureSignatures)
}

// Orchestrator creates a preview orchestrator over the engine's cache.
func (e *Engine) Orchestrator(notifier preview.Notifier) *preview.Orchestrator {
	return preview.NewOrchestrator(preview.Deps{
		Prober:    e.Prober,
		Encoder:   e.Encoder,
		Assembler: e.Assembler,
		Cache:     e.Cache,
		Hardware:  e.Detector,
		Notifier:  notifier,
	}, e.Settings.PreviewConfig(), logging.GetLogger("preview"))
}

// Trim cuts path in place. When path is a preview working copy, its
// cached display metadata is refreshed.
func (e *Engine) Trim(ctx context.Context, path string, start, end float64, opts ...cutter.EncodeOption) (cutter.Plan, error) {
	plan, err := e.Cutter.Trim(ctx, path, start, end, opts...)
	if err != nil {
		return plan, err
	}
	e.refreshCopy(ctx, path)
	return plan, nil
}

// Split writes both halves of path; the source is left untouched.
func (e *Engine) Split(ctx context.Context, path string, at float64, first, second string, opts ...cutter.EncodeOption) (cutter.SplitPlan, error) {
	return e.Cutter.Split(ctx, path, at, first, second, opts...)
}

func (e *Engine) refreshCopy(ctx context.Context, path string) {
	id, ok := e.Cache.OwnerOf(path)
	if !ok {
		return
	}
	st, err := os.Stat(path)
	if err != nil {
		return
	}
	info, err := e.Prober.VideoInfo(ctx, path)
	if err != nil {
		logging.GetLogger("cache").Warn("Cannot refresh trimmed copy metadata", "path", path, "error", err)
		return
	}
	e.Cache.SetMetadata(id, cache.NewMetadata(info, st.Size(), st.ModTime()))
}

// loadEngine builds an Engine from the file named by the persistent
// --config flag.
func loadEngine(cmd *cobra.Command) (*Engine, error) {
	s, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	return NewEngine(s), nil
}

func loadSettings(cmd *cobra.Command) (config.Settings, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.LoadSettings(path)
}
