package cutter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/smazurov/dropzone/internal/ffmpeg"
	"github.com/smazurov/dropzone/internal/logging"
	"github.com/smazurov/dropzone/internal/process"
)

// Assembler joins same-codec files with ffmpeg's concat demuxer.
type Assembler struct {
	runner      process.Runner
	invalidator Invalidator
	ffmpegBin   string
	logger      logging.Logger
}

// NewAssembler creates an Assembler.
func NewAssembler(runner process.Runner, invalidator Invalidator, ffmpegBin string, logger logging.Logger) *Assembler {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	return &Assembler{runner: runner, invalidator: invalidator, ffmpegBin: ffmpegBin, logger: logger}
}

// Concat writes the files in order to output. The manifest is always
// removed; the inputs are left for the caller to clean up.
func (a *Assembler) Concat(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return &Error{Code: ErrCodeConcatFailed, Message: "no inputs"}
	}
	if err := process.Check(ctx, process.CheckpointBeforeConcat); err != nil {
		return err
	}

	manifest, err := writeManifest(filepath.Dir(output), inputs)
	if err != nil {
		return &Error{Code: ErrCodeConcatFailed, Message: "cannot write concat manifest", Cause: err}
	}
	defer os.Remove(manifest)

	p := ffmpeg.NewParams()
	p.InputArgs = []string{"-f", "concat", "-safe", "0"}
	p.Input = manifest
	p.Copy = true
	p.Options = []ffmpeg.OptionType{ffmpeg.OptionFastStart}
	p.Output = output

	cmd := process.Command{Name: a.ffmpegBin, Args: ffmpeg.BuildArgs(p)}
	a.logger.Debug("Concatenating", "inputs", len(inputs), "output", output)
	if _, err := a.runner.Run(ctx, cmd); err != nil {
		removePartial(output)
		if process.IsCanceled(err) {
			return err
		}
		return failure(ErrCodeConcatFailed, fmt.Sprintf("concat of %d files failed", len(inputs)), err)
	}
	a.invalidator.Invalidate(output)
	return nil
}

func writeManifest(dir string, inputs []string) (string, error) {
	f, err := os.CreateTemp(dir, "concat_*.txt")
	if err != nil {
		return "", err
	}
	_, werr := f.WriteString(Manifest(inputs))
	cerr := f.Close()
	if werr != nil || cerr != nil {
		os.Remove(f.Name())
		if werr != nil {
			return "", werr
		}
		return "", cerr
	}
	return f.Name(), nil
}

// Manifest renders a concat demuxer list: one absolute, forward-slashed,
// quoted path per line.
func Manifest(inputs []string) string {
	var b strings.Builder
	for _, in := range inputs {
		path := in
		if abs, err := filepath.Abs(in); err == nil {
			path = abs
		}
		path = strings.ReplaceAll(path, `\`, "/")
		path = strings.ReplaceAll(path, "'", `'\''`)
		fmt.Fprintf(&b, "file '%s'\n", path)
	}
	return b.String()
}
