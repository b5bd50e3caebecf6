package cutter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/smazurov/dropzone/internal/ffmpeg"
	"github.com/smazurov/dropzone/internal/logging"
	"github.com/smazurov/dropzone/internal/media"
	"github.com/smazurov/dropzone/internal/metrics"
	"github.com/smazurov/dropzone/internal/process"
)

// Prober is the subset of *media.Prober the cut service needs.
type Prober interface {
	VideoInfo(ctx context.Context, path string) (*media.VideoInfo, error)
	Keyframes(ctx context.Context, path string, forceRefresh bool) media.KeyframeIndex
	Invalidate(path string)
}

// Cutter trims and splits single files using the cheapest plan.
type Cutter struct {
	prober    Prober
	encoder   *Encoder
	assembler *Assembler
	logger    logging.Logger
}

// New creates a Cutter.
func New(prober Prober, encoder *Encoder, assembler *Assembler, logger logging.Logger) *Cutter {
	return &Cutter{prober: prober, encoder: encoder, assembler: assembler, logger: logger}
}

// Trim keeps [start, end) of path, rewriting the file in place.
func (c *Cutter) Trim(ctx context.Context, path string, start, end float64, opts ...EncodeOption) (Plan, error) {
	info, err := c.prober.VideoInfo(ctx, path)
	if err != nil {
		return Plan{}, err
	}
	if d := info.Duration(); d > 0 && end > d {
		end = d
	}

	plan, err := PlanTrim(start, end, info.FPS, c.prober.Keyframes(ctx, path, false))
	if err != nil {
		return Plan{}, err
	}
	metrics.RecordPlan("trim", string(plan.Strategy))
	c.logger.Info("Trimming", "path", path, "start", start, "end", end,
		"strategy", plan.Strategy, "segments", len(plan.Segments))

	work, err := os.MkdirTemp(filepath.Dir(path), ".trim-*")
	if err != nil {
		return plan, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(work)

	out := filepath.Join(work, "trimmed"+extOf(path))
	if err := c.execute(ctx, path, out, work, plan.Segments, info, opts); err != nil {
		return plan, err
	}
	if err := os.Rename(out, path); err != nil {
		return plan, fmt.Errorf("replace %s: %w", path, err)
	}
	c.prober.Invalidate(path)
	return plan, nil
}

// SplitOutputs returns the default part paths for a split of path.
func SplitOutputs(path string) (first, second string) {
	ext := extOf(path)
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	return stem + "_part1" + ext, stem + "_part2" + ext
}

// Split cuts path at t into first and second. Empty output paths default
// to SplitOutputs. The source is left untouched.
func (c *Cutter) Split(ctx context.Context, path string, at float64, first, second string, opts ...EncodeOption) (SplitPlan, error) {
	if first == "" || second == "" {
		first, second = SplitOutputs(path)
	}
	info, err := c.prober.VideoInfo(ctx, path)
	if err != nil {
		return SplitPlan{}, err
	}

	plan, err := PlanSplit(at, info.Duration(), info.FPS, c.prober.Keyframes(ctx, path, false))
	if err != nil {
		return SplitPlan{}, err
	}
	metrics.RecordPlan("split", string(plan.Strategy))
	c.logger.Info("Splitting", "path", path, "at", at, "strategy", plan.Strategy)

	work, err := os.MkdirTemp(filepath.Dir(path), ".split-*")
	if err != nil {
		return plan, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(work)

	for i, part := range []struct {
		segs []Segment
		out  string
	}{{plan.First, first}, {plan.Second, second}} {
		dir := filepath.Join(work, fmt.Sprintf("part%d", i+1))
		if err := os.Mkdir(dir, 0o755); err != nil {
			return plan, err
		}
		if err := c.execute(ctx, path, part.out, dir, part.segs, info, opts); err != nil {
			os.Remove(first)
			return plan, err
		}
	}
	return plan, nil
}

// execute runs segs in order and joins them into out. Segment files live
// in work.
func (c *Cutter) execute(ctx context.Context, input, out, work string, segs []Segment, info *media.VideoInfo, opts []EncodeOption) error {
	if len(segs) == 1 {
		return c.encoder.Encode(ctx, input, out, segs[0], info, opts...)
	}

	o := collect(opts)
	total := totalDuration(segs)
	var done float64

	files := make([]string, 0, len(segs))
	for i, seg := range segs {
		if err := process.Check(ctx, process.CheckpointBeforeSegment); err != nil {
			return err
		}
		file := filepath.Join(work, fmt.Sprintf("seg_%02d%s", i, extOf(input)))
		segOpts := opts
		if o.progress != nil && total > 0 {
			offset := done
			segOpts = append(segOpts[:len(segOpts):len(segOpts)], WithProgress(func(pct float64, p ffmpeg.Progress) {
				o.progress((offset+seg.Duration*pct/100)/total*100, p)
			}))
		}
		if err := c.encoder.Encode(ctx, input, file, seg, info, segOpts...); err != nil {
			return err
		}
		files = append(files, file)
		done += seg.Duration
	}
	return c.assembler.Concat(ctx, files, out)
}

func extOf(path string) string {
	if ext := filepath.Ext(path); ext != "" {
		return ext
	}
	return ".mp4"
}
