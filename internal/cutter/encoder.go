package cutter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/smazurov/dropzone/internal/ffmpeg"
	"github.com/smazurov/dropzone/internal/hardware"
	"github.com/smazurov/dropzone/internal/logging"
	"github.com/smazurov/dropzone/internal/media"
	"github.com/smazurov/dropzone/internal/metrics"
	"github.com/smazurov/dropzone/internal/process"
)

// SegmentGOP is the keyframe interval of every re-encoded segment. Short,
// fixed GOPs keep later smart cuts on the output cheap.
const SegmentGOP = 30

// ProfileSource resolves the hardware profile. *hardware.Detector implements it.
type ProfileSource interface {
	Detect(ctx context.Context) (*hardware.Profile, error)
}

// Invalidator drops cached probe data for a rewritten file. *media.Prober
// implements it.
type Invalidator interface {
	Invalidate(path string)
}

// Target is the standardization profile for preview working copies.
type Target struct {
	Width           int
	Height          int
	FPS             int
	PixelFormat     string
	AudioCodec      string
	AudioBitrate    string
	AudioSampleRate int
	AudioChannels   int
}

// DefaultTarget is 1080p30 yuv420p with AAC 96k stereo at 48 kHz.
func DefaultTarget() Target {
	return Target{
		Width:           1920,
		Height:          1080,
		FPS:             30,
		PixelFormat:     "yuv420p",
		AudioCodec:      "aac",
		AudioBitrate:    "96k",
		AudioSampleRate: 48000,
		AudioChannels:   2,
	}
}

// EncoderConfig configures an Encoder.
type EncoderConfig struct {
	FFmpegBinary    string
	Hardware        ProfileSource // nil means software only
	HardwareEnabled bool
	Signatures      *ffmpeg.SignatureTable
	Target          Target
}

// Encoder runs single segments and whole-file transcodes through ffmpeg,
// retrying once in software when a hardware encoder fails.
type Encoder struct {
	runner      process.Runner
	invalidator Invalidator
	ffmpegBin   string
	hardware    ProfileSource
	hwEnabled   atomic.Bool
	signatures  *ffmpeg.SignatureTable
	target      atomic.Pointer[Target]
	logger      logging.Logger
}

// NewEncoder creates an Encoder.
func NewEncoder(runner process.Runner, invalidator Invalidator, cfg EncoderConfig, logger logging.Logger) *Encoder {
	if cfg.FFmpegBinary == "" {
		cfg.FFmpegBinary = "ffmpeg"
	}
	if cfg.Signatures == nil {
		cfg.Signatures = ffmpeg.NewSignatureTable()
	}
	if cfg.Target == (Target{}) {
		cfg.Target = DefaultTarget()
	}
	e := &Encoder{
		runner:      runner,
		invalidator: invalidator,
		ffmpegBin:   cfg.FFmpegBinary,
		hardware:    cfg.Hardware,
		signatures:  cfg.Signatures,
		logger:      logger,
	}
	e.hwEnabled.Store(cfg.HardwareEnabled)
	e.target.Store(&cfg.Target)
	return e
}

// SetHardwareEnabled toggles hardware encoding for subsequent calls.
func (e *Encoder) SetHardwareEnabled(enabled bool) {
	e.hwEnabled.Store(enabled)
}

// SetTarget replaces the standardization profile for subsequent calls.
func (e *Encoder) SetTarget(t Target) {
	e.target.Store(&t)
}

// Target returns the current standardization profile.
func (e *Encoder) Target() Target {
	return *e.target.Load()
}

type encodeOptions struct {
	software bool
	progress ffmpeg.ProgressFunc
}

// EncodeOption configures a single Encode, Standardize or Remux call.
type EncodeOption func(*encodeOptions)

// WithSoftware forces software encoding.
func WithSoftware() EncodeOption {
	return func(o *encodeOptions) { o.software = true }
}

// WithProgress receives progress updates while ffmpeg runs.
func WithProgress(fn ffmpeg.ProgressFunc) EncodeOption {
	return func(o *encodeOptions) { o.progress = fn }
}

func collect(opts []EncodeOption) encodeOptions {
	var o encodeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Encode writes one segment of input to output.
func (e *Encoder) Encode(ctx context.Context, input, output string, seg Segment, info *media.VideoInfo, opts ...EncodeOption) error {
	o := collect(opts)
	if err := process.Check(ctx, process.CheckpointBeforeSegment); err != nil {
		return err
	}

	var err error
	if seg.Kind == SegmentCopy {
		err = e.copySegment(ctx, input, output, seg, o)
	} else {
		codec := hardware.CodecFor(info.VideoCodec)
		err = e.transcode(ctx, output, seg.Duration, codec, o, func(hw hardware.EncodingParams) *ffmpeg.Params {
			return segmentParams(input, output, seg, info, hw)
		})
	}
	metrics.RecordSegment(string(seg.Kind), err == nil)
	return err
}

func (e *Encoder) copySegment(ctx context.Context, input, output string, seg Segment, o encodeOptions) error {
	p := ffmpeg.NewParams()
	p.Start = seg.Start
	p.Input = input
	p.Duration = seg.Duration
	p.Maps = []string{"0:v:0", "0:a:0?"}
	p.Copy = true
	p.Options = []ffmpeg.OptionType{ffmpeg.OptionAvoidNegativeTS}
	p.Output = output

	if err := e.run(ctx, p, seg.Duration, o.progress); err != nil {
		removePartial(output)
		if process.IsCanceled(err) {
			return err
		}
		return failure(ErrCodeEncodingFailed, fmt.Sprintf("stream copy of %s failed", filepath.Base(input)), err)
	}
	e.invalidator.Invalidate(output)
	return nil
}

func segmentParams(input, output string, seg Segment, info *media.VideoInfo, hw hardware.EncodingParams) *ffmpeg.Params {
	p := ffmpeg.NewParams()
	p.InputArgs = hw.Input
	p.Start = seg.Start
	p.Input = input
	p.Duration = seg.Duration
	p.Maps = []string{"0:v:0", "0:a:0?"}

	p.Encoder = hw.Encoder
	p.EncoderArgs = hw.Output
	if hw.Filter != "" {
		p.VideoFilters = []string{hw.Filter}
	} else {
		p.PixelFormat = info.PixelFormat
	}
	p.GOP = SegmentGOP
	p.BFrames = 0
	p.ForceKeyframe = seg.ForceKeyframe

	// Match the source audio so segments concatenate with copied ones.
	if a := info.Audio; a != nil {
		p.AudioCodec = audioEncoderFor(a.Codec)
		if a.Bitrate > 0 {
			p.AudioBitrate = strconv.FormatInt(a.Bitrate/1000, 10) + "k"
		}
		p.AudioSampleRate = a.SampleRate
		p.AudioChannels = a.Channels
	}

	p.Progress = true
	p.Options = []ffmpeg.OptionType{ffmpeg.OptionAvoidNegativeTS}
	p.Output = output
	return p
}

func audioEncoderFor(codec string) string {
	switch codec {
	case "opus":
		return "libopus"
	case "mp3":
		return "libmp3lame"
	case "pcm_s16le", "pcm_s24le", "flac", "ac3":
		return codec
	default:
		return "aac"
	}
}

// Standardize re-encodes a whole file to the target profile, letterboxed,
// with silent audio when the source has none.
func (e *Encoder) Standardize(ctx context.Context, input, output string, info *media.VideoInfo, opts ...EncodeOption) error {
	o := collect(opts)
	if err := process.Check(ctx, process.CheckpointBeforeFile); err != nil {
		return err
	}
	target := e.Target()
	return e.transcode(ctx, output, info.Duration(), hardware.CodecH264, o, func(hw hardware.EncodingParams) *ffmpeg.Params {
		return standardizeParams(input, output, info, target, hw)
	})
}

func standardizeParams(input, output string, info *media.VideoInfo, t Target, hw hardware.EncodingParams) *ffmpeg.Params {
	p := ffmpeg.NewParams()
	p.InputArgs = hw.Input
	p.Input = input

	p.VideoFilters = []string{
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", t.Width, t.Height),
		fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2", t.Width, t.Height),
		"setsar=1",
	}
	if hw.Filter != "" {
		p.VideoFilters = append(p.VideoFilters, hw.Filter)
	} else {
		p.PixelFormat = t.PixelFormat
	}
	p.FrameRate = t.FPS
	p.Encoder = hw.Encoder
	p.EncoderArgs = hw.Output
	p.GOP = SegmentGOP
	p.BFrames = 0

	p.Options = []ffmpeg.OptionType{ffmpeg.OptionAvoidNegativeTS, ffmpeg.OptionFastStart}
	if info.Audio == nil {
		layout := "stereo"
		if t.AudioChannels == 1 {
			layout = "mono"
		}
		p.ExtraInputs = [][]string{{
			"-f", "lavfi", "-i",
			fmt.Sprintf("anullsrc=channel_layout=%s:sample_rate=%d", layout, t.AudioSampleRate),
		}}
		p.Maps = []string{"0:v:0", "1:a:0"}
		p.Options = append(p.Options, ffmpeg.OptionShortest)
	} else {
		p.Maps = []string{"0:v:0", "0:a:0"}
	}
	p.AudioCodec = t.AudioCodec
	p.AudioBitrate = t.AudioBitrate
	p.AudioSampleRate = t.AudioSampleRate
	p.AudioChannels = t.AudioChannels

	p.Progress = true
	p.Output = output
	return p
}

// Remux stream-copies the first video and audio stream of input into an
// mp4 working copy.
func (e *Encoder) Remux(ctx context.Context, input, output string, opts ...EncodeOption) error {
	o := collect(opts)
	if err := process.Check(ctx, process.CheckpointBeforeFile); err != nil {
		return err
	}
	p := ffmpeg.NewParams()
	p.Input = input
	p.Maps = []string{"0:v:0", "0:a:0?"}
	p.Copy = true
	p.Options = []ffmpeg.OptionType{ffmpeg.OptionAvoidNegativeTS, ffmpeg.OptionFastStart}
	p.Output = output

	if err := e.run(ctx, p, 0, o.progress); err != nil {
		removePartial(output)
		if process.IsCanceled(err) {
			return err
		}
		return failure(ErrCodeEncodingFailed, fmt.Sprintf("remux of %s failed", filepath.Base(input)), err)
	}
	e.invalidator.Invalidate(output)
	return nil
}

// encodingParams picks hardware or software parameters for codec.
func (e *Encoder) encodingParams(ctx context.Context, codec hardware.Codec, software bool) hardware.EncodingParams {
	if software || e.hardware == nil || !e.hwEnabled.Load() {
		return hardware.SoftwareParams(codec)
	}
	profile, err := e.hardware.Detect(ctx)
	if err != nil {
		e.logger.Warn("Hardware detection failed, encoding in software", "error", err)
		return hardware.SoftwareParams(codec)
	}
	return profile.EncodingParams(codec, true)
}

// transcode runs an encode and applies the hardware fallback policy.
func (e *Encoder) transcode(ctx context.Context, output string, total float64, codec hardware.Codec, o encodeOptions, build func(hardware.EncodingParams) *ffmpeg.Params) error {
	hw := e.encodingParams(ctx, codec, o.software)
	err := e.run(ctx, build(hw), total, o.progress)
	if err == nil {
		e.invalidator.Invalidate(output)
		return nil
	}

	removePartial(output)
	if process.IsCanceled(err) {
		return err
	}

	stderr := stderrOf(err)
	class, pattern := e.signatures.Classify(stderr)
	if !hw.Hardware || class != ffmpeg.FailureHardware {
		e.logger.Debug("Encode failed", "output", output, "encoder", hw.Encoder, "stderr", stderr)
		return failure(ErrCodeEncodingFailed, fmt.Sprintf("%s encode of %s failed", hw.Encoder, filepath.Base(output)), err)
	}

	e.logger.Warn("Hardware encoder failed, retrying in software",
		"encoder", hw.Encoder, "signature", pattern, "output", output)

	sw := hardware.SoftwareParams(codec)
	retryErr := e.run(ctx, build(sw), total, o.progress)
	metrics.RecordHardwareFallback(hw.Encoder, retryErr == nil)
	if retryErr == nil {
		e.invalidator.Invalidate(output)
		return nil
	}

	removePartial(output)
	if process.IsCanceled(retryErr) {
		return retryErr
	}
	e.logger.Debug("Software retry failed", "output", output, "stderr", stderrOf(retryErr))
	return failure(ErrCodeHardwareFallbackExhausted,
		fmt.Sprintf("%s failed and %s retry failed", hw.Encoder, sw.Encoder), retryErr)
}

// run executes one ffmpeg invocation, streaming progress when requested.
func (e *Encoder) run(ctx context.Context, p *ffmpeg.Params, total float64, progress ffmpeg.ProgressFunc) error {
	job := filepath.Base(p.Output)
	if progress != nil {
		p.Progress = true
	}
	cmd := process.Command{Name: e.ffmpegBin, Args: ffmpeg.BuildArgs(p)}

	if p.Progress {
		parser := ffmpeg.NewProgressParser(time.Duration(total*float64(time.Second)), func(percent float64, pr ffmpeg.Progress) {
			metrics.SetFFmpegProgress(job, percent, pr.Speed)
			if progress != nil {
				progress(percent, pr)
			}
		})
		cmd.OnLine = parser.HandleLine
		defer metrics.DeleteFFmpegMetrics(job)
	}

	e.logger.Debug("Running ffmpeg", "command", cmd.String())
	res, err := e.runner.Run(ctx, cmd)
	if err != nil {
		return err
	}
	e.logger.Debug("FFmpeg finished", "output", p.Output, "elapsed", res.Elapsed)
	return nil
}

func removePartial(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.GetLogger("cutter").Warn("Failed to remove partial output", "path", path, "error", err)
	}
}
