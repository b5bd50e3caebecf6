package ffmpeg

import (
	"strconv"
	"strings"
)

// BaseArgs are prepended to every ffmpeg invocation.
// level+warning prefixes stderr lines with their level for ParseLogLevel.
func BaseArgs() []string {
	return []string{"-hide_banner", "-loglevel", "level+warning", "-y"}
}

// BuildArgs builds ffmpeg arguments from structured parameters.
func BuildArgs(p *Params) []string {
	args := BaseArgs()

	if p.Progress {
		args = append(args, "-progress", "pipe:1", "-nostats")
	}

	args = append(args, p.GlobalArgs...)
	args = append(args, p.InputArgs...)

	if p.Start > 0 {
		args = append(args, "-ss", FormatSeconds(p.Start))
	}
	args = append(args, "-i", p.Input)

	// Secondary inputs come before -t so it stays an output option.
	for _, extra := range p.ExtraInputs {
		args = append(args, extra...)
	}

	if p.Duration > 0 {
		args = append(args, "-t", FormatSeconds(p.Duration))
	}

	for _, m := range p.Maps {
		args = append(args, "-map", m)
	}

	if p.Copy {
		args = append(args, "-c", "copy")
	} else {
		args = appendVideo(args, p)
		args = appendAudio(args, p)
	}

	for _, opt := range p.Options {
		args = append(args, optionArgs[opt]...)
	}

	return append(args, p.Output)
}

func appendVideo(args []string, p *Params) []string {
	if len(p.VideoFilters) > 0 {
		args = append(args, "-vf", strings.Join(p.VideoFilters, ","))
	}
	if p.FrameRate > 0 {
		args = append(args, "-r", strconv.Itoa(p.FrameRate))
	}

	args = append(args, "-c:v", p.Encoder)
	args = append(args, p.EncoderArgs...)

	if p.PixelFormat != "" {
		args = append(args, "-pix_fmt", p.PixelFormat)
	}

	if p.GOP > 0 {
		args = append(args, "-g", strconv.Itoa(p.GOP))
		// Fixed GOP for software encoders; hardware encoders reject or ignore these.
		if !IsHardwareEncoder(p.Encoder) {
			args = append(args, "-keyint_min", strconv.Itoa(p.GOP), "-sc_threshold", "0")
		}
	}
	if p.BFrames >= 0 {
		args = append(args, "-bf", strconv.Itoa(p.BFrames))
	}
	if p.ForceKeyframe {
		args = append(args, "-force_key_frames", "0")
	}
	return args
}

func appendAudio(args []string, p *Params) []string {
	if p.AudioCodec == "" {
		return args
	}
	args = append(args, "-c:a", p.AudioCodec)
	if p.AudioBitrate != "" {
		args = append(args, "-b:a", p.AudioBitrate)
	}
	if p.AudioSampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(p.AudioSampleRate))
	}
	if p.AudioChannels > 0 {
		args = append(args, "-ac", strconv.Itoa(p.AudioChannels))
	}
	return args
}

// FormatSeconds renders seconds with millisecond precision.
func FormatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
