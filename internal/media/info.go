package media

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultFPS is used when the container reports no usable frame rate.
const DefaultFPS = 30.0

// VideoInfo is an immutable snapshot of one file's technical properties.
type VideoInfo struct {
	DurationMs   int64      `json:"duration_ms"`
	FPS          float64    `json:"fps"`
	FrameRate    string     `json:"frame_rate"` // raw num/den as reported
	Width        int        `json:"width"`
	Height       int        `json:"height"`
	VideoCodec   string     `json:"video_codec"`
	PixelFormat  string     `json:"pixel_format"`
	VideoBitrate int64      `json:"video_bitrate,omitempty"`
	CreationTime time.Time  `json:"creation_time,omitzero"`
	Audio        *AudioInfo `json:"audio,omitempty"`
}

// AudioInfo describes the first audio stream.
type AudioInfo struct {
	Codec      string `json:"codec"`
	Bitrate    int64  `json:"bitrate,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

// Duration returns the duration as seconds.
func (v *VideoInfo) Duration() float64 {
	return float64(v.DurationMs) / 1000
}

// FrameDuration returns the length of one frame in seconds.
func (v *VideoInfo) FrameDuration() float64 {
	return FrameDuration(v.FPS)
}

// Format is the compatibility key used to decide whether files can be
// concatenated by stream copy.
type Format struct {
	Codec       string `json:"codec"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	FrameRate   string `json:"frame_rate"`
	PixelFormat string `json:"pixel_format"`
}

// Format returns the compatibility key of the file.
func (v *VideoInfo) Format() Format {
	return Format{
		Codec:       v.VideoCodec,
		Width:       v.Width,
		Height:      v.Height,
		FrameRate:   v.FrameRate,
		PixelFormat: v.PixelFormat,
	}
}

func (f Format) String() string {
	return fmt.Sprintf("%s %dx%d@%s %s", f.Codec, f.Width, f.Height, f.FrameRate, f.PixelFormat)
}

// ParseFrameRate parses a "num/den" or decimal rate. Malformed input or a
// zero part yields DefaultFPS.
func ParseFrameRate(s string) float64 {
	s = strings.TrimSpace(s)
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, errN := strconv.ParseFloat(num, 64)
		d, errD := strconv.ParseFloat(den, 64)
		if errN != nil || errD != nil || n <= 0 || d <= 0 {
			return DefaultFPS
		}
		return n / d
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return DefaultFPS
}

// FrameDuration returns 1/fps, using DefaultFPS for non-positive rates.
func FrameDuration(fps float64) float64 {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return 1 / fps
}
