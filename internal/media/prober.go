package media

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/smazurov/dropzone/internal/logging"
	"github.com/smazurov/dropzone/internal/process"
)

// Prober wraps ffprobe. Video info and keyframe lists are cached per path
// for the lifetime of the Prober; Invalidate must be called after a file is
// rewritten.
type Prober struct {
	runner process.Runner
	binary string
	logger logging.Logger

	mu        sync.RWMutex
	keyframes map[string]KeyframeIndex
	infos     map[string]cachedInfo
}

type cachedInfo struct {
	info    *VideoInfo
	size    int64
	modTime time.Time
}

// NewProber creates a Prober using the given ffprobe binary.
func NewProber(runner process.Runner, binary string, logger logging.Logger) *Prober {
	if binary == "" {
		binary = "ffprobe"
	}
	return &Prober{
		runner:    runner,
		binary:    binary,
		logger:    logger,
		keyframes: make(map[string]KeyframeIndex),
		infos:     make(map[string]cachedInfo),
	}
}

// ffprobe JSON output.
type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecName    string            `json:"codec_name"`
	CodecType    string            `json:"codec_type"`
	Width        int               `json:"width,omitempty"`
	Height       int               `json:"height,omitempty"`
	PixFmt       string            `json:"pix_fmt,omitempty"`
	RFrameRate   string            `json:"r_frame_rate,omitempty"`
	AvgFrameRate string            `json:"avg_frame_rate,omitempty"`
	BitRate      string            `json:"bit_rate,omitempty"`
	Duration     string            `json:"duration,omitempty"`
	SampleRate   string            `json:"sample_rate,omitempty"`
	Channels     int               `json:"channels,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
}

type probeFormat struct {
	Duration string            `json:"duration"`
	Size     string            `json:"size"`
	BitRate  string            `json:"bit_rate"`
	Tags     map[string]string `json:"tags,omitempty"`
}

type keyframeOutput struct {
	Frames []struct {
		PTSTime        string `json:"pts_time"`
		BestEffortTime string `json:"best_effort_timestamp_time"`
	} `json:"frames"`
}

func key(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// VideoInfo probes stream and format metadata for path.
func (p *Prober) VideoInfo(ctx context.Context, path string) (*VideoInfo, error) {
	k := key(path)
	st, statErr := os.Stat(path)
	if statErr == nil {
		p.mu.RLock()
		cached, ok := p.infos[k]
		p.mu.RUnlock()
		if ok && cached.size == st.Size() && cached.modTime.Equal(st.ModTime()) {
			return cached.info, nil
		}
	}

	res, err := p.runner.Run(ctx, process.Command{
		Name: p.binary,
		Args: []string{"-v", "error", "-print_format", "json", "-show_streams", "-show_format", path},
	})
	if err != nil {
		if process.IsCanceled(err) {
			return nil, err
		}
		return nil, &ProbeError{Code: ErrCodeProbeFailed, Path: path, Message: "ffprobe failed", Cause: err}
	}

	info, err := parseVideoInfo(res.Stdout)
	if err != nil {
		if pe, ok := err.(*ProbeError); ok {
			pe.Path = path
		}
		return nil, err
	}

	if statErr == nil {
		p.mu.Lock()
		p.infos[k] = cachedInfo{info: info, size: st.Size(), modTime: st.ModTime()}
		p.mu.Unlock()
	}
	return info, nil
}

func parseVideoInfo(data []byte) (*VideoInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &ProbeError{Code: ErrCodeInvalidOutput, Message: "cannot parse ffprobe output", Cause: err}
	}

	var video, audio *probeStream
	for i := range out.Streams {
		s := &out.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil {
				video = s
			}
		case "audio":
			if audio == nil {
				audio = s
			}
		}
	}
	if video == nil {
		return nil, &ProbeError{Code: ErrCodeNoVideoStream, Message: "no video stream"}
	}

	rate := video.RFrameRate
	if rate == "" || rate == "0/0" {
		rate = video.AvgFrameRate
	}

	duration := parseFloat(out.Format.Duration)
	if duration <= 0 {
		duration = parseFloat(video.Duration)
	}
	if duration < 0 {
		duration = 0
	}

	info := &VideoInfo{
		DurationMs:   int64(duration*1000 + 0.5),
		FPS:          ParseFrameRate(rate),
		FrameRate:    rate,
		Width:        video.Width,
		Height:       video.Height,
		VideoCodec:   video.CodecName,
		PixelFormat:  video.PixFmt,
		VideoBitrate: parseInt(video.BitRate),
		CreationTime: creationTime(out.Format.Tags, video.Tags),
	}

	if audio != nil {
		info.Audio = &AudioInfo{
			Codec:      audio.CodecName,
			Bitrate:    parseInt(audio.BitRate),
			SampleRate: int(parseInt(audio.SampleRate)),
			Channels:   audio.Channels,
		}
	}
	return info, nil
}

func creationTime(tagSets ...map[string]string) time.Time {
	for _, tags := range tagSets {
		raw, ok := tags["creation_time"]
		if !ok {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseInt(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Keyframes returns the keyframe index of path, probing on first use or
// when forceRefresh is set. Failures yield an empty index.
func (p *Prober) Keyframes(ctx context.Context, path string, forceRefresh bool) KeyframeIndex {
	k := key(path)
	if !forceRefresh {
		p.mu.RLock()
		idx, ok := p.keyframes[k]
		p.mu.RUnlock()
		if ok {
			return idx
		}
	}

	idx, err := p.probeKeyframes(ctx, path)
	if err != nil {
		p.logger.Warn("Keyframe probe failed, treating file as unseekable", "path", path, "error", err)
		return KeyframeIndex{}
	}

	p.mu.Lock()
	p.keyframes[k] = idx
	p.mu.Unlock()

	p.logger.Debug("Keyframes indexed", "path", path, "count", len(idx))
	return idx
}

func (p *Prober) probeKeyframes(ctx context.Context, path string) (KeyframeIndex, error) {
	res, err := p.runner.Run(ctx, process.Command{
		Name: p.binary,
		Args: []string{
			"-v", "error",
			"-select_streams", "v:0",
			"-skip_frame", "nokey",
			"-show_entries", "frame=pts_time,best_effort_timestamp_time",
			"-of", "json",
			path,
		},
	})
	if err != nil {
		return nil, err
	}
	return parseKeyframes(res.Stdout)
}

func parseKeyframes(data []byte) (KeyframeIndex, error) {
	var out keyframeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}

	ts := make([]float64, 0, len(out.Frames))
	for _, f := range out.Frames {
		raw := f.PTSTime
		if raw == "" || raw == "N/A" {
			raw = f.BestEffortTime
		}
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		ts = append(ts, t)
	}
	return NewKeyframeIndex(ts), nil
}

// KeyframeBefore returns the last keyframe at or before t.
func (p *Prober) KeyframeBefore(ctx context.Context, path string, t float64) float64 {
	return p.Keyframes(ctx, path, false).Before(t)
}

// KeyframeAfter returns the first keyframe at or after t.
func (p *Prober) KeyframeAfter(ctx context.Context, path string, t float64) float64 {
	return p.Keyframes(ctx, path, false).After(t)
}

// IsOnKeyframe reports whether a keyframe lies within one frame of t.
func (p *Prober) IsOnKeyframe(ctx context.Context, path string, t, fps float64) bool {
	return p.Keyframes(ctx, path, false).Near(t, FrameDuration(fps))
}

// Invalidate drops cached data for path.
func (p *Prober) Invalidate(path string) {
	k := key(path)
	p.mu.Lock()
	delete(p.keyframes, k)
	delete(p.infos, k)
	p.mu.Unlock()
}
