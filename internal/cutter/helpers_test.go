package cutter

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/smazurov/dropzone/internal/hardware"
	"github.com/smazurov/dropzone/internal/media"
	"github.com/smazurov/dropzone/internal/process"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRunner records ffmpeg invocations and writes the output file (the last
// argument) before applying the configured failure.
type fakeRunner struct {
	mu    sync.Mutex
	calls []process.Command
	fail  func(n int, cmd process.Command) error
}

func (f *fakeRunner) Run(ctx context.Context, cmd process.Command) (*process.Result, error) {
	f.mu.Lock()
	n := len(f.calls)
	f.calls = append(f.calls, cmd)
	fail := f.fail
	f.mu.Unlock()

	if err := process.Check(ctx, process.CheckpointBeforeLaunch); err != nil {
		return nil, err
	}
	_ = os.WriteFile(cmd.Args[len(cmd.Args)-1], []byte("video"), 0o644)
	if fail != nil {
		if err := fail(n, cmd); err != nil {
			return nil, err
		}
	}
	return &process.Result{}, nil
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRunner) call(n int) process.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[n]
}

func hasArgs(cmd process.Command, seq ...string) bool {
	for i := 0; i+len(seq) <= len(cmd.Args); i++ {
		if slices.Equal(cmd.Args[i:i+len(seq)], seq) {
			return true
		}
	}
	return false
}

type fakeInvalidator struct {
	mu    sync.Mutex
	paths []string
}

func (f *fakeInvalidator) Invalidate(path string) {
	f.mu.Lock()
	f.paths = append(f.paths, path)
	f.mu.Unlock()
}

func (f *fakeInvalidator) has(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.paths, path)
}

type staticProfile struct{ p *hardware.Profile }

func (s staticProfile) Detect(context.Context) (*hardware.Profile, error) {
	return s.p, nil
}

func nvencProfile() *hardware.Profile {
	return &hardware.Profile{
		CacheVersion: hardware.CacheVersion,
		Available:    true,
		Vendor:       hardware.VendorNVIDIA,
		Encoder:      "h264_nvenc",
		HEVCEncoder:  "hevc_nvenc",
		HWAccel:      "cuda",
		ExtraParams:  []string{"-preset", "p4", "-cq", "20"},
	}
}

func sampleInfo() *media.VideoInfo {
	return &media.VideoInfo{
		DurationMs:  10000,
		FPS:         30,
		FrameRate:   "30/1",
		Width:       1920,
		Height:      1080,
		VideoCodec:  "h264",
		PixelFormat: "yuv420p",
		Audio:       &media.AudioInfo{Codec: "aac", Bitrate: 128000, SampleRate: 48000, Channels: 2},
	}
}

const hardwareStderr = "[h264_nvenc @ 0x55] OpenEncodeSessionEx failed: unsupported device (2)\n" +
	"Error while opening encoder for output stream #0:0"
