package preview

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/smazurov/dropzone/internal/cache"
	"github.com/smazurov/dropzone/internal/cutter"
	"github.com/smazurov/dropzone/internal/media"
	"github.com/smazurov/dropzone/internal/process"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func hd() *media.VideoInfo {
	return &media.VideoInfo{
		DurationMs: 5000, FPS: 30, FrameRate: "30/1",
		Width: 1920, Height: 1080, VideoCodec: "h264", PixelFormat: "yuv420p",
		Audio: &media.AudioInfo{Codec: "aac", SampleRate: 48000, Channels: 2},
	}
}

func uhd() *media.VideoInfo {
	return &media.VideoInfo{
		DurationMs: 4000, FPS: 24, FrameRate: "24/1",
		Width: 3840, Height: 2160, VideoCodec: "hevc", PixelFormat: "yuv420p10le",
	}
}

// fakeProber answers by file name; unknown names are 1080p h264.
type fakeProber struct {
	mu    sync.Mutex
	infos map[string]*media.VideoInfo
	calls []string
}

func (f *fakeProber) VideoInfo(_ context.Context, path string) (*media.VideoInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, path)
	if info, ok := f.infos[filepath.Base(path)]; ok {
		return info, nil
	}
	return hd(), nil
}

func (f *fakeProber) Invalidate(string) {}

// fakeEncoder writes "<kind>:<input name>" into each output.
type fakeEncoder struct {
	mu           sync.Mutex
	remuxed      []string
	standardized []string
	failOn       string
	started      chan string
	gate         chan struct{}
}

func (f *fakeEncoder) wait(ctx context.Context, input string) error {
	if f.started != nil {
		select {
		case f.started <- input:
		default:
		}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return process.Check(ctx, process.CheckpointWhileRunning)
		}
	}
	if f.failOn != "" && filepath.Base(input) == f.failOn {
		return &cutter.Error{Code: cutter.ErrCodeEncodingFailed, Message: "boom"}
	}
	return nil
}

func (f *fakeEncoder) Remux(ctx context.Context, input, output string, _ ...cutter.EncodeOption) error {
	if err := f.wait(ctx, input); err != nil {
		return err
	}
	f.mu.Lock()
	f.remuxed = append(f.remuxed, filepath.Base(input))
	f.mu.Unlock()
	return os.WriteFile(output, []byte("remux:"+filepath.Base(input)), 0o644)
}

func (f *fakeEncoder) Standardize(ctx context.Context, input, output string, _ *media.VideoInfo, _ ...cutter.EncodeOption) error {
	if err := f.wait(ctx, input); err != nil {
		return err
	}
	f.mu.Lock()
	f.standardized = append(f.standardized, filepath.Base(input))
	f.mu.Unlock()
	return os.WriteFile(output, []byte("std:"+filepath.Base(input)), 0o644)
}

func (f *fakeEncoder) Target() cutter.Target {
	return cutter.DefaultTarget()
}

func (f *fakeEncoder) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.remuxed), len(f.standardized)
}

func (f *fakeEncoder) reset() {
	f.mu.Lock()
	f.remuxed, f.standardized = nil, nil
	f.mu.Unlock()
}

type fakeAssembler struct {
	mu     sync.Mutex
	inputs [][]string
}

func (f *fakeAssembler) Concat(_ context.Context, inputs []string, output string) error {
	f.mu.Lock()
	f.inputs = append(f.inputs, append([]string(nil), inputs...))
	f.mu.Unlock()
	return os.WriteFile(output, []byte(strings.Join(inputs, "\n")), 0o644)
}

func (f *fakeAssembler) last() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs) == 0 {
		return nil
	}
	return f.inputs[len(f.inputs)-1]
}

type recordingNotifier struct {
	mu     sync.Mutex
	states []State
	kinds  []string
}

func (r *recordingNotifier) Progress(float64, string) {}

func (r *recordingNotifier) Status(kind string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
	if sc, ok := payload.(StateChange); ok {
		if n := len(r.states); n == 0 || r.states[n-1] != sc.State {
			r.states = append(r.states, sc.State)
		}
	}
}

func (r *recordingNotifier) stateTrail() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

type fixture struct {
	orch     *Orchestrator
	prober   *fakeProber
	encoder  *fakeEncoder
	asm      *fakeAssembler
	cache    *cache.Cache
	notifier *recordingNotifier
	workDir  string
	srcDir   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		prober:   &fakeProber{infos: map[string]*media.VideoInfo{"A.mp4": hd(), "B.mp4": hd(), "C.mov": uhd()}},
		encoder:  &fakeEncoder{},
		asm:      &fakeAssembler{},
		cache:    cache.New(testLogger()),
		notifier: &recordingNotifier{},
		workDir:  filepath.Join(root, "work"),
		srcDir:   filepath.Join(root, "card"),
	}
	f.orch = NewOrchestrator(Deps{
		Prober:    f.prober,
		Encoder:   f.encoder,
		Assembler: f.asm,
		Cache:     f.cache,
		Notifier:  f.notifier,
	}, Config{WorkDir: f.workDir, Parallel: true, MaxWorkers: 2}, testLogger())
	return f
}

// source writes a clip into the fixture's source dir and returns its path.
func (f *fixture) source(t *testing.T, name, content string) string {
	t.Helper()
	return writeClip(t, f.srcDir, name, content)
}

func writeClip(t *testing.T, dir, name, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
