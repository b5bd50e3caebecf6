package preview

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/smazurov/dropzone/internal/cutter"
	"github.com/smazurov/dropzone/internal/process"
)

func bases(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}

func TestBuildScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.source(t, "A.mp4", "aaaa")
	b := f.source(t, "B.mp4", "bbbbbb")

	if f.orch.State() != StateEmpty {
		t.Fatalf("initial state = %s", f.orch.State())
	}

	// first load: identical formats are stream copied
	res, err := f.orch.Build(ctx, []string{a, b})
	if err != nil {
		t.Fatal(err)
	}
	if res.Initial != StateAllNew || res.Mode != ModeCopy || res.State != StateCombined {
		t.Fatalf("first build = %+v", res)
	}
	if remux, std := f.encoder.counts(); remux != 2 || std != 0 {
		t.Errorf("remux=%d standardize=%d, want 2/0", remux, std)
	}
	if got := f.notifier.stateTrail(); !slices.Equal(got, []State{StateAllNew, StateCombined}) {
		t.Errorf("state trail = %v", got)
	}
	if res.Path != filepath.Join(f.workDir, CombinedName) {
		t.Errorf("Path = %q", res.Path)
	}
	if got := bases(f.asm.last()); !slices.Equal(got, []string{"001_A.mp4", "002_B.mp4"}) {
		t.Errorf("concat inputs = %v", got)
	}

	// same list again: everything cached, no transcoder work
	f.encoder.reset()
	res, err = f.orch.Build(ctx, []string{a, b})
	if err != nil {
		t.Fatal(err)
	}
	if res.Initial != StateAllCached || res.State != StateCombined {
		t.Errorf("second build = %+v", res)
	}
	if remux, std := f.encoder.counts(); remux != 0 || std != 0 {
		t.Errorf("cached build ran the encoder: remux=%d standardize=%d", remux, std)
	}

	// an incompatible clip forces standardization of the never-standardized pair too
	c := f.source(t, "C.mov", "cccccccc")
	f.encoder.reset()
	res, err = f.orch.Build(ctx, []string{a, b, c})
	if err != nil {
		t.Fatal(err)
	}
	if res.Initial != StatePartial || res.Mode != ModeStandardize || res.State != StateCombined {
		t.Fatalf("third build = %+v", res)
	}
	if _, std := f.encoder.counts(); std != 3 || res.Encoded != 3 {
		t.Errorf("standardized %d files (Encoded=%d), want 3", std, res.Encoded)
	}
	if got := bases(f.asm.last()); !slices.Equal(got, []string{"001_A.mp4", "002_B.mp4", "003_C.mp4"}) {
		t.Errorf("concat inputs = %v", got)
	}
	for _, e := range f.cache.Entries() {
		if !e.Standardized || e.Format.Width != 1920 || e.Format.FrameRate != "30/1" {
			t.Errorf("entry not standardized: %+v", e)
		}
	}
	if got := readFile(t, filepath.Join(f.workDir, "001_A.mp4")); got != "std:001_A.mp4" {
		t.Errorf("cached copy not replaced in place: %q", got)
	}
}

func TestBuildStandardizedCacheForcesStandardize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.source(t, "A.mp4", "aaaa")
	c := f.source(t, "C.mov", "cccccccc")

	// mixed formats on first load
	res, err := f.orch.Build(ctx, []string{a, c})
	if err != nil {
		t.Fatal(err)
	}
	if res.Initial != StateAllNew || res.Mode != ModeStandardize {
		t.Fatalf("first build = %+v", res)
	}

	// B matches A's source format, but cached copies are standardized
	b := f.source(t, "B.mp4", "bbbbbb")
	f.encoder.reset()
	res, err = f.orch.Build(ctx, []string{a, c, b})
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode != ModeStandardize {
		t.Errorf("Mode = %s, want standardize", res.Mode)
	}
	if remux, std := f.encoder.counts(); remux != 0 || std != 1 {
		t.Errorf("remux=%d standardize=%d, want only B standardized", remux, std)
	}
}

func TestBuildPartialCompatible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.source(t, "A.mp4", "aaaa")
	b := f.source(t, "B.mp4", "bbbbbb")

	if _, err := f.orch.Build(ctx, []string{a}); err != nil {
		t.Fatal(err)
	}
	f.encoder.reset()
	res, err := f.orch.Build(ctx, []string{a, b})
	if err != nil {
		t.Fatal(err)
	}
	if res.Initial != StatePartial || res.Mode != ModeCopy {
		t.Errorf("build = %+v", res)
	}
	if remux, std := f.encoder.counts(); remux != 1 || std != 0 {
		t.Errorf("remux=%d standardize=%d, want 1/0", remux, std)
	}
}

func TestBuildIdentityIndependentOfPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.source(t, "A.mp4", "aaaa")
	if _, err := f.orch.Build(ctx, []string{a}); err != nil {
		t.Fatal(err)
	}

	moved := writeClip(t, filepath.Join(t.TempDir(), "reimport"), "A.mp4", "aaaa")
	f.encoder.reset()
	res, err := f.orch.Build(ctx, []string{moved})
	if err != nil {
		t.Fatal(err)
	}
	if res.Initial != StateAllCached {
		t.Errorf("Initial = %s, want ALL_CACHED", res.Initial)
	}
	if remux, std := f.encoder.counts(); remux+std != 0 {
		t.Error("re-imported clip was encoded again")
	}
}

func TestBuildReorderRenamesCopies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.source(t, "A.mp4", "aaaa")
	b := f.source(t, "B.mp4", "bbbbbb")
	if _, err := f.orch.Build(ctx, []string{a, b}); err != nil {
		t.Fatal(err)
	}

	if _, err := f.orch.Build(ctx, []string{b, a}); err != nil {
		t.Fatal(err)
	}
	if got := bases(f.asm.last()); !slices.Equal(got, []string{"001_B.mp4", "002_A.mp4"}) {
		t.Errorf("concat inputs = %v", got)
	}
	if got := readFile(t, filepath.Join(f.workDir, "001_B.mp4")); got != "remux:B.mp4" {
		t.Errorf("001_B.mp4 holds %q", got)
	}
	if got := readFile(t, filepath.Join(f.workDir, "002_A.mp4")); got != "remux:A.mp4" {
		t.Errorf("002_A.mp4 holds %q", got)
	}
	copyPath, ok := f.cache.Find(a)
	if !ok || filepath.Base(copyPath) != "002_A.mp4" {
		t.Errorf("cache not renamed: %q %v", copyPath, ok)
	}
}

func TestBuildDropsInactiveCopies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.source(t, "A.mp4", "aaaa")
	b := f.source(t, "B.mp4", "bbbbbb")
	if _, err := f.orch.Build(ctx, []string{a, b}); err != nil {
		t.Fatal(err)
	}

	if _, err := f.orch.Build(ctx, []string{b}); err != nil {
		t.Fatal(err)
	}
	if f.cache.Len() != 1 {
		t.Errorf("cache Len = %d, want 1", f.cache.Len())
	}
	if _, err := os.Stat(filepath.Join(f.workDir, "001_A.mp4")); !os.IsNotExist(err) {
		t.Error("inactive working copy not deleted")
	}

	res, err := f.orch.Build(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.State != StateEmpty || f.cache.Len() != 0 {
		t.Errorf("empty build = %+v, cache Len %d", res, f.cache.Len())
	}
}

func TestBuildSkipsRepeatedClip(t *testing.T) {
	f := newFixture(t)
	a := f.source(t, "A.mp4", "aaaa")
	res, err := f.orch.Build(context.Background(), []string{a, a})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Files) != 1 {
		t.Errorf("Files = %d, want 1", len(res.Files))
	}
}

func TestBuildMissingSource(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Build(context.Background(), []string{filepath.Join(f.srcDir, "missing.mp4")})
	if err == nil {
		t.Fatal("expected error")
	}
	if f.orch.State() != StateError {
		t.Errorf("State = %s, want ERROR", f.orch.State())
	}
}

func TestBuildErrorAndRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.source(t, "A.mp4", "aaaa")
	b := f.source(t, "B.mp4", "bbbbbb")

	if _, err := f.orch.Retry(ctx); !errors.Is(err, ErrNothingToRetry) {
		t.Errorf("Retry before any build = %v", err)
	}

	// a stale artifact from an earlier build must not survive a failure
	writeClip(t, f.workDir, CombinedName, "old")
	f.encoder.failOn = "B.mp4"

	res, err := f.orch.Build(ctx, []string{a, b})
	if !cutter.IsCode(err, cutter.ErrCodeEncodingFailed) {
		t.Fatalf("expected encoding_failed, got %v", err)
	}
	if res.State != StateError || f.orch.State() != StateError {
		t.Errorf("state = %s / %s", res.State, f.orch.State())
	}
	if _, err := os.Stat(filepath.Join(f.workDir, CombinedName)); !os.IsNotExist(err) {
		t.Error("combined artifact not removed on error")
	}
	if f.cache.Len() != 1 {
		t.Errorf("finished copy should stay cached, Len = %d", f.cache.Len())
	}

	f.encoder.failOn = ""
	f.encoder.reset()
	res, err = f.orch.Retry(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Initial != StatePartial || res.State != StateCombined {
		t.Errorf("retry = %+v", res)
	}
	if remux, _ := f.encoder.counts(); remux != 1 {
		t.Errorf("retry remuxed %d files, want 1", remux)
	}
}

func TestBuildCancelled(t *testing.T) {
	f := newFixture(t)
	a := f.source(t, "A.mp4", "aaaa")
	b := f.source(t, "B.mp4", "bbbbbb")

	ctx, cancel := context.WithCancel(context.Background())
	f.encoder.gate = make(chan struct{})
	f.encoder.started = make(chan string, 4)
	go func() {
		<-f.encoder.started
		cancel()
	}()

	res, err := f.orch.Build(ctx, []string{a, b})
	if !process.IsCanceled(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if res.State != StateCancelled || f.orch.State() != StateCancelled {
		t.Errorf("state = %s / %s", res.State, f.orch.State())
	}

	f.orch.Reset()
	if f.cache.Len() != 0 {
		t.Errorf("Reset left %d entries", f.cache.Len())
	}
	matches, _ := filepath.Glob(filepath.Join(f.workDir, "*.mp4"))
	if len(matches) != 0 {
		t.Errorf("Reset left files: %v", matches)
	}
	if got := f.orch.LastSources(); len(got) != 2 {
		t.Errorf("LastSources after reset = %v", got)
	}
}

func TestBuildSequentialWhenParallelDisabled(t *testing.T) {
	f := newFixture(t)
	f.orch.Configure(Config{WorkDir: f.workDir, Parallel: false})
	a := f.source(t, "A.mp4", "aaaa")
	c := f.source(t, "C.mov", "cccccccc")

	res, err := f.orch.Build(context.Background(), []string{a, c})
	if err != nil {
		t.Fatal(err)
	}
	if res.Encoded != 2 {
		t.Errorf("Encoded = %d, want 2", res.Encoded)
	}
	if got := f.orch.workerCount(context.Background(), f.orch.config()); got != 1 {
		t.Errorf("workerCount = %d, want 1", got)
	}
}

func TestWorkerCount(t *testing.T) {
	tests := []struct {
		hw   bool
		cpus int
		want int
	}{
		{false, 1, 1},
		{false, 4, 1},
		{false, 8, 2},
		{false, 32, 3},
		{true, 1, 2},
		{true, 6, 3},
		{true, 16, 4},
	}
	for _, tt := range tests {
		if got := WorkerCount(tt.hw, tt.cpus); got != tt.want {
			t.Errorf("WorkerCount(%v, %d) = %d, want %d", tt.hw, tt.cpus, got, tt.want)
		}
	}
}

func TestCopyName(t *testing.T) {
	if got := CopyName(0, "GX010001.MP4"); got != "001_GX010001.mp4" {
		t.Errorf("CopyName = %q", got)
	}
	if got := CopyName(11, "jump.final.mov"); got != "012_jump.final.mp4" {
		t.Errorf("CopyName = %q", got)
	}
}
