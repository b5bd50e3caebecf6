package preview

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smazurov/dropzone/internal/cache"
	"github.com/smazurov/dropzone/internal/cutter"
	"github.com/smazurov/dropzone/internal/ffmpeg"
	"github.com/smazurov/dropzone/internal/logging"
	"github.com/smazurov/dropzone/internal/media"
	"github.com/smazurov/dropzone/internal/metrics"
	"github.com/smazurov/dropzone/internal/process"
)

// CombinedName is the file name of the combined artifact in the work dir.
const CombinedName = "preview_combined.mp4"

// ErrNothingToRetry is returned by Retry before any build was attempted.
var ErrNothingToRetry = errors.New("no previous build to retry")

// Prober is the subset of *media.Prober the orchestrator needs.
type Prober interface {
	VideoInfo(ctx context.Context, path string) (*media.VideoInfo, error)
	Invalidate(path string)
}

// FileEncoder produces working copies. *cutter.Encoder implements it.
type FileEncoder interface {
	Remux(ctx context.Context, input, output string, opts ...cutter.EncodeOption) error
	Standardize(ctx context.Context, input, output string, info *media.VideoInfo, opts ...cutter.EncodeOption) error
	Target() cutter.Target
}

// Concatenator joins working copies. *cutter.Assembler implements it.
type Concatenator interface {
	Concat(ctx context.Context, inputs []string, output string) error
}

// Config holds the tunables of the orchestrator.
type Config struct {
	WorkDir         string
	HardwareEnabled bool
	Parallel        bool
	// MaxWorkers overrides WorkerCount when positive.
	MaxWorkers int
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Prober    Prober
	Encoder   FileEncoder
	Assembler Concatenator
	Cache     *cache.Cache
	Hardware  cutter.ProfileSource // optional
	Notifier  Notifier             // optional
}

// Snapshot is a read-only view of the orchestrator for status displays.
type Snapshot struct {
	State    State    `json:"state"`
	Mode     Mode     `json:"mode,omitempty"`
	Progress float64  `json:"progress"`
	Label    string   `json:"label,omitempty"`
	Sources  []string `json:"sources,omitempty"`
}

// Orchestrator builds combined previews. Builds are serialized; the cache
// is only written from the goroutine running Build.
type Orchestrator struct {
	prober    Prober
	encoder   FileEncoder
	assembler Concatenator
	cache     *cache.Cache
	hardware  cutter.ProfileSource
	notifier  Notifier
	logger    logging.Logger

	cfgMu sync.RWMutex
	cfg   Config

	buildMu sync.Mutex

	mu          sync.RWMutex
	state       State
	mode        Mode
	progress    float64
	label       string
	lastSources []string
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(deps Deps, cfg Config, logger logging.Logger) *Orchestrator {
	if deps.Notifier == nil {
		deps.Notifier = NopNotifier{}
	}
	return &Orchestrator{
		prober:    deps.Prober,
		encoder:   deps.Encoder,
		assembler: deps.Assembler,
		cache:     deps.Cache,
		hardware:  deps.Hardware,
		notifier:  deps.Notifier,
		logger:    logger,
		cfg:       cfg,
		state:     StateEmpty,
	}
}

// Configure replaces the configuration for subsequent builds.
func (o *Orchestrator) Configure(cfg Config) {
	o.cfgMu.Lock()
	o.cfg = cfg
	o.cfgMu.Unlock()
}

func (o *Orchestrator) config() Config {
	o.cfgMu.RLock()
	defer o.cfgMu.RUnlock()
	return o.cfg
}

// CombinedPath returns the path of the combined artifact.
func (o *Orchestrator) CombinedPath() string {
	return filepath.Join(o.config().WorkDir, CombinedName)
}

// Snapshot returns the current state and progress.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return Snapshot{
		State:    o.state,
		Mode:     o.mode,
		Progress: o.progress,
		Label:    o.label,
		Sources:  slices.Clone(o.lastSources),
	}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// LastSources returns the source list of the most recent build.
func (o *Orchestrator) LastSources() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return slices.Clone(o.lastSources)
}

func (o *Orchestrator) setState(s State, m Mode) {
	o.mu.Lock()
	o.state = s
	o.mode = m
	o.mu.Unlock()
	o.notifier.Status(StatusState, StateChange{State: s, Mode: m})
}

func (o *Orchestrator) reportProgress(percent float64, label string) {
	o.mu.Lock()
	o.progress = percent
	o.label = label
	o.mu.Unlock()
	o.notifier.Progress(percent, label)
}

// Retry replays the source list of the last build.
func (o *Orchestrator) Retry(ctx context.Context) (*Result, error) {
	o.mu.RLock()
	sources := slices.Clone(o.lastSources)
	attempted := o.lastSources != nil
	o.mu.RUnlock()
	if !attempted {
		return nil, ErrNothingToRetry
	}
	return o.Build(ctx, sources)
}

// Build produces the combined preview for sources, in order.
//
// On cancellation the state becomes CANCELLED and finished working copies
// stay cached; callers with no queued restart should call Reset. On any
// other failure the state becomes ERROR and the combined artifact is removed.
func (o *Orchestrator) Build(ctx context.Context, sources []string) (*Result, error) {
	o.buildMu.Lock()
	defer o.buildMu.Unlock()

	started := time.Now()
	o.mu.Lock()
	o.lastSources = slices.Clone(sources)
	if o.lastSources == nil {
		o.lastSources = []string{}
	}
	o.mu.Unlock()
	o.reportProgress(0, "")

	res, err := o.build(ctx, sources)
	if res == nil {
		res = &Result{}
	}

	switch {
	case err == nil:
	case process.IsCanceled(err):
		res.State = StateCancelled
		o.setState(StateCancelled, res.Mode)
		o.notifier.Status(StatusCancelled, nil)
		o.logger.Info("Preview build cancelled", "sources", len(sources))
	default:
		res.State = StateError
		o.removeCombined()
		o.setState(StateError, res.Mode)
		o.notifier.Status(StatusError, err.Error())
		o.logger.Error("Preview build failed", "error", err)
	}

	metrics.RecordPreviewBuild(string(res.State), time.Since(started))
	return res, err
}

// item is one entry of the active list.
type item struct {
	source   string
	id       cache.Identity
	entry    cache.Entry
	cached   bool
	info     *media.VideoInfo
	copyPath string
}

func (it *item) name() string {
	return it.id.Name
}

func (it *item) format() media.Format {
	if it.cached {
		return it.entry.Format
	}
	return it.info.Format()
}

func (o *Orchestrator) build(ctx context.Context, sources []string) (*Result, error) {
	cfg := o.config()

	if len(sources) == 0 {
		o.dropEntries(o.cache.Retain(nil))
		o.removeCombined()
		o.setState(StateEmpty, ModeNone)
		return &Result{Initial: StateEmpty, State: StateEmpty}, nil
	}

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	items, err := o.resolve(sources)
	if err != nil {
		return nil, err
	}

	ids := make([]cache.Identity, len(items))
	for i := range items {
		ids[i] = items[i].id
	}
	o.dropEntries(o.cache.Retain(ids))

	newCount := 0
	for i := range items {
		if e, ok := o.cache.Lookup(items[i].id); ok {
			items[i].entry = e
			items[i].cached = true
		} else {
			newCount++
		}
	}

	res := &Result{Initial: initialState(newCount, len(items))}
	o.setState(res.Initial, ModeNone)
	o.logger.Info("Preview build started", "state", res.Initial, "files", len(items), "new", newCount)

	if err := o.arrange(cfg.WorkDir, items); err != nil {
		return res, err
	}

	for i := range items {
		if items[i].cached {
			continue
		}
		if err := process.Check(ctx, process.CheckpointBeforeFile); err != nil {
			return res, err
		}
		info, err := o.prober.VideoInfo(ctx, items[i].source)
		if err != nil {
			return res, err
		}
		items[i].info = info
	}

	res.Mode = chooseMode(items)
	o.setState(res.Initial, res.Mode)

	switch res.Mode {
	case ModeCopy:
		err = o.copyNew(ctx, items, res)
	case ModeStandardize:
		err = o.standardize(ctx, cfg, items, res)
	}
	res.Files = fileResults(items, o.cache)
	if err != nil {
		return res, err
	}

	if err := process.Check(ctx, process.CheckpointBeforeConcat); err != nil {
		return res, err
	}
	combined := filepath.Join(cfg.WorkDir, CombinedName)
	o.removeCombined()
	inputs := make([]string, len(items))
	for i := range items {
		inputs[i] = items[i].copyPath
	}
	o.reportProgress(100, "Combining")
	if err := o.assembler.Concat(ctx, inputs, combined); err != nil {
		return res, err
	}

	res.Path = combined
	res.State = StateCombined
	o.setState(StateCombined, res.Mode)
	o.notifier.Status(StatusCombined, combined)
	o.logger.Info("Preview combined", "path", combined, "files", len(items),
		"mode", res.Mode, "encoded", res.Encoded, "copied", res.Copied)
	return res, nil
}

func initialState(newCount, total int) State {
	switch newCount {
	case 0:
		return StateAllCached
	case total:
		return StateAllNew
	default:
		return StatePartial
	}
}

// resolve computes identities, dropping repeated clips.
func (o *Orchestrator) resolve(sources []string) ([]item, error) {
	items := make([]item, 0, len(sources))
	seen := make(map[cache.Identity]bool, len(sources))
	for _, src := range sources {
		id, ok := o.cache.IdentityOf(src)
		if !ok {
			return nil, fmt.Errorf("source %s is not accessible", src)
		}
		if seen[id] {
			o.logger.Warn("Skipping repeated clip", "source", src, "identity", id.String())
			continue
		}
		seen[id] = true
		items = append(items, item{source: src, id: id})
	}
	return items, nil
}

// chooseMode returns copy when every new clip and every cached,
// non-standardized copy shares the format of the first new clip and no
// cached copy was standardized. Without new clips nothing needs encoding
// unless standardized and plain copies are mixed.
func chooseMode(items []item) Mode {
	var ref *media.Format
	var anyStd, anyPlain bool
	for i := range items {
		it := &items[i]
		if it.cached {
			if it.entry.Standardized {
				anyStd = true
			} else {
				anyPlain = true
			}
			continue
		}
		if ref == nil {
			f := it.format()
			ref = &f
		}
	}

	if ref == nil {
		if anyStd && anyPlain {
			return ModeStandardize
		}
		return ModeNone
	}
	if anyStd {
		return ModeStandardize
	}
	for i := range items {
		if items[i].format() != *ref {
			return ModeStandardize
		}
	}
	return ModeCopy
}

func (o *Orchestrator) copyNew(ctx context.Context, items []item, res *Result) error {
	total := 0
	for i := range items {
		if !items[i].cached {
			total++
		}
	}

	done := 0
	for i := range items {
		it := &items[i]
		if it.cached {
			continue
		}
		if err := process.Check(ctx, process.CheckpointBeforeFile); err != nil {
			return err
		}
		name := it.name()
		o.reportProgress(float64(done)/float64(total)*100, "Copying "+name)
		err := o.encoder.Remux(ctx, it.source, it.copyPath, cutter.WithProgress(o.fileProgress(name)))
		if err != nil {
			return err
		}
		o.cache.Register(it.id, it.copyPath,
			cache.WithFormat(it.info.Format()),
			cache.WithMetadata(o.metadata(it)))
		done++
		res.Copied++
		o.notifier.Status(StatusFileDone, name)
	}
	o.reportProgress(100, fmt.Sprintf("Copied %d/%d", done, total))
	return nil
}

type job struct {
	item   *item
	input  string
	info   *media.VideoInfo
	cached bool
}

// standardize re-encodes every new clip and every cached copy that is not
// yet in the target profile. Workers only write files; results are
// registered here after the pool drains, including on failure, so finished
// work survives a restart.
func (o *Orchestrator) standardize(ctx context.Context, cfg Config, items []item, res *Result) error {
	var jobs []job
	for i := range items {
		it := &items[i]
		switch {
		case !it.cached:
			jobs = append(jobs, job{item: it, input: it.source, info: it.info})
		case !it.entry.Standardized:
			jobs = append(jobs, job{item: it, input: it.copyPath, cached: true})
		}
	}
	if len(jobs) == 0 {
		return nil
	}

	target := o.encoder.Target()
	targetFormat := media.Format{
		Codec:       "h264",
		Width:       target.Width,
		Height:      target.Height,
		FrameRate:   fmt.Sprintf("%d/1", target.FPS),
		PixelFormat: target.PixelFormat,
	}

	workers := o.workerCount(ctx, cfg)
	total := len(jobs)
	o.logger.Info("Standardizing", "files", total, "workers", workers)
	o.reportProgress(0, fmt.Sprintf("Standardizing 0/%d", total))

	done := make([]bool, total)
	var completed atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for n, j := range jobs {
		g.Go(func() error {
			if err := process.Check(gctx, process.CheckpointBeforeFile); err != nil {
				return err
			}
			info := j.info
			if info == nil {
				var err error
				if info, err = o.prober.VideoInfo(gctx, j.input); err != nil {
					return err
				}
			}

			out := j.item.copyPath
			if j.cached {
				out = tempName(out)
			}
			name := j.item.name()
			if err := o.encoder.Standardize(gctx, j.input, out, info, cutter.WithProgress(o.fileProgress(name))); err != nil {
				return err
			}
			if j.cached {
				if err := os.Rename(out, j.item.copyPath); err != nil {
					os.Remove(out)
					return fmt.Errorf("replace working copy %s: %w", j.item.copyPath, err)
				}
				o.prober.Invalidate(j.item.copyPath)
			}

			done[n] = true
			c := completed.Add(1)
			o.reportProgress(float64(c)/float64(total)*100, fmt.Sprintf("Standardizing %d/%d", c, total))
			o.notifier.Status(StatusFileDone, name)
			return nil
		})
	}
	err := g.Wait()

	for n, j := range jobs {
		if !done[n] {
			continue
		}
		res.Encoded++
		if j.cached {
			o.cache.MarkStandardized(j.item.id, targetFormat)
			continue
		}
		o.cache.Register(j.item.id, j.item.copyPath,
			cache.WithFormat(targetFormat),
			cache.WithMetadata(o.metadata(j.item)),
			cache.AsStandardized())
	}
	return err
}

func (o *Orchestrator) workerCount(ctx context.Context, cfg Config) int {
	if !cfg.Parallel {
		return 1
	}
	if cfg.MaxWorkers > 0 {
		return cfg.MaxWorkers
	}
	hw := false
	if cfg.HardwareEnabled && o.hardware != nil {
		if p, err := o.hardware.Detect(ctx); err == nil && p.Available {
			hw = true
		}
	}
	return WorkerCount(hw, runtime.NumCPU())
}

func (o *Orchestrator) fileProgress(name string) ffmpeg.ProgressFunc {
	return func(percent float64, _ ffmpeg.Progress) {
		o.notifier.Status(StatusFileProgress, FileProgress{Name: name, Percent: percent})
	}
}

func (o *Orchestrator) metadata(it *item) cache.Metadata {
	var mod time.Time
	if st, err := os.Stat(it.source); err == nil {
		mod = st.ModTime()
	}
	return cache.NewMetadata(it.info, it.id.Size, mod)
}

// arrange assigns each item its NNN_stem.mp4 name by list position and
// moves cached copies whose position changed.
func (o *Orchestrator) arrange(dir string, items []item) error {
	type move struct {
		it   *item
		from string
		tmp  string
	}
	var moves []move
	for i := range items {
		it := &items[i]
		it.copyPath = filepath.Join(dir, CopyName(i, it.name()))
		if !it.cached || it.entry.CopyPath == it.copyPath {
			continue
		}
		tmp := filepath.Join(dir, fmt.Sprintf(".reorder_%03d.mp4", i))
		if err := os.Rename(it.entry.CopyPath, tmp); err != nil {
			return fmt.Errorf("move working copy %s: %w", it.entry.CopyPath, err)
		}
		moves = append(moves, move{it: it, from: it.entry.CopyPath, tmp: tmp})
	}

	for _, m := range moves {
		if err := os.Rename(m.tmp, m.it.copyPath); err != nil {
			return fmt.Errorf("move working copy to %s: %w", m.it.copyPath, err)
		}
		o.cache.Rename(m.it.id, m.it.copyPath)
		m.it.entry.CopyPath = m.it.copyPath
		o.prober.Invalidate(m.from)
		o.prober.Invalidate(m.it.copyPath)
		o.logger.Debug("Renamed working copy", "from", filepath.Base(m.from), "to", filepath.Base(m.it.copyPath))
	}
	return nil
}

// CopyName returns the working copy name of the clip at position index.
func CopyName(index int, sourceName string) string {
	stem := strings.TrimSuffix(sourceName, filepath.Ext(sourceName))
	return fmt.Sprintf("%03d_%s.mp4", index+1, stem)
}

func tempName(path string) string {
	dir, base := filepath.Split(path)
	return filepath.Join(dir, "."+strings.TrimSuffix(base, ".mp4")+".tmp.mp4")
}

func fileResults(items []item, c *cache.Cache) []FileResult {
	out := make([]FileResult, len(items))
	for i := range items {
		it := &items[i]
		fr := FileResult{Source: it.source, Identity: it.id, CopyPath: it.copyPath, Cached: it.cached}
		if e, ok := c.Lookup(it.id); ok {
			fr.Standardized = e.Standardized
		}
		out[i] = fr
	}
	return out
}

func (o *Orchestrator) dropEntries(entries []cache.Entry) {
	for _, e := range entries {
		if err := os.Remove(e.CopyPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			o.logger.Warn("Failed to remove working copy", "path", e.CopyPath, "error", err)
			continue
		}
		o.prober.Invalidate(e.CopyPath)
		o.logger.Debug("Dropped working copy", "identity", e.Identity.String(), "path", e.CopyPath)
	}
}

func (o *Orchestrator) removeCombined() {
	path := o.CombinedPath()
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		o.logger.Warn("Failed to remove combined preview", "path", path, "error", err)
	}
	o.prober.Invalidate(path)
}

// Reset deletes every working copy and the combined artifact and clears
// the cache. The last source list is kept for Retry.
func (o *Orchestrator) Reset() {
	o.buildMu.Lock()
	defer o.buildMu.Unlock()

	o.dropEntries(o.cache.Retain(nil))
	o.removeCombined()

	dir := o.config().WorkDir
	for _, pattern := range []string{"[0-9][0-9][0-9]_*.mp4", ".reorder_*.mp4", ".*.tmp.mp4"} {
		matches, _ := filepath.Glob(filepath.Join(dir, pattern))
		for _, m := range matches {
			os.Remove(m)
		}
	}
	o.logger.Info("Preview work dir reset", "dir", dir)
}
