package hardware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/smazurov/dropzone/internal/logging"
	"github.com/smazurov/dropzone/internal/process"
)

// DefaultMaxAge is how long a persisted profile stays valid.
const DefaultMaxAge = 7 * 24 * time.Hour

// DefaultCachePath returns <user cache dir>/dropzone/hardware.json.
func DefaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "dropzone", "hardware.json")
}

// Detector resolves the hardware Profile once and shares it by reference.
type Detector struct {
	runner    process.Runner
	ffmpegBin string
	cachePath string
	maxAge    time.Duration
	probe     VendorProbe
	now       func() time.Time
	logger    logging.Logger

	mu      sync.Mutex
	profile *Profile
}

// Option configures a Detector.
type Option func(*Detector)

// WithCachePath sets the profile cache file. An empty path disables persistence.
func WithCachePath(path string) Option {
	return func(d *Detector) { d.cachePath = path }
}

// WithMaxAge overrides DefaultMaxAge.
func WithMaxAge(age time.Duration) Option {
	return func(d *Detector) { d.maxAge = age }
}

// WithVendorProbe replaces the platform GPU probe.
func WithVendorProbe(probe VendorProbe) Option {
	return func(d *Detector) { d.probe = probe }
}

// NewDetector creates a Detector using the given ffmpeg binary.
func NewDetector(runner process.Runner, ffmpegBin string, logger logging.Logger, opts ...Option) *Detector {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	d := &Detector{
		runner:    runner,
		ffmpegBin: ffmpegBin,
		cachePath: DefaultCachePath(),
		maxAge:    DefaultMaxAge,
		probe:     probeVendors,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect returns the resolved profile, reading the cache file or probing
// on first use.
func (d *Detector) Detect(ctx context.Context) (*Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.profile != nil {
		return d.profile, nil
	}
	if p, err := d.load(); err == nil {
		d.logger.Debug("Using cached hardware profile", "path", d.cachePath, "profile", p.String())
		d.profile = p
		return p, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		d.logger.Info("Hardware cache rejected, re-detecting", "reason", err)
	}
	return d.detect(ctx)
}

// Refresh forces re-detection and rewrites the cache file.
func (d *Detector) Refresh(ctx context.Context) (*Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.detect(ctx)
}

// Current returns the resolved profile without probing, or nil.
func (d *Detector) Current() *Profile {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.profile
}

func (d *Detector) detect(ctx context.Context) (*Profile, error) {
	if err := process.Check(ctx, process.CheckpointBeforeLaunch); err != nil {
		return nil, err
	}

	p := &Profile{CacheVersion: CacheVersion}
	persist := true
	compiled, err := compiledEncoders(ctx, d.runner, d.ffmpegBin)
	if err != nil {
		if process.IsCanceled(err) {
			return nil, err
		}
		d.logger.Warn("Cannot list ffmpeg encoders, using software encoding", "error", err)
		persist = false
	} else {
		present := d.probe(ctx, d.runner)
		for _, spec := range vendorOrder {
			if present[spec.vendor] && compiled[spec.h264] {
				p = spec.profile(compiled)
				break
			}
			if present[spec.vendor] {
				d.logger.Debug("GPU present but encoder not compiled in", "vendor", spec.vendor, "encoder", spec.h264)
			}
		}
	}
	p.DetectedAt = d.now()

	d.logger.Info("Hardware detection complete", "available", p.Available, "profile", p.String())
	if !persist {
		d.profile = p
		return p, nil
	}
	if err := d.save(p); err != nil {
		d.logger.Warn("Failed to persist hardware profile", "path", d.cachePath, "error", err)
	}
	d.profile = p
	return p, nil
}

func (d *Detector) load() (*Profile, error) {
	if d.cachePath == "" {
		return nil, os.ErrNotExist
	}
	st, err := os.Stat(d.cachePath)
	if err != nil {
		return nil, err
	}
	if age := d.now().Sub(st.ModTime()); age > d.maxAge {
		return nil, fmt.Errorf("cache is %s old", age.Round(time.Hour))
	}

	data, err := os.ReadFile(d.cachePath)
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse cache: %w", err)
	}
	if p.CacheVersion < CacheVersion {
		return nil, fmt.Errorf("cache version %d is older than %d", p.CacheVersion, CacheVersion)
	}
	return &p, nil
}

func (d *Detector) save(p *Profile) error {
	if d.cachePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(d.cachePath), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	tmp := d.cachePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, d.cachePath)
}
