package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/dropzone/internal/cutter"
	"github.com/smazurov/dropzone/internal/ffmpeg"
	"github.com/smazurov/dropzone/internal/logging"
	"github.com/smazurov/dropzone/internal/preview"
	"github.com/smazurov/dropzone/internal/upload"
)

// Settings is the typed application configuration.
type Settings struct {
	Processing ProcessingSettings `toml:"processing" json:"processing"`
	Target     TargetSettings     `toml:"target" json:"target"`
	FFmpeg     FFmpegSettings     `toml:"ffmpeg" json:"ffmpeg"`
	Paths      PathSettings       `toml:"paths" json:"paths"`
	Server     upload.Server      `toml:"server" json:"server"`
	Logging    logging.Config     `toml:"logging" json:"logging"`
}

// ProcessingSettings control encoder selection and parallelism.
type ProcessingSettings struct {
	HardwareAcceleration bool `toml:"hardware_acceleration" json:"hardware_acceleration"`
	Parallel             bool `toml:"parallel" json:"parallel"`
	// MaxWorkers overrides the automatic worker count when positive.
	MaxWorkers int `toml:"max_workers" json:"max_workers"`
}

// TargetSettings is the standardization profile.
type TargetSettings struct {
	Width           int    `toml:"width" json:"width"`
	Height          int    `toml:"height" json:"height"`
	FPS             int    `toml:"fps" json:"fps"`
	PixelFormat     string `toml:"pixel_format" json:"pixel_format"`
	AudioBitrate    string `toml:"audio_bitrate" json:"audio_bitrate"`
	AudioSampleRate int    `toml:"audio_sample_rate" json:"audio_sample_rate"`
	AudioChannels   int    `toml:"audio_channels" json:"audio_channels"`
}

// FFmpegSettings locate the binaries and extend failure classification.
type FFmpegSettings struct {
	Binary            string             `toml:"binary" json:"binary"`
	ProbeBinary       string             `toml:"probe_binary" json:"probe_binary"`
	FailureSignatures []ffmpeg.Signature `toml:"failure_signatures" json:"failure_signatures,omitempty"`
}

// PathSettings are on-disk locations. Empty values use platform defaults.
type PathSettings struct {
	WorkDir       string `toml:"work_dir" json:"work_dir"`
	HardwareCache string `toml:"hardware_cache" json:"hardware_cache"`
	History       string `toml:"history" json:"history"`
}

// DefaultSettings returns the settings used when no file is present.
func DefaultSettings() Settings {
	t := cutter.DefaultTarget()
	return Settings{
		Processing: ProcessingSettings{HardwareAcceleration: true, Parallel: true},
		Target: TargetSettings{
			Width:           t.Width,
			Height:          t.Height,
			FPS:             t.FPS,
			PixelFormat:     t.PixelFormat,
			AudioBitrate:    t.AudioBitrate,
			AudioSampleRate: t.AudioSampleRate,
			AudioChannels:   t.AudioChannels,
		},
		FFmpeg: FFmpegSettings{Binary: "ffmpeg", ProbeBinary: "ffprobe"},
		Paths: PathSettings{
			WorkDir: filepath.Join(os.TempDir(), "dropzone"),
		},
		Logging: logging.Config{Level: "info", Format: "text", Modules: map[string]string{}},
	}
}

// LoadSettings reads path over DefaultSettings and validates the result.
// A missing file yields the defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := toml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to parse settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// SaveSettings writes s to path atomically.
func SaveSettings(path string, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return os.Rename(tmp, path)
}

// Validate checks value ranges.
func (s Settings) Validate() error {
	var errs []error
	t := s.Target
	if t.Width <= 0 || t.Width%2 != 0 || t.Height <= 0 || t.Height%2 != 0 {
		errs = append(errs, fmt.Errorf("target size %dx%d must be positive and even", t.Width, t.Height))
	}
	if t.FPS < 1 || t.FPS > 240 {
		errs = append(errs, fmt.Errorf("target fps %d out of range 1-240", t.FPS))
	}
	if t.PixelFormat == "" {
		errs = append(errs, errors.New("target pixel_format is required"))
	}
	if t.AudioSampleRate <= 0 || t.AudioChannels <= 0 {
		errs = append(errs, errors.New("target audio sample rate and channels must be positive"))
	}
	if s.Processing.MaxWorkers < 0 || s.Processing.MaxWorkers > 16 {
		errs = append(errs, fmt.Errorf("max_workers %d out of range 0-16", s.Processing.MaxWorkers))
	}
	if s.FFmpeg.Binary == "" || s.FFmpeg.ProbeBinary == "" {
		errs = append(errs, errors.New("ffmpeg binary and probe_binary are required"))
	}
	for _, sig := range s.FFmpeg.FailureSignatures {
		if sig.Pattern == "" {
			errs = append(errs, errors.New("failure signature with empty pattern"))
			break
		}
	}
	if s.Server.URL != "" {
		if _, err := upload.Destination(s.Server); err != nil {
			errs = append(errs, fmt.Errorf("server: %w", err))
		}
	}
	return errors.Join(errs...)
}

// EncodeTarget converts the target settings for the cutter.
func (s Settings) EncodeTarget() cutter.Target {
	t := cutter.DefaultTarget()
	t.Width = s.Target.Width
	t.Height = s.Target.Height
	t.FPS = s.Target.FPS
	t.PixelFormat = s.Target.PixelFormat
	if s.Target.AudioBitrate != "" {
		t.AudioBitrate = s.Target.AudioBitrate
	}
	t.AudioSampleRate = s.Target.AudioSampleRate
	t.AudioChannels = s.Target.AudioChannels
	return t
}

// PreviewConfig converts the settings for the preview orchestrator.
func (s Settings) PreviewConfig() preview.Config {
	return preview.Config{
		WorkDir:         s.Paths.WorkDir,
		HardwareEnabled: s.Processing.HardwareAcceleration,
		Parallel:        s.Processing.Parallel,
		MaxWorkers:      s.Processing.MaxWorkers,
	}
}
