package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

type testOptions struct {
	Config string

	Listen       string        `toml:"api.listen" env:"API_LISTEN"`
	CORSOrigin   string        `toml:"api.cors_origin" env:"API_CORS_ORIGIN"`
	Metrics      bool          `toml:"api.metrics" env:"API_METRICS"`
	MaxWorkers   int           `toml:"processing.max_workers" env:"MAX_WORKERS"`
	TargetFPS    float64       `toml:"target.fps" env:"TARGET_FPS"`
	Extensions   []string      `toml:"paths.extensions" env:"EXTENSIONS"`
	ProbeTimeout time.Duration `toml:"ffmpeg.probe_timeout" env:"PROBE_TIMEOUT"`
}

func writeTOML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dropzone.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const sampleTOML = `
[api]
listen = "0.0.0.0:9000"
cors_origin = "http://localhost:5173"
metrics = true

[processing]
max_workers = 6

[target]
fps = 30

[paths]
extensions = ["mp4", "mov"]

[ffmpeg]
probe_timeout = "45s"
`

func TestLoadConfigFromTOML(t *testing.T) {
	opts := &testOptions{Config: writeTOML(t, sampleTOML)}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	want := testOptions{
		Config:       opts.Config,
		Listen:       "0.0.0.0:9000",
		CORSOrigin:   "http://localhost:5173",
		Metrics:      true,
		MaxWorkers:   6,
		TargetFPS:    30,
		Extensions:   []string{"mp4", "mov"},
		ProbeTimeout: 45 * time.Second,
	}
	if !reflect.DeepEqual(*opts, want) {
		t.Errorf("options = %+v\nwant      %+v", *opts, want)
	}
}

func TestLoadConfigDurationAsSeconds(t *testing.T) {
	opts := &testOptions{Config: writeTOML(t, "[ffmpeg]\nprobe_timeout = 90\n")}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatal(err)
	}
	if opts.ProbeTimeout != 90*time.Second {
		t.Errorf("ProbeTimeout = %v, want 1m30s", opts.ProbeTimeout)
	}
}

func TestLoadConfigEnvOverridesTOML(t *testing.T) {
	t.Setenv("DROPZONE_API_LISTEN", "127.0.0.1:7000")
	t.Setenv("DROPZONE_API_METRICS", "false")
	t.Setenv("DROPZONE_MAX_WORKERS", "2")
	t.Setenv("DROPZONE_TARGET_FPS", "59.94")
	t.Setenv("DROPZONE_EXTENSIONS", " mp4 , mts ")
	t.Setenv("DROPZONE_PROBE_TIMEOUT", "2m")

	opts := &testOptions{Config: writeTOML(t, sampleTOML)}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatal(err)
	}

	if opts.Listen != "127.0.0.1:7000" || opts.Metrics || opts.MaxWorkers != 2 || opts.TargetFPS != 59.94 {
		t.Errorf("env did not override file: %+v", opts)
	}
	if !reflect.DeepEqual(opts.Extensions, []string{"mp4", "mts"}) {
		t.Errorf("Extensions = %q", opts.Extensions)
	}
	if opts.ProbeTimeout != 2*time.Minute {
		t.Errorf("ProbeTimeout = %v", opts.ProbeTimeout)
	}
	if opts.CORSOrigin != "http://localhost:5173" {
		t.Errorf("unset env must keep file value, got %q", opts.CORSOrigin)
	}
}

func TestLoadConfigCLIWins(t *testing.T) {
	t.Setenv("DROPZONE_API_LISTEN", "127.0.0.1:7000")

	opts := &testOptions{Config: writeTOML(t, sampleTOML)}
	cmd := &cobra.Command{Use: "dropzone"}
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "")
	cmd.Flags().StringVar(&opts.CORSOrigin, "cors-origin", "", "")
	cmd.Flags().IntVar(&opts.MaxWorkers, "max-workers", 4, "")
	if err := cmd.Flags().Parse([]string{"--listen", ":1234", "--cors-origin", "*"}); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatal(err)
	}
	if opts.Listen != ":1234" {
		t.Errorf("Listen = %q, CLI value must win", opts.Listen)
	}
	if opts.CORSOrigin != "*" {
		t.Errorf("CORSOrigin = %q, CLI value must win", opts.CORSOrigin)
	}
	if opts.MaxWorkers != 6 {
		t.Errorf("MaxWorkers = %d, unchanged flag takes the file value", opts.MaxWorkers)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		toml    string
		env     map[string]string
		wantErr string
	}{
		{"invalid toml", "[api\nlisten = ", nil, "failed to parse TOML"},
		{"wrong toml type", "[processing]\nmax_workers = \"many\"\n", nil, "processing.max_workers"},
		{"bad env int", "", map[string]string{"DROPZONE_MAX_WORKERS": "lots"}, "DROPZONE_MAX_WORKERS"},
		{"bad env bool", "", map[string]string{"DROPZONE_API_METRICS": "sometimes"}, "DROPZONE_API_METRICS"},
		{"bad env duration", "", map[string]string{"DROPZONE_PROBE_TIMEOUT": "soon"}, "DROPZONE_PROBE_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			opts := &testOptions{Config: writeTOML(t, tt.toml)}
			err := LoadConfig(opts, nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &testOptions{Config: filepath.Join(t.TempDir(), "nonexistent.toml"), Listen: "default"}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig should not fail for missing file: %v", err)
	}
	if opts.Listen != "default" {
		t.Errorf("Listen = %q, defaults must survive", opts.Listen)
	}
}

func TestLoadConfigRejectsNonPointer(t *testing.T) {
	if err := LoadConfig(testOptions{}, nil); err == nil {
		t.Error("expected error for non-pointer options")
	}
}

func TestFlagName(t *testing.T) {
	tests := map[string]string{
		"Config":       "config",
		"LoggingLevel": "logging-level",
		"CORSOrigin":   "cors-origin",
		"AuthUsername": "auth-username",
		"HTTPPort":     "http-port",
		"MaxWorkers2":  "max-workers2",
	}
	for in, want := range tests {
		if got := flagName(in); got != want {
			t.Errorf("flagName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLookupKey(t *testing.T) {
	doc := map[string]any{
		"api":  map[string]any{"listen": ":8090"},
		"flat": "x",
	}
	tests := []struct {
		key    string
		want   any
		wantOK bool
	}{
		{"api.listen", ":8090", true},
		{"flat", "x", true},
		{"api.missing", nil, false},
		{"flat.child", nil, false},
		{"nope.listen", nil, false},
	}
	for _, tt := range tests {
		got, ok := lookupKey(doc, tt.key)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("lookupKey(%q) = %v, %v; want %v, %v", tt.key, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeTOML(t, `
[logging]
level = "debug"
file = "/var/log/dropzone.log"

[logging.modules]
cutter = "warn"
`)

	cfg := LoadLoggingConfig(path)
	if cfg.Level != "debug" || cfg.Format != "text" || cfg.File != "/var/log/dropzone.log" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Modules["cutter"] != "warn" {
		t.Errorf("Modules = %v", cfg.Modules)
	}

	if def := LoadLoggingConfig(filepath.Join(t.TempDir(), "missing.toml")); def.Level != "info" || def.Modules == nil {
		t.Errorf("defaults = %+v", def)
	}
}
