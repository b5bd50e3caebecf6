package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/smazurov/dropzone/internal/events"
	"github.com/smazurov/dropzone/internal/preview"
)

func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dropzone.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, settings string, sub *cobra.Command, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "dropzone", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().StringP("config", "c", "", "settings file")
	root.AddCommand(sub)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{sub.Name(), "--config", settings}, args...))
	err := root.Execute()
	return out.String(), err
}

func writeClip(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHistoryCommands(t *testing.T) {
	dir := t.TempDir()
	settings := writeSettings(t, "[paths]\nhistory = '"+filepath.ToSlash(filepath.Join(dir, "history.db"))+"'\n")
	clip := writeClip(t, dir, "GX010001.MP4", "0123456789")
	other := writeClip(t, dir, "GX010002.MP4", "01234")

	if _, err := run(t, settings, CreateHistoryCmd(), "mark", clip, "--status", "uploaded"); err != nil {
		t.Fatalf("mark: %v", err)
	}

	out, err := run(t, settings, CreateHistoryCmd(), "check", clip, other)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "processed") || !strings.HasPrefix(lines[1], "new") {
		t.Errorf("unexpected check output:\n%s", out)
	}

	out, err = run(t, settings, CreateHistoryCmd(), "check", "--new-only", clip, other)
	if err != nil {
		t.Fatalf("check --new-only: %v", err)
	}
	if strings.TrimSpace(out) != other {
		t.Errorf("check --new-only = %q, want %q", out, other)
	}

	out, err = run(t, settings, CreateHistoryCmd(), "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "GX010001.MP4") || !strings.Contains(out, "uploaded") {
		t.Errorf("unexpected list output:\n%s", out)
	}

	if _, err := run(t, settings, CreateHistoryCmd(), "forget", "GX010001.MP4", "10"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if _, err := run(t, settings, CreateHistoryCmd(), "forget", "GX010001.MP4", "10"); err == nil {
		t.Error("second forget should fail")
	}
	if _, err := run(t, settings, CreateHistoryCmd(), "mark", clip, "--status", "lost"); err == nil {
		t.Error("unknown status should fail")
	}
}

func TestUploadCommand(t *testing.T) {
	src := t.TempDir()
	share := t.TempDir()
	writeClip(t, src, "jump.mp4", "video")
	settings := writeSettings(t, "[server]\nurl = '"+filepath.ToSlash(share)+"'\n")

	out, err := run(t, settings, CreateUploadCmd(), src)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.Contains(out, "Uploaded 1 files") {
		t.Errorf("output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(share, filepath.Base(src), "jump.mp4")); err != nil {
		t.Errorf("uploaded file missing: %v", err)
	}

	if _, err := run(t, writeSettings(t, ""), CreateUploadCmd(), src); err == nil {
		t.Error("upload without a server should fail")
	}
}

func TestTrimRejectsInvertedRange(t *testing.T) {
	_, err := run(t, writeSettings(t, ""), CreateTrimCmd(), "clip.mp4", "--start", "10", "--end", "5")
	if err == nil || !strings.Contains(err.Error(), "must be after") {
		t.Errorf("err = %v", err)
	}
}

func TestInvalidSettingsFile(t *testing.T) {
	settings := writeSettings(t, "[target]\nfps = 0\n")
	if _, err := run(t, settings, CreateProbeCmd(), "clip.mp4"); err == nil {
		t.Error("invalid settings should fail the command")
	}
}

func TestConsoleNotifier(t *testing.T) {
	var out bytes.Buffer
	n := newConsoleNotifier(&out)

	n.Progress(10.2, "Copying 1/3")
	n.Progress(10.8, "Copying 1/3")
	n.Progress(33, "Copying 2/3")
	n.Status(preview.StatusState, preview.StateChange{State: preview.StateAllNew, Mode: preview.ModeCopy})
	n.Status(preview.StatusCombined, "/work/preview_combined.mp4")

	got := out.String()
	if strings.Count(got, "Copying 1/3") != 1 {
		t.Errorf("progress not deduplicated:\n%s", got)
	}
	for _, want := range []string{"[ 33%] Copying 2/3", "state: ALL_NEW copy", "preview: /work/preview_combined.mp4"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestLogsCommand(t *testing.T) {
	var gotQuery, gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/logs" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.RawQuery
		gotUser, _, _ = r.BasicAuth()
		_ = json.NewEncoder(w).Encode(map[string]any{"entries": []events.LogEntryEvent{{
			Seq:        7,
			Timestamp:  "2025-06-14T10:00:00Z",
			Level:      "warn",
			Module:     "cutter",
			Message:    "Encoder fallback",
			Attributes: map[string]any{"from": "h264_nvenc"},
		}}})
	}))
	defer srv.Close()

	out, err := run(t, writeSettings(t, ""), CreateLogsCmd(),
		"--url", srv.URL+"/", "--module", "cutter", "--level", "warn", "--limit", "5", "--user", "ops")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	want := "2025-06-14T10:00:00Z [WARN] [cutter] Encoder fallback from=h264_nvenc"
	if strings.TrimSpace(out) != want {
		t.Errorf("output = %q, want %q", out, want)
	}
	if gotQuery != "level=warn&limit=5&module=cutter" {
		t.Errorf("query = %q", gotQuery)
	}
	if gotUser != "ops" {
		t.Errorf("basic auth user = %q", gotUser)
	}
}

func TestLogsCommandServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := run(t, writeSettings(t, ""), CreateLogsCmd(), "--url", srv.URL)
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("err = %v, want 401", err)
	}
}

func TestParseTimecode(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"90", 90, false},
		{"12.5", 12.5, false},
		{"1:30", 90, false},
		{"1:02:03.5", 3723.5, false},
		{"75:00", 4500, false},
		{"1:75", 0, true},
		{"1.5:00", 0, true},
		{"-3", 0, true},
		{"1:2:3:4", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := parseTimecode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseTimecode(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseTimecode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTrimAcceptsTimecodes(t *testing.T) {
	_, err := run(t, writeSettings(t, ""), CreateTrimCmd(), "clip.mp4", "--start", "1:30", "--end", "1:00")
	if err == nil || !strings.Contains(err.Error(), "--end (60.000) must be after --start (90.000)") {
		t.Errorf("err = %v", err)
	}
}
