package cache

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smazurov/dropzone/internal/media"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name, content string) string {
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

func TestIdentityIndependentOfPath(t *testing.T) {
	root := t.TempDir()
	a := writeFile(t, filepath.Join(root, "card1"), "GX010001.MP4", "same bytes")
	b := writeFile(t, filepath.Join(root, "import", "again"), "GX010001.MP4", "same bytes")
	copyPath := writeFile(t, filepath.Join(root, "work"), "001_GX010001.mp4", "copy")

	c := New(testLogger())
	id, ok := c.IdentityOf(a)
	if !ok {
		t.Fatal("IdentityOf failed")
	}
	if id.Name != "GX010001.MP4" || id.Size != int64(len("same bytes")) {
		t.Errorf("identity = %+v", id)
	}
	c.Register(id, copyPath)

	got, ok := c.Find(b)
	if !ok || got != copyPath {
		t.Errorf("Find from another folder = %q, %v; want %q", got, ok, copyPath)
	}

	// same name, different size is a different clip
	d := writeFile(t, filepath.Join(root, "other"), "GX010001.MP4", "different bytes")
	if _, ok := c.Find(d); ok {
		t.Error("different size must miss")
	}
}

func TestIdentityOfMissing(t *testing.T) {
	c := New(testLogger())
	if _, ok := c.IdentityOf(filepath.Join(t.TempDir(), "gone.mp4")); ok {
		t.Error("expected miss for missing file")
	}
	if _, ok := c.Find(filepath.Join(t.TempDir(), "gone.mp4")); ok {
		t.Error("expected Find miss for missing file")
	}
	if _, ok := c.IdentityOf(t.TempDir()); ok {
		t.Error("directories have no identity")
	}
}

func TestLazyEviction(t *testing.T) {
	dir := t.TempDir()
	copyPath := writeFile(t, dir, "001_a.mp4", "copy")
	id := Identity{Name: "a.mp4", Size: 10}

	c := New(testLogger())
	if c.Register(id, copyPath) {
		t.Error("first Register must not report an overwrite")
	}
	if _, ok := c.Lookup(id); !ok {
		t.Fatal("expected hit")
	}

	if err := os.Remove(copyPath); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Lookup(id); ok {
		t.Error("expected miss after copy was deleted")
	}
	if c.Len() != 0 {
		t.Errorf("stale entry not evicted, Len = %d", c.Len())
	}
	if c.Register(id, writeFile(t, dir, "001_a.mp4", "new copy")) {
		t.Error("Register after eviction must not report an overwrite")
	}
}

func TestRegisterOverwrite(t *testing.T) {
	dir := t.TempDir()
	id := Identity{Name: "a.mp4", Size: 10}
	c := New(testLogger())

	c.Register(id, writeFile(t, dir, "001_a.mp4", "x"))
	if !c.Register(id, writeFile(t, dir, "002_a.mp4", "x")) {
		t.Error("expected overwrite to be reported")
	}
	e, ok := c.Lookup(id)
	if !ok || filepath.Base(e.CopyPath) != "002_a.mp4" {
		t.Errorf("entry = %+v", e)
	}
}

func TestRenameAndMetadata(t *testing.T) {
	dir := t.TempDir()
	id := Identity{Name: "a.mp4", Size: 10}
	c := New(testLogger())
	format := media.Format{Codec: "h264", Width: 1920, Height: 1080, FrameRate: "30/1", PixelFormat: "yuv420p"}

	c.Register(id, writeFile(t, dir, "001_a.mp4", "x"), WithFormat(format), WithMetadata(Metadata{Duration: "0:10"}))

	newPath := writeFile(t, dir, "003_a.mp4", "x")
	if !c.Rename(id, newPath) {
		t.Fatal("Rename failed")
	}
	if got, _ := c.Find(writeFile(t, filepath.Join(dir, "src"), "a.mp4", "0123456789")); got != newPath {
		t.Errorf("Find after rename = %q", got)
	}
	if c.Rename(Identity{Name: "nope", Size: 1}, newPath) {
		t.Error("Rename of unknown identity must fail")
	}

	m, ok := c.MetadataFor(id)
	if !ok || m.Duration != "0:10" {
		t.Errorf("MetadataFor = %+v, %v", m, ok)
	}
	c.SetMetadata(id, Metadata{Duration: "0:08"})
	if m, _ := c.MetadataFor(id); m.Duration != "0:08" {
		t.Errorf("SetMetadata not applied: %+v", m)
	}
	if owner, ok := c.OwnerOf(newPath); !ok || owner != id {
		t.Errorf("OwnerOf(%q) = %v, %v", newPath, owner, ok)
	}
	if _, ok := c.OwnerOf(filepath.Join(dir, "elsewhere.mp4")); ok {
		t.Error("OwnerOf matched an unknown path")
	}

	std := media.Format{Codec: "h264", Width: 1920, Height: 1080, FrameRate: "30/1", PixelFormat: "yuv420p"}
	c.MarkStandardized(id, std)
	e, _ := c.Lookup(id)
	if !e.Standardized || e.Format != std {
		t.Errorf("MarkStandardized not applied: %+v", e)
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	dir := t.TempDir()
	id := Identity{Name: "a.mp4", Size: 10}
	c := New(testLogger())
	c.Register(id, writeFile(t, dir, "001_a.mp4", "x"), WithMetadata(Metadata{Duration: "0:10"}))

	entries := c.Entries()
	entries[0].CopyPath = "changed"
	entries[0].Metadata.Duration = "changed"

	e, _ := c.Lookup(id)
	if e.CopyPath == "changed" || e.Metadata.Duration == "changed" {
		t.Error("Entries must return independent copies")
	}
}

func TestRetain(t *testing.T) {
	dir := t.TempDir()
	a := Identity{Name: "a.mp4", Size: 1}
	b := Identity{Name: "b.mp4", Size: 2}
	cc := Identity{Name: "c.mp4", Size: 3}

	c := New(testLogger())
	c.Register(a, writeFile(t, dir, "001_a.mp4", "x"))
	c.Register(b, writeFile(t, dir, "002_b.mp4", "x"))
	c.Register(cc, writeFile(t, dir, "003_c.mp4", "x"))

	dropped := c.Retain([]Identity{a, cc})
	if len(dropped) != 1 || dropped[0].Identity != b {
		t.Fatalf("dropped = %+v", dropped)
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
	entries := c.Entries()
	if entries[0].Identity != a || entries[1].Identity != cc {
		t.Errorf("Entries not ordered by copy path: %+v", entries)
	}

	if !c.Invalidate(a) || c.Invalidate(a) {
		t.Error("Invalidate should succeed once")
	}
	if c.Len() != 1 {
		t.Errorf("Len after Invalidate = %d, want 1", c.Len())
	}
}

func TestFormatters(t *testing.T) {
	durations := []struct {
		in   float64
		want string
	}{
		{0, "0:00"},
		{9.6, "0:10"},
		{75, "1:15"},
		{3725, "1:02:05"},
		{-3, "0:00"},
	}
	for _, tt := range durations {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}

	sizes := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, tt := range sizes {
		if got := FormatSize(tt.in); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewMetadata(t *testing.T) {
	info := &media.VideoInfo{DurationMs: 83500, FPS: 30000.0 / 1001, Width: 3840, Height: 2160}
	mod := time.Date(2025, 6, 14, 10, 22, 31, 0, time.Local)

	m := NewMetadata(info, 2*1024*1024*1024, mod)
	if m.Duration != "1:24" {
		t.Errorf("Duration = %q", m.Duration)
	}
	if m.Size != "2.0 GB" {
		t.Errorf("Size = %q", m.Size)
	}
	if m.Date != "2025-06-14" || m.Time != "10:22:31" {
		t.Errorf("Date/Time = %q %q", m.Date, m.Time)
	}
	if m.FormatLabel != "3840x2160 @ 29.97fps" {
		t.Errorf("FormatLabel = %q", m.FormatLabel)
	}
}
