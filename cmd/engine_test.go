package cmd

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/smazurov/dropzone/internal/cache"
	"github.com/smazurov/dropzone/internal/config"
)

const fakeProbe = `#!/bin/sh
cat <<'JSON'
{"streams":[{"codec_type":"video","codec_name":"h264","width":1920,"height":1080,
"r_frame_rate":"30/1","avg_frame_rate":"30/1"}],"format":{"duration":"8.0"}}
JSON
`

func TestEngineRefreshesTrimmedCopy(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a shell script ffprobe")
	}
	dir := t.TempDir()
	probe := filepath.Join(dir, "ffprobe")
	if err := os.WriteFile(probe, []byte(fakeProbe), 0o755); err != nil {
		t.Fatal(err)
	}

	s := config.DefaultSettings()
	s.FFmpeg.ProbeBinary = probe
	s.Processing.HardwareAcceleration = false
	engine := NewEngine(s)

	source := writeClip(t, dir, "jump.mp4", "source")
	working := writeClip(t, dir, "jump_std.mp4", "trimmed")
	id, ok := engine.Cache.IdentityOf(source)
	if !ok {
		t.Fatal("no identity for source")
	}
	engine.Cache.Register(id, working, cache.WithMetadata(cache.Metadata{Duration: "1:00"}))

	engine.refreshCopy(context.Background(), working)
	m, ok := engine.Cache.MetadataFor(id)
	if !ok || m.Duration != "0:08" {
		t.Errorf("metadata = %+v, %v; want duration 0:08", m, ok)
	}

	// Paths that are not working copies leave the cache alone.
	engine.refreshCopy(context.Background(), source)
	if engine.Cache.Len() != 1 {
		t.Errorf("Len = %d", engine.Cache.Len())
	}
}
