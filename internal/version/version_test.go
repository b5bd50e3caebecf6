package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestBanner(t *testing.T) {
	oldVersion, oldCommit := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = oldVersion, oldCommit })

	Version = "1.2.0"
	GitCommit = "0123456789abcdef"

	got := Banner()
	if !strings.HasPrefix(got, "dropzone 1.2.0 (0123456, ") {
		t.Errorf("Banner() = %q", got)
	}
}

func TestApplyBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		Main: debug.Module{Version: "v0.4.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "deadbeefcafe"},
			{Key: "vcs.time", Value: "2025-06-14T10:00:00Z"},
		},
	}

	tests := []struct {
		name string
		in   Info
		want Info
	}{
		{
			name: "unstamped build takes vcs info",
			in:   Info{Version: "dev", GitCommit: "unknown", BuildDate: "unknown"},
			want: Info{Version: "v0.4.1", GitCommit: "deadbeefcafe", BuildDate: "2025-06-14T10:00:00Z"},
		},
		{
			name: "ldflags win",
			in:   Info{Version: "1.0.0", GitCommit: "abc", BuildDate: "today"},
			want: Info{Version: "1.0.0", GitCommit: "abc", BuildDate: "today"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := tt.in
			applyBuildInfo(&info, bi)
			if info != tt.want {
				t.Errorf("got %+v, want %+v", info, tt.want)
			}
		})
	}
}
