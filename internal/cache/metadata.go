package cache

import (
	"fmt"
	"math"
	"time"

	"github.com/smazurov/dropzone/internal/media"
)

// Metadata is the display record of a working copy.
type Metadata struct {
	Duration    string `json:"duration"`
	Size        string `json:"size"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	FormatLabel string `json:"format_label"`
}

// NewMetadata formats probe results for display. The capture time comes
// from the container tags, falling back to modTime.
func NewMetadata(info *media.VideoInfo, size int64, modTime time.Time) Metadata {
	captured := modTime
	if info != nil && !info.CreationTime.IsZero() {
		captured = info.CreationTime.Local()
	}
	m := Metadata{Size: FormatSize(size)}
	if !captured.IsZero() {
		m.Date = captured.Format("2006-01-02")
		m.Time = captured.Format("15:04:05")
	}
	if info != nil {
		m.Duration = FormatDuration(info.Duration())
		m.FormatLabel = FormatLabel(info)
	}
	return m
}

// FormatDuration renders seconds as M:SS or H:MM:SS.
func FormatDuration(seconds float64) string {
	total := int(math.Round(seconds))
	if total < 0 {
		total = 0
	}
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatSize renders a byte count with a binary unit.
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FormatLabel renders resolution and frame rate, e.g. "1920x1080 @ 29.97fps".
func FormatLabel(info *media.VideoInfo) string {
	fps := math.Round(info.FPS*100) / 100
	return fmt.Sprintf("%dx%d @ %gfps", info.Width, info.Height, fps)
}
