package ffmpeg

import (
	"strconv"
	"strings"
	"time"
)

// Progress is one block of ffmpeg's -progress key=value output.
type Progress struct {
	Frame   int64
	OutTime time.Duration
	Speed   float64
	Done    bool
}

// ProgressFunc receives the completion percentage (0-100) and the raw block.
type ProgressFunc func(percent float64, p Progress)

// ProgressParser turns -progress pipe:1 lines into percentage updates.
// ffmpeg emits a block of key=value lines terminated by progress=continue
// or progress=end; one update is published per block.
type ProgressParser struct {
	total    time.Duration
	current  Progress
	onUpdate ProgressFunc
}

// NewProgressParser creates a parser for an output of the given duration.
func NewProgressParser(total time.Duration, onUpdate ProgressFunc) *ProgressParser {
	return &ProgressParser{total: total, onUpdate: onUpdate}
}

// HandleLine consumes one stdout line.
func (pp *ProgressParser) HandleLine(line string) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return
	}
	value = strings.TrimSpace(value)

	switch key {
	case "frame":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			pp.current.Frame = n
		}
	case "out_time_us", "out_time_ms":
		// out_time_ms is in microseconds as well.
		if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
			pp.current.OutTime = time.Duration(us) * time.Microsecond
		}
	case "out_time":
		if d, ok := parseClock(value); ok {
			pp.current.OutTime = d
		}
	case "speed":
		if s, err := strconv.ParseFloat(strings.TrimSuffix(value, "x"), 64); err == nil {
			pp.current.Speed = s
		}
	case "progress":
		pp.current.Done = value == "end"
		if pp.onUpdate != nil {
			pp.onUpdate(pp.Percent(), pp.current)
		}
	}
}

// Percent returns the completion percentage of the last block.
func (pp *ProgressParser) Percent() float64 {
	if pp.current.Done {
		return 100
	}
	if pp.total <= 0 {
		return 0
	}
	pct := float64(pp.current.OutTime) / float64(pp.total) * 100
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// parseClock parses HH:MM:SS.micro as written by ffmpeg.
func parseClock(s string) (time.Duration, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	sec, errS := strconv.ParseFloat(parts[2], 64)
	if errH != nil || errM != nil || errS != nil {
		return 0, false
	}
	total := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
	return total + time.Duration(sec*float64(time.Second)), true
}
