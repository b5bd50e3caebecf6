package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/smazurov/dropzone/internal/ffmpeg"
	"github.com/smazurov/dropzone/internal/history"
)

// timecode is a seconds flag that also accepts [hh:]mm:ss[.fff].
type timecode float64

var _ pflag.Value = (*timecode)(nil)

func (t *timecode) String() string { return ffmpeg.FormatSeconds(float64(*t)) }

func (t *timecode) Type() string { return "timecode" }

func (t *timecode) Set(s string) error {
	v, err := parseTimecode(s)
	if err != nil {
		return err
	}
	*t = timecode(v)
	return nil
}

func parseTimecode(s string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timecode %q", s)
	}
	var total float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid timecode %q", s)
		}
		// only the last field may carry a fraction, only the first may reach 60
		if i < len(parts)-1 && v != float64(int(v)) {
			return 0, fmt.Errorf("invalid timecode %q", s)
		}
		if i > 0 && v >= 60 {
			return 0, fmt.Errorf("invalid timecode %q", s)
		}
		total = total*60 + v
	}
	return total, nil
}

// statusValue restricts a flag to the history record statuses.
type statusValue history.Status

var _ pflag.Value = (*statusValue)(nil)

func (s *statusValue) String() string { return string(*s) }

func (s *statusValue) Type() string { return "status" }

func (s *statusValue) Set(v string) error {
	switch st := history.Status(strings.ToLower(v)); st {
	case history.StatusProcessed, history.StatusUploaded, history.StatusFailed:
		*s = statusValue(st)
		return nil
	}
	return fmt.Errorf("must be one of %s, %s, %s", history.StatusProcessed, history.StatusUploaded, history.StatusFailed)
}
