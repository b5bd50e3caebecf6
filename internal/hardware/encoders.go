package hardware

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/smazurov/dropzone/internal/process"
)

var encoderLine = regexp.MustCompile(`^\s*([VASFXBD\.]{6})\s+(\w+)\s+(.+)$`)

// compiledEncoders lists the video encoders built into the ffmpeg binary.
func compiledEncoders(ctx context.Context, runner process.Runner, ffmpegBin string) (map[string]bool, error) {
	res, err := runner.Run(ctx, process.Command{
		Name: ffmpegBin,
		Args: []string{"-hide_banner", "-encoders"},
	})
	if err != nil {
		return nil, fmt.Errorf("list ffmpeg encoders: %w", err)
	}
	return parseEncoders(string(res.Stdout))
}

// parseEncoders processes the output of ffmpeg -encoders and returns the
// names of the video encoders.
func parseEncoders(output string) (map[string]bool, error) {
	result := make(map[string]bool)
	scanner := bufio.NewScanner(strings.NewReader(output))

	started := false
	for scanner.Scan() {
		line := scanner.Text()
		if !started {
			if strings.Contains(line, "Encoders:") {
				started = true
			}
			continue
		}
		m := encoderLine.FindStringSubmatch(line)
		if len(m) != 4 {
			continue
		}
		if strings.HasPrefix(m[1], "V") {
			result[m[2]] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading encoder list: %w", err)
	}
	return result, nil
}
