package ffmpeg

import "strings"

// ParseLogLevel extracts the level from an ffmpeg stderr line written with
// -loglevel level+<n>. Lines look like "[error] message" or
// "[h264_nvenc @ 0x55d] [error] message"; the component prefix is kept and
// the level tag stripped. Untagged lines are reported as "info".
func ParseLogLevel(line string) (level, msg string) {
	if !strings.HasPrefix(line, "[") {
		return "info", line
	}

	tag, rest, ok := strings.Cut(line[1:], "] ")
	if !ok {
		return "info", line
	}
	if isLogLevel(tag) {
		return tag, rest
	}

	// [component @ 0x...] [level] message
	if strings.HasPrefix(rest, "[") {
		if next, tail, found := strings.Cut(rest[1:], "] "); found && isLogLevel(next) {
			return next, "[" + tag + "] " + tail
		}
	}

	return "info", line
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}
