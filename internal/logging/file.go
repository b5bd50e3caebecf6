package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

const maxLogFileSize = 10 << 20

// openLogFile opens path for appending. A file above maxLogFileSize is
// rotated to path.1 first, replacing any earlier rotation.
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	if st, err := os.Stat(path); err == nil && st.Size() > maxLogFileSize {
		if err := os.Rename(path, path+".1"); err != nil {
			return nil, fmt.Errorf("rotate log file: %w", err)
		}
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
