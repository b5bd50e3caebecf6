package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/smazurov/dropzone/internal/preview"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// consoleNotifier prints preview progress lines to a terminal.
type consoleNotifier struct {
	mu   sync.Mutex
	out  io.Writer
	last int
}

func newConsoleNotifier(out io.Writer) *consoleNotifier {
	return &consoleNotifier{out: out, last: -1}
}

func (n *consoleNotifier) Progress(percent float64, label string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	// one line per whole percent
	if int(percent) == n.last {
		return
	}
	n.last = int(percent)
	fmt.Fprintf(n.out, "[%3d%%] %s\n", int(percent), label)
}

func (n *consoleNotifier) Status(kind string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch kind {
	case preview.StatusState:
		if sc, ok := payload.(preview.StateChange); ok {
			fmt.Fprintf(n.out, "state: %s %s\n", sc.State, sc.Mode)
		}
	case preview.StatusFileDone:
		fmt.Fprintf(n.out, "done: %v\n", payload)
	case preview.StatusCombined:
		fmt.Fprintf(n.out, "preview: %v\n", payload)
	case preview.StatusError:
		fmt.Fprintf(n.out, "error: %v\n", payload)
	case preview.StatusCancelled:
		fmt.Fprintln(n.out, "cancelled")
	}
}
