package preview

import "github.com/smazurov/dropzone/internal/cache"

// State is the orchestrator state over the active file list.
type State string

// Orchestrator states.
const (
	StateEmpty     State = "EMPTY"
	StateAllCached State = "ALL_CACHED"
	StatePartial   State = "PARTIAL"
	StateAllNew    State = "ALL_NEW"
	StateCombined  State = "COMBINED"
	StateCancelled State = "CANCELLED"
	StateError     State = "ERROR"
)

// Mode is how new working copies are produced.
type Mode string

// Build modes.
const (
	ModeNone        Mode = ""
	ModeCopy        Mode = "copy"
	ModeStandardize Mode = "standardize"
)

// Status kinds passed to Notifier.Status.
const (
	StatusState        = "state"
	StatusFileDone     = "file_done"
	StatusFileProgress = "file_progress"
	StatusCombined     = "combined"
	StatusCancelled    = "cancelled"
	StatusError        = "error"
)

// Notifier receives progress and status updates from a build.
type Notifier interface {
	Progress(percent float64, label string)
	Status(kind string, payload any)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

// Progress implements Notifier.
func (NopNotifier) Progress(float64, string) {}

// Status implements Notifier.
func (NopNotifier) Status(string, any) {}

// FileResult describes the working copy of one source.
type FileResult struct {
	Source       string         `json:"source"`
	Identity     cache.Identity `json:"identity"`
	CopyPath     string         `json:"copy_path"`
	Cached       bool           `json:"cached"`
	Standardized bool           `json:"standardized"`
}

// Result is the outcome of a build.
type Result struct {
	// Initial is ALL_CACHED, PARTIAL or ALL_NEW.
	Initial State        `json:"initial"`
	State   State        `json:"state"`
	Mode    Mode         `json:"mode,omitempty"`
	Path    string       `json:"path,omitempty"`
	Files   []FileResult `json:"files"`
	Encoded int          `json:"encoded"`
	Copied  int          `json:"copied"`
}

// FileProgress is the payload of StatusFileProgress.
type FileProgress struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
}

// StateChange is the payload of StatusState.
type StateChange struct {
	State State `json:"state"`
	Mode  Mode  `json:"mode,omitempty"`
}
