package events

// Event type constants for kelindar/event.
const (
	TypePreviewState uint32 = iota + 1
	TypePreviewProgress
	TypeFileProgress
	TypeFileDone
	TypePreviewCombined
	TypePreviewFailed
	TypeCutProgress
	TypeCutFinished
	TypeHardwareDetected
	TypeUploadFinished
	TypeSettingsReloaded
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// PreviewStateEvent is published on every orchestrator state transition.
type PreviewStateEvent struct {
	State     string `json:"state" example:"PARTIAL" doc:"Orchestrator state"`
	Mode      string `json:"mode,omitempty" example:"standardize" doc:"Build mode: copy or standardize"`
	Timestamp string `json:"timestamp" example:"2025-06-14T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PreviewStateEvent.
func (e PreviewStateEvent) Type() uint32 { return TypePreviewState }

// PreviewProgressEvent carries overall build progress.
type PreviewProgressEvent struct {
	Percent   float64 `json:"percent" example:"66.7" doc:"Overall progress, 0-100"`
	Label     string  `json:"label,omitempty" example:"Standardizing 2/3" doc:"Human readable step"`
	Timestamp string  `json:"timestamp" example:"2025-06-14T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PreviewProgressEvent.
func (e PreviewProgressEvent) Type() uint32 { return TypePreviewProgress }

// FileProgressEvent carries progress of one working copy.
type FileProgressEvent struct {
	Name    string  `json:"name" example:"GX010001.MP4" doc:"Source file name"`
	Percent float64 `json:"percent" example:"42.5" doc:"File progress, 0-100"`
}

// Type returns the event type identifier for FileProgressEvent.
func (e FileProgressEvent) Type() uint32 { return TypeFileProgress }

// FileDoneEvent is published when one working copy is finished.
type FileDoneEvent struct {
	Name      string `json:"name" example:"GX010001.MP4" doc:"Source file name"`
	Timestamp string `json:"timestamp" example:"2025-06-14T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FileDoneEvent.
func (e FileDoneEvent) Type() uint32 { return TypeFileDone }

// PreviewCombinedEvent is published when the combined preview is ready.
type PreviewCombinedEvent struct {
	Path      string `json:"path" example:"/tmp/dropzone/preview_combined.mp4" doc:"Combined preview path"`
	Timestamp string `json:"timestamp" example:"2025-06-14T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PreviewCombinedEvent.
func (e PreviewCombinedEvent) Type() uint32 { return TypePreviewCombined }

// PreviewFailedEvent is published when a build ends in ERROR or CANCELLED.
type PreviewFailedEvent struct {
	Cancelled bool   `json:"cancelled" doc:"True when the build was cancelled"`
	Error     string `json:"error,omitempty" doc:"Failure description"`
	Timestamp string `json:"timestamp" example:"2025-06-14T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PreviewFailedEvent.
func (e PreviewFailedEvent) Type() uint32 { return TypePreviewFailed }

// CutProgressEvent carries progress of a trim or split.
type CutProgressEvent struct {
	Path      string  `json:"path" example:"/media/card/GX010001.MP4" doc:"File being cut"`
	Operation string  `json:"operation" example:"trim" doc:"trim or split"`
	Percent   float64 `json:"percent" example:"50" doc:"Progress, 0-100"`
}

// Type returns the event type identifier for CutProgressEvent.
func (e CutProgressEvent) Type() uint32 { return TypeCutProgress }

// CutFinishedEvent is published when a trim or split completes.
type CutFinishedEvent struct {
	Path      string `json:"path" doc:"File that was cut"`
	Operation string `json:"operation" example:"split" doc:"trim or split"`
	Strategy  string `json:"strategy,omitempty" example:"smart_cut" doc:"Strategy used"`
	Error     string `json:"error,omitempty" doc:"Failure description"`
	Timestamp string `json:"timestamp" example:"2025-06-14T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CutFinishedEvent.
func (e CutFinishedEvent) Type() uint32 { return TypeCutFinished }

// HardwareDetectedEvent is published after a hardware probe.
type HardwareDetectedEvent struct {
	Available bool   `json:"available" doc:"Whether a hardware encoder is usable"`
	Vendor    string `json:"vendor" example:"nvidia" doc:"GPU vendor"`
	Encoder   string `json:"encoder,omitempty" example:"h264_nvenc" doc:"H.264 encoder"`
	Timestamp string `json:"timestamp" example:"2025-06-14T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for HardwareDetectedEvent.
func (e HardwareDetectedEvent) Type() uint32 { return TypeHardwareDetected }

// UploadFinishedEvent reports the outcome of an upload.
type UploadFinishedEvent struct {
	Dir       string `json:"dir" doc:"Uploaded directory"`
	Success   bool   `json:"success" doc:"Whether the upload succeeded"`
	Message   string `json:"message" doc:"Uploader message"`
	Timestamp string `json:"timestamp" example:"2025-06-14T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for UploadFinishedEvent.
func (e UploadFinishedEvent) Type() uint32 { return TypeUploadFinished }

// SettingsReloadedEvent is published after the settings file was reloaded.
type SettingsReloadedEvent struct {
	Path      string `json:"path" doc:"Settings file"`
	Timestamp string `json:"timestamp" example:"2025-06-14T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SettingsReloadedEvent.
func (e SettingsReloadedEvent) Type() uint32 { return TypeSettingsReloaded }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"api" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
