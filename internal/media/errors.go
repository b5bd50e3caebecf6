package media

import "fmt"

// ErrCode identifies a probe failure.
type ErrCode string

// Probe error codes.
const (
	ErrCodeProbeFailed   ErrCode = "probe_failed"
	ErrCodeNoVideoStream ErrCode = "no_video_stream"
	ErrCodeInvalidOutput ErrCode = "invalid_output"
)

// ProbeError is returned when a file cannot be probed or has no video stream.
type ProbeError struct {
	Code    ErrCode
	Path    string
	Message string
	Cause   error
}

func (e *ProbeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("probe %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("probe %s: %s", e.Path, e.Message)
}

func (e *ProbeError) Unwrap() error {
	return e.Cause
}
