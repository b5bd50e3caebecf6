// Package process runs short-lived media tool invocations (ffmpeg, ffprobe)
// with cooperative cancellation.
//
// A Runner executes one Command to completion:
//   - stdout is either buffered or streamed line by line to Command.OnLine
//     (used for ffmpeg's -progress pipe:1 key=value stream)
//   - stderr is captured up to a bounded size and re-logged through an
//     optional LogParser
//   - when the context is cancelled the process is asked to stop
//     (SIGINT on Unix, "q" on stdin on Windows), given a grace period,
//     then killed
//
// Cancellation is reported as ErrCanceled, never as a failure. The places
// where callers poll for cancellation are named Checkpoints so they can be
// enumerated in logs:
//
//	if err := process.Check(ctx, process.CheckpointBeforeSegment); err != nil {
//	    return err // errors.Is(err, process.ErrCanceled)
//	}
package process
