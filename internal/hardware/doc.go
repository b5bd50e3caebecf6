// Package hardware detects GPU video encoders and maps them to ffmpeg
// arguments.
//
// Detection intersects the encoders compiled into the installed ffmpeg with
// the GPUs present on the machine. The resulting Profile is resolved once
// per Detector and persisted to a small versioned JSON file so later runs
// skip the probe. Bump CacheVersion whenever vendor parameters change.
package hardware
