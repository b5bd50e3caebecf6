// Package cutter plans and executes trims, splits and joins of video files.
//
// PlanTrim and PlanSplit pick the cheapest correct strategy from a file's
// keyframe index: stream copy when cut points sit on keyframes, a smart cut
// that re-encodes only the boundary regions, or a full re-encode when no
// keyframe data exists. Encoder runs segments through ffmpeg with a single
// software retry on classified hardware failures, and Assembler joins the
// results with the concat demuxer.
package cutter
