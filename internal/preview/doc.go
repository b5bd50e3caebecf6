// Package preview builds one combined preview artifact from a list of
// source clips, reusing cached working copies across builds.
//
// The Orchestrator decides per build whether the clips can be stream
// copied into working copies or must be standardized to a common profile,
// runs the encodes on a bounded worker pool and joins the copies with the
// concat demuxer. A Session runs builds in the background, one at a time,
// restarting when a new source list arrives mid-build.
package preview
