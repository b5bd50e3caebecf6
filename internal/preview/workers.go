package preview

// WorkerCount bounds parallel standardization. GPU encodes offload the
// CPU, so more of them fit; software encoders already use every core, so
// only a few run side by side.
func WorkerCount(hwAvailable bool, cpus int) int {
	if hwAvailable {
		return clamp(cpus/2, 2, 4)
	}
	return clamp(cpus/4, 1, 3)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
