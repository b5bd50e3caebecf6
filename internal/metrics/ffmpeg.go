// Package metrics provides Prometheus metrics for ffmpeg jobs and the
// segmentation and preview engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dropzone"

var (
	encodeProgress = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "progress_percent",
		Help:      "Progress of a running ffmpeg job",
	}, []string{"job"})

	encodeSpeed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "processing_speed",
		Help:      "FFmpeg processing speed multiplier",
	}, []string{"job"})

	// Local cache for API access.
	jobCache   = make(map[string]*FFmpegJobMetrics)
	jobCacheMu sync.RWMutex
)

// FFmpegJobMetrics holds current metric values for a running job.
type FFmpegJobMetrics struct {
	Percent float64 `json:"percent"`
	Speed   float64 `json:"speed"`
}

// SetFFmpegProgress records the progress of a job.
func SetFFmpegProgress(job string, percent, speed float64) {
	encodeProgress.WithLabelValues(job).Set(percent)
	encodeSpeed.WithLabelValues(job).Set(speed)
	updateCache(job, func(m *FFmpegJobMetrics) {
		m.Percent = percent
		m.Speed = speed
	})
}

// DeleteFFmpegMetrics removes all metrics for a finished job.
func DeleteFFmpegMetrics(job string) {
	encodeProgress.DeleteLabelValues(job)
	encodeSpeed.DeleteLabelValues(job)

	jobCacheMu.Lock()
	delete(jobCache, job)
	jobCacheMu.Unlock()
}

// GetFFmpegMetrics returns current metric values for a job.
func GetFFmpegMetrics(job string) *FFmpegJobMetrics {
	jobCacheMu.RLock()
	defer jobCacheMu.RUnlock()
	if m, ok := jobCache[job]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllFFmpegMetrics returns metrics for all running jobs.
func GetAllFFmpegMetrics() map[string]*FFmpegJobMetrics {
	jobCacheMu.RLock()
	defer jobCacheMu.RUnlock()
	result := make(map[string]*FFmpegJobMetrics, len(jobCache))
	for id, m := range jobCache {
		dup := *m
		result[id] = &dup
	}
	return result
}

func updateCache(job string, update func(*FFmpegJobMetrics)) {
	jobCacheMu.Lock()
	defer jobCacheMu.Unlock()
	m, ok := jobCache[job]
	if !ok {
		m = &FFmpegJobMetrics{}
		jobCache[job] = m
	}
	update(m)
}
