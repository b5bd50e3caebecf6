package logging

import (
	"log/slog"
	"sync"
	"time"
)

// LogEntry is one record kept in the history buffer. Seq is assigned by the
// buffer and increases by one per entry.
type LogEntry struct {
	Seq        uint64         `json:"seq"`
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Filter selects buffered entries. Zero values match everything.
type Filter struct {
	Module   string
	MinLevel string
	AfterSeq uint64
	Limit    int
}

func (f Filter) match(e LogEntry) bool {
	if e.Seq <= f.AfterSeq {
		return false
	}
	if f.Module != "" && e.Module != f.Module {
		return false
	}
	if f.MinLevel != "" && levelRank(e.Level) < levelRank(f.MinLevel) {
		return false
	}
	return true
}

func levelRank(level string) int {
	return int(levelOrDefault(level, slog.LevelInfo))
}

// RingBuffer keeps the most recent log entries, oldest evicted first.
type RingBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	next    int
	full    bool
	seq     uint64
}

// NewRingBuffer creates a buffer holding at most size entries.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &RingBuffer{entries: make([]LogEntry, size)}
}

// Cap returns the buffer capacity.
func (rb *RingBuffer) Cap() int {
	return len(rb.entries)
}

// Write stores entry and returns it with its sequence number set.
func (rb *RingBuffer) Write(entry LogEntry) LogEntry {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.seq++
	entry.Seq = rb.seq
	rb.entries[rb.next] = entry
	rb.next++
	if rb.next == len(rb.entries) {
		rb.next = 0
		rb.full = true
	}
	return entry
}

// ReadAll returns every buffered entry, oldest first.
func (rb *RingBuffer) ReadAll() []LogEntry {
	return rb.Query(Filter{})
}

// Query returns the buffered entries matching f, oldest first. With a
// Limit only the newest Limit matches are kept.
func (rb *RingBuffer) Query(f Filter) []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var out []LogEntry
	visit := func(part []LogEntry) {
		for _, e := range part {
			if f.match(e) {
				out = append(out, e)
			}
		}
	}
	if rb.full {
		visit(rb.entries[rb.next:])
	}
	visit(rb.entries[:rb.next])

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

// LastSeq returns the sequence number of the newest entry, 0 when empty.
func (rb *RingBuffer) LastSeq() uint64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.seq
}

// Count returns the number of buffered entries.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if rb.full {
		return len(rb.entries)
	}
	return rb.next
}
