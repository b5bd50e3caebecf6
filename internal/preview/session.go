package preview

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/dropzone/internal/logging"
	"github.com/smazurov/dropzone/internal/process"
)

// ErrBusy is returned by Retry and Reset while a build is running.
var ErrBusy = errors.New("a preview build is already running")

// Job describes one background build.
type Job struct {
	ID       string    `json:"id"`
	Sources  []string  `json:"sources"`
	State    State     `json:"state"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished,omitzero"`
	Result   *Result   `json:"result,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Status is the session view returned to callers.
type Status struct {
	Running bool      `json:"running"`
	Queued  bool      `json:"queued"`
	Job     *Job      `json:"job,omitempty"`
	Preview *Snapshot `json:"preview"`
}

// Session runs builds on a background goroutine, one at a time. A submit
// during a build cancels it and queues a restart with the new list; the
// cancelled build keeps its finished working copies for the restart.
type Session struct {
	orch   *Orchestrator
	base   context.Context
	logger logging.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	pending *Job
	current *Job
	idle    chan struct{}
}

// NewSession creates a Session whose builds derive from ctx.
func NewSession(ctx context.Context, orch *Orchestrator, logger logging.Logger) *Session {
	idle := make(chan struct{})
	close(idle)
	return &Session{orch: orch, base: ctx, logger: logger, idle: idle}
}

// Submit starts a build of sources, replacing any running or queued build.
// It returns the job ID.
func (s *Session) Submit(sources []string) string {
	job := newJob(sources)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.pending = job
		s.cancel()
		s.logger.Info("Preview restart queued", "job", job.ID, "sources", len(sources))
		return job.ID
	}
	s.start(job, func(ctx context.Context) (*Result, error) {
		return s.orch.Build(ctx, job.Sources)
	})
	return job.ID
}

// Retry replays the last source list.
func (s *Session) Retry() (string, error) {
	sources := s.orch.LastSources()
	if sources == nil {
		return "", ErrNothingToRetry
	}
	job := newJob(sources)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return "", ErrBusy
	}
	s.start(job, s.orch.Retry)
	return job.ID, nil
}

// Cancel stops the running build and drops any queued restart. It reports
// whether a build was running.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	s.pending = nil
	s.cancel()
	return true
}

// Reset deletes every working copy and the combined preview. It fails with
// ErrBusy while a build runs or is queued.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrBusy
	}
	s.orch.Reset()
	return nil
}

// Status returns the current job and orchestrator snapshot.
func (s *Session) Status() Status {
	snap := s.orch.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{Running: s.running, Queued: s.pending != nil, Preview: &snap}
	if s.current != nil {
		job := *s.current
		job.Sources = slices.Clone(job.Sources)
		st.Job = &job
	}
	return st
}

// Wait blocks until no build is running or queued, or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newJob(sources []string) *Job {
	return &Job{ID: uuid.NewString(), Sources: slices.Clone(sources), State: StateEmpty}
}

// start launches job; s.mu must be held.
func (s *Session) start(job *Job, run func(context.Context) (*Result, error)) {
	ctx, cancel := context.WithCancel(s.base)
	job.Started = time.Now()
	s.current = job
	s.cancel = cancel
	if !s.running {
		s.running = true
		s.idle = make(chan struct{})
	}

	go func() {
		defer cancel()
		res, err := run(ctx)
		s.finish(job, res, err)
	}()
}

func (s *Session) finish(job *Job, res *Result, err error) {
	canceled := process.IsCanceled(err)

	s.mu.Lock()
	job.Finished = time.Now()
	job.Result = res
	if res != nil {
		job.State = res.State
	}
	if err != nil && !canceled {
		job.Error = err.Error()
	}

	// Reset while still marked running so a concurrent Submit queues
	// behind it instead of racing the cleanup.
	if canceled && s.pending == nil {
		s.mu.Unlock()
		s.orch.Reset()
		s.mu.Lock()
	}

	if next := s.pending; next != nil {
		s.pending = nil
		s.start(next, func(ctx context.Context) (*Result, error) {
			return s.orch.Build(ctx, next.Sources)
		})
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel = nil
	idle := s.idle
	s.mu.Unlock()

	s.logger.Info("Preview job finished", "job", job.ID, "state", job.State)
	close(idle)
}
