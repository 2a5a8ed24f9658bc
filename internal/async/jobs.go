// Package async runs indexing work in background jobs. Jobs are tracked
// in memory with a small state machine so callers can start a run,
// watch its progress, cancel it, and read its outcome later.
package async

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	qmderrors "github.com/quickmd/qmd/internal/errors"
)

// State is a job's position in its lifecycle.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// retention is how long finished jobs stay visible before CleanupOldJobs
// drops them.
const retention = 24 * time.Hour

// JobFunc is the work a job runs. The progress callback is safe to call
// from the work goroutine; done and total describe whatever unit the
// work counts in.
type JobFunc func(ctx context.Context, progress func(done, total int)) (any, error)

// Job is a snapshot of one background job. Result is whatever the
// JobFunc returned and is only set in StateCompleted.
type Job struct {
	ID         string    `json:"id"`
	Collection string    `json:"collection"`
	State      State     `json:"state"`
	Done       int       `json:"done"`
	Total      int       `json:"total"`
	Result     any       `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	StartedAt  time.Time `json:"startedAt,omitzero"`
	FinishedAt time.Time `json:"finishedAt,omitzero"`
}

type job struct {
	snapshot Job
	cancel   context.CancelFunc
	done     chan struct{}
}

// Manager owns the job table. Safe for concurrent use.
type Manager struct {
	mu   sync.Mutex
	jobs map[string]*job
	now  func() time.Time
}

func NewManager() *Manager {
	return &Manager{jobs: make(map[string]*job), now: time.Now}
}

// Start registers a job and launches fn on its own goroutine. The
// returned id is stable for the job's lifetime. ctx is the parent: its
// cancellation cancels the job, as does Cancel.
func (m *Manager) Start(ctx context.Context, collection string, fn JobFunc) string {
	runCtx, cancel := context.WithCancel(ctx)
	j := &job{
		snapshot: Job{
			ID:         uuid.NewString(),
			Collection: collection,
			State:      StatePending,
			CreatedAt:  m.now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	m.jobs[j.snapshot.ID] = j
	m.mu.Unlock()

	go m.run(runCtx, j, fn)
	return j.snapshot.ID
}

func (m *Manager) run(ctx context.Context, j *job, fn JobFunc) {
	defer close(j.done)
	defer j.cancel()

	m.transition(j, func(s *Job) {
		s.State = StateRunning
		s.StartedAt = m.now()
	})
	slog.Info("job_started",
		slog.String("job_id", j.snapshot.ID),
		slog.String("collection", j.snapshot.Collection))

	result, err := fn(ctx, func(done, total int) {
		m.transition(j, func(s *Job) {
			s.Done = done
			s.Total = total
		})
	})

	m.transition(j, func(s *Job) {
		s.FinishedAt = m.now()
		switch {
		case err == nil:
			s.State = StateCompleted
			s.Result = result
		case qmderrors.IsCancelled(err) || ctx.Err() != nil:
			// Cancellation is an outcome, not a failure.
			s.State = StateCancelled
		default:
			s.State = StateFailed
			s.Error = err.Error()
		}
	})

	final := m.mustGet(j.snapshot.ID)
	slog.Info("job_finished",
		slog.String("job_id", final.ID),
		slog.String("state", string(final.State)),
		slog.String("error", final.Error))
}

// Cancel requests cancellation. Returns false when the job is unknown
// or already finished.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if !ok || j.snapshot.State.Terminal() {
		m.mu.Unlock()
		return false
	}
	m.mu.Unlock()

	j.cancel()
	return true
}

// Get returns a job snapshot by id.
func (m *Manager) Get(id string) (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return j.snapshot, true
}

// List returns every tracked job, newest first.
func (m *Manager) List() []Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j.snapshot)
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].CreatedAt.After(out[k].CreatedAt)
		}
		return out[i].ID < out[k].ID
	})
	return out
}

// ActiveJobs returns jobs that have not reached a terminal state.
func (m *Manager) ActiveJobs() []Job {
	var active []Job
	for _, j := range m.List() {
		if !j.State.Terminal() {
			active = append(active, j)
		}
	}
	return active
}

// Wait blocks until the job finishes or ctx expires.
func (m *Manager) Wait(ctx context.Context, id string) (Job, error) {
	m.mu.Lock()
	j, ok := m.jobs[id]
	m.mu.Unlock()
	if !ok {
		return Job{}, qmderrors.New(qmderrors.ErrCodeInvalidInput, "unknown job: "+id, nil)
	}

	select {
	case <-j.done:
		return m.mustGet(id), nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// CleanupOldJobs drops terminal jobs older than the retention window.
// Returns how many were removed.
func (m *Manager) CleanupOldJobs() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-retention)
	removed := 0
	for id, j := range m.jobs {
		if j.snapshot.State.Terminal() && j.snapshot.FinishedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}

func (m *Manager) transition(j *job, mutate func(*Job)) {
	m.mu.Lock()
	mutate(&j.snapshot)
	m.mu.Unlock()
}

func (m *Manager) mustGet(id string) Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id].snapshot
}
