// Package progress holds the process-wide table of transcode job progress.
// Jobs write their own (key, kind) slots; the status endpoint is the only
// reader. The table lives for the process lifetime, so finished records are
// swept after a TTL to keep long-running servers from accumulating them.
package progress

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/framelab/media-service/internal/model"
)

// ErrNotFound is returned for keys with no registered job. Polling before a
// job is registered, or after a restart, hits this path in normal operation.
var ErrNotFound = errors.New("no progress recorded for key")

// DefaultTTL is how long finished job records stay visible to pollers.
const DefaultTTL = time.Hour

type Store struct {
	mu   sync.RWMutex
	jobs map[string]*model.JobProgress
	ttl  time.Duration
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		jobs: make(map[string]*model.JobProgress),
		ttl:  ttl,
	}
}

// Register creates a fresh record for key with all four tasks at zero.
// Re-registering an existing key resets it.
func (s *Store) Register(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	tasks := make(map[model.TaskKind]model.TaskProgress, len(model.TaskKinds))
	for _, kind := range model.TaskKinds {
		tasks[kind] = model.TaskProgress{Kind: kind}
	}
	s.jobs[key] = &model.JobProgress{
		Key:       key,
		Status:    model.JobStatusQueued,
		Tasks:     tasks,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Active reports whether key has a live, unfinished record. Used to refuse
// a second job under the same key while the first is still running.
func (s *Store) Active(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[key]
	return ok && !job.Status.Terminal()
}

// Set records an encoder progress reading for one task. Readings are clamped
// to [0,100] and a lower reading never overwrites a higher one; the encoder's
// progress signal is only approximately monotonic.
func (s *Store) Set(key string, kind model.TaskKind, percent float64) {
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[key]
	if !ok {
		return
	}

	task := job.Tasks[kind]
	if task.Done || percent <= task.Percent {
		return
	}
	task.Percent = percent
	job.Tasks[kind] = task

	if job.Status == model.JobStatusQueued {
		job.Status = model.JobStatusRunning
	}
	job.UpdatedAt = time.Now()
}

// MarkDone terminates a task's record on the success path.
func (s *Store) MarkDone(key string, kind model.TaskKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[key]
	if !ok {
		return
	}

	job.Tasks[kind] = model.TaskProgress{Kind: kind, Percent: 100, Done: true}
	job.UpdatedAt = time.Now()
}

// FailTask terminates a task's record on the failure path. Every task must
// end with either Done or a populated Error, or pollers see partial progress
// forever.
func (s *Store) FailTask(key string, kind model.TaskKind, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[key]
	if !ok {
		return
	}

	msg := err.Error()
	task := job.Tasks[kind]
	task.Error = &msg
	job.Tasks[kind] = task
	job.UpdatedAt = time.Now()
}

// Complete marks the whole job succeeded.
func (s *Store) Complete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.jobs[key]; ok {
		job.Status = model.JobStatusSucceeded
		job.UpdatedAt = time.Now()
	}
}

// FailJob marks the whole job failed. Per-task records are left as they are:
// siblings that already uploaded stay done, so the status payload expresses
// "job failed, some artifacts available".
func (s *Store) FailJob(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[key]
	if !ok {
		return
	}

	msg := err.Error()
	job.Status = model.JobStatusFailed
	job.Error = &msg
	job.UpdatedAt = time.Now()
}

// Cancel marks the whole job canceled.
func (s *Store) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.jobs[key]; ok {
		job.Status = model.JobStatusCanceled
		job.UpdatedAt = time.Now()
	}
}

// Get returns a snapshot of the job's progress, or ErrNotFound for unknown
// keys. Overall is the mean of the two video derivations.
func (s *Store) Get(key string) (model.JobProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[key]
	if !ok {
		return model.JobProgress{}, ErrNotFound
	}

	snapshot := *job
	snapshot.Tasks = make(map[model.TaskKind]model.TaskProgress, len(job.Tasks))
	for kind, task := range job.Tasks {
		snapshot.Tasks[kind] = task
	}
	snapshot.Overall = (snapshot.Tasks[model.TaskMP4].Percent + snapshot.Tasks[model.TaskWebM].Percent) / 2

	return snapshot, nil
}

// Sweep removes finished records older than the TTL and returns how many
// were dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.ttl)
	removed := 0
	for key, job := range s.jobs {
		if job.Status.Terminal() && job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, key)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps periodically until the context is canceled.
func (s *Store) RunSweeper(done <-chan struct{}) {
	ticker := time.NewTicker(s.ttl / 4)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.Printf("Swept %d cold progress records", n)
			}
		}
	}
}
