package progress

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/framelab/media-service/internal/model"
)

func TestGetUnknownKey(t *testing.T) {
	s := NewStore(0)

	_, err := s.Get("nonexistent-key")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestRegisterInitializesAllTasks(t *testing.T) {
	s := NewStore(0)
	s.Register("abc123")

	job, err := s.Get("abc123")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != model.JobStatusQueued {
		t.Errorf("status = %s, want queued", job.Status)
	}
	if len(job.Tasks) != 4 {
		t.Fatalf("registered %d tasks, want 4", len(job.Tasks))
	}
	for _, kind := range model.TaskKinds {
		task := job.Tasks[kind]
		if task.Percent != 0 || task.Done || task.Error != nil {
			t.Errorf("task %s not fresh: %+v", kind, task)
		}
	}
}

func TestSetClampsAndStaysMonotonic(t *testing.T) {
	s := NewStore(0)
	s.Register("abc123")

	readings := []float64{-5, 12.5, 140, 60, 99}
	for _, p := range readings {
		s.Set("abc123", model.TaskMP4, p)
	}

	job, _ := s.Get("abc123")
	if got := job.Tasks[model.TaskMP4].Percent; got != 100 {
		t.Errorf("percent after out-of-range reading = %v, want 100 (clamped)", got)
	}

	// A later lower reading must never regress a higher one.
	s.Set("abc123", model.TaskWebM, 80)
	s.Set("abc123", model.TaskWebM, 30)
	job, _ = s.Get("abc123")
	if got := job.Tasks[model.TaskWebM].Percent; got != 80 {
		t.Errorf("percent regressed to %v, want 80", got)
	}

	if job.Status != model.JobStatusRunning {
		t.Errorf("status = %s, want running after first write", job.Status)
	}
}

func TestOverallAveragesVideoTasks(t *testing.T) {
	s := NewStore(0)
	s.Register("abc123")

	s.Set("abc123", model.TaskMP4, 40)
	s.Set("abc123", model.TaskWebM, 20)
	s.Set("abc123", model.TaskThumbSmall, 100) // thumbs not surfaced

	job, _ := s.Get("abc123")
	if job.Overall != 30 {
		t.Errorf("overall = %v, want 30", job.Overall)
	}
}

func TestMarkDoneAndFailTask(t *testing.T) {
	s := NewStore(0)
	s.Register("abc123")

	s.MarkDone("abc123", model.TaskMP4)
	s.FailTask("abc123", model.TaskWebM, errors.New("encoder exited with status 1"))

	job, _ := s.Get("abc123")
	mp4 := job.Tasks[model.TaskMP4]
	if !mp4.Done || mp4.Percent != 100 {
		t.Errorf("mp4 task = %+v, want done at 100", mp4)
	}
	webm := job.Tasks[model.TaskWebM]
	if webm.Error == nil || *webm.Error != "encoder exited with status 1" {
		t.Errorf("webm task error = %v, want populated", webm.Error)
	}

	// Progress after done is ignored.
	s.Set("abc123", model.TaskMP4, 10)
	job, _ = s.Get("abc123")
	if got := job.Tasks[model.TaskMP4].Percent; got != 100 {
		t.Errorf("done task percent moved to %v", got)
	}
}

func TestFailJobKeepsSiblingTasks(t *testing.T) {
	s := NewStore(0)
	s.Register("abc123")
	s.MarkDone("abc123", model.TaskMP4)

	s.FailJob("abc123", errors.New("webm derivation failed"))

	job, _ := s.Get("abc123")
	if job.Status != model.JobStatusFailed {
		t.Errorf("status = %s, want failed", job.Status)
	}
	if job.Error == nil {
		t.Error("job error not populated")
	}
	if !job.Tasks[model.TaskMP4].Done {
		t.Error("succeeded sibling task lost its done flag")
	}
}

func TestActive(t *testing.T) {
	s := NewStore(0)

	if s.Active("abc123") {
		t.Error("unregistered key reported active")
	}

	s.Register("abc123")
	if !s.Active("abc123") {
		t.Error("queued job not reported active")
	}

	s.Complete("abc123")
	if s.Active("abc123") {
		t.Error("succeeded job still reported active")
	}
}

func TestSweepDropsOnlyColdFinishedJobs(t *testing.T) {
	s := NewStore(time.Nanosecond)
	s.Register("done-job")
	s.Complete("done-job")
	s.Register("live-job")
	s.Set("live-job", model.TaskMP4, 10)

	time.Sleep(time.Millisecond)

	if n := s.Sweep(); n != 1 {
		t.Fatalf("swept %d records, want 1", n)
	}
	if _, err := s.Get("done-job"); !errors.Is(err, ErrNotFound) {
		t.Error("finished job survived sweep")
	}
	if _, err := s.Get("live-job"); err != nil {
		t.Error("running job was swept")
	}
}

func TestConcurrentWriters(t *testing.T) {
	s := NewStore(0)
	s.Register("abc123")

	var wg sync.WaitGroup
	for _, kind := range model.TaskKinds {
		kind := kind
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := 0; p <= 100; p++ {
				s.Set("abc123", kind, float64(p))
			}
			s.MarkDone("abc123", kind)
		}()
	}
	wg.Wait()

	job, _ := s.Get("abc123")
	for _, kind := range model.TaskKinds {
		if !job.Tasks[kind].Done {
			t.Errorf("task %s not done after concurrent writes", kind)
		}
	}
	if job.Overall != 100 {
		t.Errorf("overall = %v, want 100", job.Overall)
	}
}
