package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/framelab/media-service/internal/model"
	"github.com/framelab/media-service/internal/progress"
)

const TaskTypeTranscode = "transcode:process"

// ErrJobExists is returned when a job is enqueued under a key that already
// has a live, unfinished job. Two jobs sharing a key would race on the same
// derived filenames.
var ErrJobExists = errors.New("a transcode job for this key is already running")

// TranscodeService admits transcode jobs into the bounded worker queue and
// answers status lookups.
type TranscodeService struct {
	asynqClient *asynq.Client
	progress    *progress.Store
}

func NewTranscodeService(asynqClient *asynq.Client, store *progress.Store) *TranscodeService {
	return &TranscodeService{
		asynqClient: asynqClient,
		progress:    store,
	}
}

// Enqueue registers the job's progress record and hands the payload to the
// worker queue. The progress entry exists before this returns, so a client
// polling immediately after upload sees a queued job rather than a 404.
func (s *TranscodeService) Enqueue(ctx context.Context, payload model.TranscodeJobPayload) error {
	if s.progress.Active(payload.Key) {
		return ErrJobExists
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	s.progress.Register(payload.Key)

	task := asynq.NewTask(TaskTypeTranscode, data)
	_, err = s.asynqClient.EnqueueContext(ctx, task,
		asynq.Queue("transcode"),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		s.progress.FailJob(payload.Key, err)
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	return nil
}

// Status returns the job's current progress; progress.ErrNotFound for
// unknown keys.
func (s *TranscodeService) Status(key string) (model.JobProgress, error) {
	return s.progress.Get(key)
}
