package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/framelab/media-service/internal/model"
	"github.com/framelab/media-service/internal/naming"
	"github.com/framelab/media-service/internal/pipeline"
	"github.com/framelab/media-service/internal/websocket"
)

// TranscodeWorker processes queued transcode jobs
type TranscodeWorker struct {
	orch    *pipeline.Orchestrator
	deriver *naming.Deriver
	hub     *websocket.Hub
}

func NewTranscodeWorker(orch *pipeline.Orchestrator, deriver *naming.Deriver, hub *websocket.Hub) *TranscodeWorker {
	return &TranscodeWorker{
		orch:    orch,
		deriver: deriver,
		hub:     hub,
	}
}

// ProcessTask runs one transcode job to completion. The task context is
// honored all the way down to the encoder subprocesses, so a canceled task
// kills in-flight encoders and removes partial outputs.
func (w *TranscodeWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.TranscodeJobPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal transcode payload: %w", err)
	}

	log.Printf("Starting transcode job %s", payload.Key)

	derived := w.deriver.Derive(payload.Key)

	result, err := w.orch.Run(ctx, payload.SourcePath, derived)
	if err != nil {
		w.hub.BroadcastError(payload.Key, "TRANSCODE_FAILED", err.Error())
		return err
	}

	w.hub.BroadcastComplete(payload.Key, result)
	log.Printf("Transcode job %s completed", payload.Key)
	return nil
}
