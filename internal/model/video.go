package model

import "time"

// TaskProgress is the processing state of a single derived artifact.
// Percent is kept monotonic and clamped to [0,100] by the progress store,
// not trusted from the encoder.
type TaskProgress struct {
	Kind    TaskKind `json:"kind"`
	Percent float64  `json:"percent"`
	Done    bool     `json:"done"`
	Error   *string  `json:"error,omitempty"`
}

// JobProgress aggregates the per-task progress of one transcode job.
// Overall reflects only the two video derivations; thumbnails finish in
// seconds and are not surfaced to the polling client.
type JobProgress struct {
	Key       string                    `json:"key"`
	Status    JobStatus                 `json:"status"`
	Overall   float64                   `json:"overall"`
	Tasks     map[TaskKind]TaskProgress `json:"tasks"`
	Error     *string                   `json:"error,omitempty"`
	CreatedAt time.Time                 `json:"createdAt"`
	UpdatedAt time.Time                 `json:"updatedAt"`
}

// ArtifactDescriptor is the final result of a completed job. It is what the
// upload endpoint returns and what the content database persists. Src points
// at the broadly compatible mp4 fallback; WebM at the web-optimized encoding.
type ArtifactDescriptor struct {
	Filename   string  `json:"filename"`
	Duration   float64 `json:"duration"`
	Src        string  `json:"src"`
	WebM       string  `json:"webm"`
	ThumbSmall string  `json:"thumbSmall"`
	ThumbLarge string  `json:"thumbLarge"`
}

// TranscodeJobPayload is the queued task payload handed to the worker.
type TranscodeJobPayload struct {
	Key        string  `json:"key"`
	SourcePath string  `json:"sourcePath"`
	Duration   float64 `json:"duration"`
}
