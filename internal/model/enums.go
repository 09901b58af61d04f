package model

// TaskKind identifies one derived artifact of a transcode job.
type TaskKind string

const (
	TaskWebM       TaskKind = "webm"
	TaskMP4        TaskKind = "mp4"
	TaskThumbSmall TaskKind = "thumbSmall"
	TaskThumbLarge TaskKind = "thumbLarge"
)

// TaskKinds lists every derivation a job fans out to, in a stable order.
var TaskKinds = []TaskKind{TaskWebM, TaskMP4, TaskThumbSmall, TaskThumbLarge}

// ContentType returns the MIME type the artifact is stored under.
func (k TaskKind) ContentType() string {
	switch k {
	case TaskWebM:
		return "video/webm"
	case TaskMP4:
		return "video/mp4"
	case TaskThumbSmall, TaskThumbLarge:
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

// Job status
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// Terminal reports whether the status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed || s == JobStatusCanceled
}
