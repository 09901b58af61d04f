// Package pipeline orchestrates one transcode job: a synchronous metadata
// probe, then four concurrent derivation tasks (webm, mp4, two thumbnails),
// each encoding, uploading and releasing its own temp file, with progress
// merged into the shared store under the job's content key.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/framelab/media-service/internal/encoder"
	"github.com/framelab/media-service/internal/model"
	"github.com/framelab/media-service/internal/naming"
)

// Encoder probes sources and runs derivation subprocesses.
type Encoder interface {
	Probe(ctx context.Context, path string) (encoder.Metadata, error)
	Encode(ctx context.Context, req encoder.Request) error
}

// Uploader persists a finished artifact under its derived name.
type Uploader interface {
	UploadFile(ctx context.Context, filename, localPath, contentType string) (string, error)
}

// ProgressSink receives per-task progress. Each task writes only its own
// (key, kind) slot, so the sink's own write-consistency is the only
// synchronization a job needs.
type ProgressSink interface {
	Register(key string)
	Set(key string, kind model.TaskKind, percent float64)
	MarkDone(key string, kind model.TaskKind)
	FailTask(key string, kind model.TaskKind, err error)
	Complete(key string)
	FailJob(key string, err error)
	Cancel(key string)
}

// Orchestrator runs transcode jobs.
type Orchestrator struct {
	enc      Encoder
	uploader Uploader
	progress ProgressSink
	workDir  string
}

func New(enc Encoder, uploader Uploader, progress ProgressSink, workDir string) *Orchestrator {
	return &Orchestrator{
		enc:      enc,
		uploader: uploader,
		progress: progress,
		workDir:  workDir,
	}
}

// Run executes the full job for an already-saved source file. It returns
// only after all four derivation tasks have settled and the source file has
// been removed.
//
// A failing task does not cancel its siblings: artifacts they already
// uploaded stay uploaded, and the job is reported failed as a whole. The
// returned error is the first task failure.
func (o *Orchestrator) Run(ctx context.Context, sourcePath string, derived naming.Derived) (model.ArtifactDescriptor, error) {
	key := derived.Key

	// Register before the probe so a probe failure lands on a live record.
	o.progress.Register(key)

	meta, err := o.enc.Probe(ctx, sourcePath)
	if err != nil {
		// No tasks have started; only the source exists.
		removeQuiet(sourcePath)
		probeErr := fmt.Errorf("probe source: %w", err)
		o.progress.FailJob(key, probeErr)
		return model.ArtifactDescriptor{}, probeErr
	}

	// Plain group, no shared cancellation: the four tasks are independent
	// and all must settle before the source can be reclaimed.
	var g errgroup.Group
	for _, kind := range model.TaskKinds {
		kind := kind
		g.Go(func() error {
			return o.runTask(ctx, sourcePath, derived, kind, meta.Duration)
		})
	}

	taskErr := g.Wait()

	// The uploaded artifacts are the durable copies; the source never is.
	removeQuiet(sourcePath)

	if taskErr != nil {
		if ctx.Err() != nil {
			o.progress.Cancel(key)
			return model.ArtifactDescriptor{}, ctx.Err()
		}
		o.progress.FailJob(key, taskErr)
		return model.ArtifactDescriptor{}, taskErr
	}

	o.progress.Complete(key)

	return model.ArtifactDescriptor{
		Filename:   key,
		Duration:   meta.Duration,
		Src:        derived.URLs.Src,
		WebM:       derived.URLs.WebM,
		ThumbSmall: derived.URLs.ThumbSmall,
		ThumbLarge: derived.URLs.ThumbLarge,
	}, nil
}

// runTask performs one derivation: encode, upload, release the local output.
// The output file is removed on every path, including encode and upload
// failures, and the task always terminates its progress slot with either
// done or an error.
func (o *Orchestrator) runTask(ctx context.Context, sourcePath string, derived naming.Derived, kind model.TaskKind, duration float64) error {
	filename := derived.Files.Filename(kind)
	outputPath := filepath.Join(o.workDir, filename)
	defer removeQuiet(outputPath)

	err := o.enc.Encode(ctx, encoder.Request{
		Source:   sourcePath,
		Output:   outputPath,
		Kind:     kind,
		Duration: duration,
		OnProgress: func(percent float64) {
			o.progress.Set(derived.Key, kind, percent)
		},
	})
	if err != nil {
		encodeErr := fmt.Errorf("encode %s: %w", kind, err)
		o.progress.FailTask(derived.Key, kind, encodeErr)
		return encodeErr
	}

	if _, err := o.uploader.UploadFile(ctx, filename, outputPath, kind.ContentType()); err != nil {
		uploadErr := fmt.Errorf("upload %s: %w", filename, err)
		o.progress.FailTask(derived.Key, kind, uploadErr)
		return uploadErr
	}

	o.progress.MarkDone(derived.Key, kind)
	log.Printf("Completed %s derivation for %s", kind, derived.Key)
	return nil
}

func removeQuiet(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to remove %s: %v", path, err)
	}
}
