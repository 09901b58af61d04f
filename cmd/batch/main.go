// Command batch transcodes every file in a folder through the same
// orchestrator the HTTP server uses, under a bounded concurrency limit,
// and writes the resulting artifact descriptors to <folder>/processed.json.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/framelab/media-service/internal/config"
	"github.com/framelab/media-service/internal/encoder"
	"github.com/framelab/media-service/internal/model"
	"github.com/framelab/media-service/internal/naming"
	"github.com/framelab/media-service/internal/pipeline"
	"github.com/framelab/media-service/internal/progress"
	"github.com/framelab/media-service/internal/storage"
)

const resultFile = "processed.json"

func main() {
	concurrency := flag.Int("concurrency", 5, "maximum concurrent transcode jobs")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: batch [-concurrency n] <folder>")
		os.Exit(1)
	}

	if err := run(flag.Arg(0), *concurrency); err != nil {
		log.Printf("Batch run failed: %v", err)
		os.Exit(1)
	}
}

func run(folder string, concurrency int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := os.MkdirAll(cfg.Transcode.WorkDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	var gateway storage.Gateway
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		gateway, err = storage.NewR2Gateway(&cfg.R2)
	} else {
		log.Println("Info: R2 storage not configured, using local storage")
		gateway, err = storage.NewLocalGateway(filepath.Join(cfg.Transcode.WorkDir, "blobs"), cfg.R2.PublicURL)
	}
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}

	files, err := listSources(folder)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no source files in %s", folder)
	}

	// One bar across all files; each job contributes 100 units as its two
	// video derivations advance.
	bar := progressbar.NewOptions(len(files)*100,
		progressbar.OptionSetDescription(fmt.Sprintf("transcoding %d files", len(files))),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	store := progress.NewStore(0)
	sink := &barSink{store: store, bar: bar, last: make(map[string]float64)}

	enc := encoder.New(cfg.Transcode.FFmpegPath, cfg.Transcode.FFprobePath)
	deriver := naming.NewDeriver(gateway)
	orchestrator := pipeline.New(enc, gateway, sink, cfg.Transcode.WorkDir)

	var (
		mu        sync.Mutex
		processed []model.ArtifactDescriptor
	)

	var g errgroup.Group
	g.SetLimit(concurrency)

	for _, name := range files {
		name := name
		g.Go(func() error {
			key := keyForFile(name)
			derived := deriver.Derive(key)

			// Work on a copy so the orchestrator's source cleanup does not
			// consume the input folder.
			sourcePath, err := stageSource(filepath.Join(folder, name), cfg.Transcode.WorkDir, derived.Key)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}

			desc, err := orchestrator.Run(context.Background(), sourcePath, derived)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}

			mu.Lock()
			processed = append(processed, desc)
			mu.Unlock()
			return nil
		})
	}

	runErr := g.Wait()
	_ = bar.Finish()

	data, err := json.Marshal(processed)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	if err := os.WriteFile(filepath.Join(folder, resultFile), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", resultFile, err)
	}

	if runErr != nil {
		return runErr
	}

	log.Printf("Processed %d files and wrote %s", len(processed), resultFile)
	return nil
}

// listSources returns the folder's files, non-recursively, skipping a
// previous run's result file.
func listSources(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("read folder: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == resultFile {
			continue
		}
		files = append(files, entry.Name())
	}
	return files, nil
}

// keyForFile uses the full filename, extension included, as the content
// key. Files sharing a stem (a.mp4, a.mov) must derive distinct output
// paths or their concurrent jobs would race on the same temp files.
func keyForFile(name string) string {
	return name
}

func stageSource(path, workDir, key string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	staged := filepath.Join(workDir, fmt.Sprintf("%s-source%s", key, filepath.Ext(path)))
	dst, err := os.Create(staged)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(staged)
		return "", err
	}
	return staged, nil
}

// barSink feeds the shared progress store and folds every job's overall
// percent into the global bar.
type barSink struct {
	store *progress.Store
	bar   *progressbar.ProgressBar

	mu   sync.Mutex
	last map[string]float64
}

func (s *barSink) Register(key string) {
	s.store.Register(key)
}

func (s *barSink) Set(key string, kind model.TaskKind, percent float64) {
	s.store.Set(key, kind, percent)
	s.advance(key)
}

func (s *barSink) MarkDone(key string, kind model.TaskKind) {
	s.store.MarkDone(key, kind)
	s.advance(key)
}

func (s *barSink) FailTask(key string, kind model.TaskKind, err error) {
	s.store.FailTask(key, kind, err)
}

func (s *barSink) Complete(key string) {
	s.store.Complete(key)
	s.finish(key)
}

func (s *barSink) FailJob(key string, err error) {
	s.store.FailJob(key, err)
	s.finish(key)
}

func (s *barSink) Cancel(key string) {
	s.store.Cancel(key)
	s.finish(key)
}

func (s *barSink) advance(key string) {
	job, err := s.store.Get(key)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if delta := job.Overall - s.last[key]; delta > 0 {
		s.last[key] = job.Overall
		_ = s.bar.Add(int(delta))
	}
}

// finish tops the job's share of the bar up to 100 so failed jobs do not
// stall the global total.
func (s *barSink) finish(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if delta := 100 - s.last[key]; delta > 0 {
		s.last[key] = 100
		_ = s.bar.Add(int(delta))
	}
}
