package handler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/framelab/media-service/internal/encoder"
	"github.com/framelab/media-service/internal/model"
	"github.com/framelab/media-service/internal/naming"
	"github.com/framelab/media-service/internal/progress"
	"github.com/framelab/media-service/internal/service"
	"github.com/framelab/media-service/pkg/response"
)

const maxUploadSize = 512 * 1024 * 1024 // 512MB

// VideoService admits jobs and answers status lookups
type VideoService interface {
	Enqueue(ctx context.Context, payload model.TranscodeJobPayload) error
	Status(key string) (model.JobProgress, error)
}

// Prober reads source container metadata before the job is accepted
type Prober interface {
	Probe(ctx context.Context, path string) (encoder.Metadata, error)
}

type VideoHandler struct {
	service   VideoService
	prober    Prober
	deriver   *naming.Deriver
	validator *validator.Validate
	workDir   string
}

func NewVideoHandler(svc VideoService, prober Prober, deriver *naming.Deriver, v *validator.Validate, workDir string) *VideoHandler {
	return &VideoHandler{
		service:   svc,
		prober:    prober,
		deriver:   deriver,
		validator: v,
		workDir:   workDir,
	}
}

var validVideoTypes = map[string]bool{
	"video/mp4":                true,
	"video/quicktime":          true,
	"video/webm":               true,
	"video/x-matroska":         true,
	"video/x-msvideo":          true,
	"video/mpeg":               true,
	"application/octet-stream": true,
}

// Upload handles POST /video.
//
// The response carries the full artifact descriptor immediately after the
// upload is accepted and probed; transcoding continues in the background
// and is observable via the status endpoint. The descriptor URLs are
// deterministic, so they are valid as soon as the job finishes.
func (h *VideoHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("video")
	if err != nil {
		return response.Error(c, fiber.StatusInternalServerError,
			"Invalid input format. Use `video` key to pass the file")
	}

	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File size exceeds 512MB limit")
	}

	contentType := file.Header.Get("Content-Type")
	if contentType != "" && !validVideoTypes[contentType] {
		return response.ValidationError(c, fmt.Sprintf("Unsupported content type %s", contentType))
	}

	// An explicit key lets callers re-link artifacts to existing content;
	// absent, a fresh random key is generated.
	key := c.FormValue("key")
	if key != "" {
		if err := h.validator.Var(key, "alphanum,min=8,max=64"); err != nil {
			return response.ValidationError(c, "Key must be 8-64 alphanumeric characters")
		}
	}

	derived := h.deriver.Derive(key)

	sourcePath := filepath.Join(h.workDir, fmt.Sprintf("%s-source%s", derived.Key, filepath.Ext(file.Filename)))
	if err := c.SaveFile(file, sourcePath); err != nil {
		return response.ServiceError(c, "Failed to store uploaded file")
	}

	meta, err := h.prober.Probe(c.Context(), sourcePath)
	if err != nil {
		removeQuiet(sourcePath)
		return response.Error(c, fiber.StatusInternalServerError, "Could not read video metadata")
	}

	err = h.service.Enqueue(c.Context(), model.TranscodeJobPayload{
		Key:        derived.Key,
		SourcePath: sourcePath,
		Duration:   meta.Duration,
	})
	if err != nil {
		removeQuiet(sourcePath)
		if errors.Is(err, service.ErrJobExists) {
			return response.Conflict(c, "A transcode job for this key is already running")
		}
		return response.ServiceError(c, "Failed to queue transcode job")
	}

	return response.Data(c, model.ArtifactDescriptor{
		Filename:   derived.Key,
		Duration:   meta.Duration,
		Src:        derived.URLs.Src,
		WebM:       derived.URLs.WebM,
		ThumbSmall: derived.URLs.ThumbSmall,
		ThumbLarge: derived.URLs.ThumbLarge,
	})
}

// Status handles GET /video/status/:key
func (h *VideoHandler) Status(c *fiber.Ctx) error {
	key := c.Params("key")
	if key == "" {
		return response.ValidationError(c, "No key provided")
	}

	job, err := h.service.Status(key)
	if err != nil {
		if errors.Is(err, progress.ErrNotFound) {
			return response.NotFound(c, fmt.Sprintf("No transcode job for key %s", key))
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Data(c, job)
}

func removeQuiet(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to remove %s: %v", path, err)
	}
}
