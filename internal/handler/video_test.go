package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/framelab/media-service/internal/encoder"
	"github.com/framelab/media-service/internal/model"
	"github.com/framelab/media-service/internal/naming"
	"github.com/framelab/media-service/internal/progress"
	"github.com/framelab/media-service/internal/service"
	"github.com/framelab/media-service/pkg/response"
)

type fakeService struct {
	enqueued   []model.TranscodeJobPayload
	enqueueErr error
	jobs       map[string]model.JobProgress
}

func (f *fakeService) Enqueue(ctx context.Context, payload model.TranscodeJobPayload) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.enqueued = append(f.enqueued, payload)
	return nil
}

func (f *fakeService) Status(key string) (model.JobProgress, error) {
	job, ok := f.jobs[key]
	if !ok {
		return model.JobProgress{}, progress.ErrNotFound
	}
	return job, nil
}

type fakeProber struct {
	meta encoder.Metadata
	err  error
}

func (f *fakeProber) Probe(ctx context.Context, path string) (encoder.Metadata, error) {
	return f.meta, f.err
}

type cdnResolver struct{}

func (cdnResolver) PublicURL(filename string) string {
	return "https://cdn.example.com/uploads/" + filename
}

func newTestApp(t *testing.T, svc *fakeService, prober *fakeProber) *fiber.App {
	t.Helper()
	h := NewVideoHandler(svc, prober, naming.NewDeriver(cdnResolver{}), validator.New(), t.TempDir())

	app := fiber.New()
	app.Post("/video", h.Upload)
	app.Get("/video/status/:key", h.Status)
	return app
}

func multipartBody(t *testing.T, field, key string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, "clip.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte("not really a video")); err != nil {
		t.Fatal(err)
	}
	if key != "" {
		if err := writer.WriteField("key", key); err != nil {
			t.Fatal(err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}
	return body, writer.FormDataContentType()
}

func decodeEnvelope(t *testing.T, body io.Reader) response.Envelope {
	t.Helper()
	var env response.Envelope
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		t.Fatal(err)
	}
	return env
}

func TestUploadReturnsDescriptorImmediately(t *testing.T) {
	svc := &fakeService{}
	app := newTestApp(t, svc, &fakeProber{meta: encoder.Metadata{Duration: 10}})

	body, contentType := multipartBody(t, "video", "abc12345")
	req := httptest.NewRequest("POST", "/video", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var env struct {
		Status int                      `json:"status"`
		Data   model.ArtifactDescriptor `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatal(err)
	}

	if env.Data.Filename != "abc12345" {
		t.Errorf("filename = %q, want abc12345", env.Data.Filename)
	}
	if env.Data.Duration != 10 {
		t.Errorf("duration = %v, want 10", env.Data.Duration)
	}
	if env.Data.Src != "https://cdn.example.com/uploads/abc12345.mp4" {
		t.Errorf("src = %q", env.Data.Src)
	}
	if env.Data.WebM != "https://cdn.example.com/uploads/abc12345.webm" {
		t.Errorf("webm = %q", env.Data.WebM)
	}

	// The job was queued, not run inline.
	if len(svc.enqueued) != 1 {
		t.Fatalf("enqueued %d jobs, want 1", len(svc.enqueued))
	}
	if svc.enqueued[0].Key != "abc12345" {
		t.Errorf("enqueued key = %q", svc.enqueued[0].Key)
	}
}

func TestUploadMissingFileField(t *testing.T) {
	app := newTestApp(t, &fakeService{}, &fakeProber{})

	body, contentType := multipartBody(t, "clip", "") // wrong field name
	req := httptest.NewRequest("POST", "/video", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 500 {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}

	env := decodeEnvelope(t, resp.Body)
	if env.Error == "" {
		t.Error("error envelope missing message")
	}
}

func TestUploadGeneratesKeyWhenAbsent(t *testing.T) {
	svc := &fakeService{}
	app := newTestApp(t, svc, &fakeProber{meta: encoder.Metadata{Duration: 3}})

	body, contentType := multipartBody(t, "video", "")
	req := httptest.NewRequest("POST", "/video", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(svc.enqueued) != 1 || len(svc.enqueued[0].Key) < 8 {
		t.Errorf("generated key too short: %+v", svc.enqueued)
	}
}

func TestUploadDuplicateKeyConflict(t *testing.T) {
	svc := &fakeService{enqueueErr: service.ErrJobExists}
	app := newTestApp(t, svc, &fakeProber{meta: encoder.Metadata{Duration: 5}})

	body, contentType := multipartBody(t, "video", "abc12345")
	req := httptest.NewRequest("POST", "/video", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 409 {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}

	env := decodeEnvelope(t, resp.Body)
	if env.Status != 409 || env.Error == "" {
		t.Errorf("envelope = %+v, want 409 with error", env)
	}
}

func TestUploadRejectsBadKey(t *testing.T) {
	app := newTestApp(t, &fakeService{}, &fakeProber{})

	body, contentType := multipartBody(t, "video", "no/slashes")
	req := httptest.NewRequest("POST", "/video", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 400 {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStatusUnknownKey(t *testing.T) {
	app := newTestApp(t, &fakeService{}, &fakeProber{})

	req := httptest.NewRequest("GET", "/video/status/nonexistent-key", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 404 {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}

	env := decodeEnvelope(t, resp.Body)
	if env.Status != 404 || env.Error == "" {
		t.Errorf("envelope = %+v, want 404 with error", env)
	}
}

func TestStatusKnownKey(t *testing.T) {
	svc := &fakeService{jobs: map[string]model.JobProgress{
		"abc123": {
			Key:     "abc123",
			Status:  model.JobStatusRunning,
			Overall: 42,
		},
	}}
	app := newTestApp(t, svc, &fakeProber{})

	req := httptest.NewRequest("GET", "/video/status/abc123", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var env struct {
		Status int               `json:"status"`
		Data   model.JobProgress `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatal(err)
	}
	if env.Data.Overall != 42 || env.Data.Status != model.JobStatusRunning {
		t.Errorf("data = %+v", env.Data)
	}
}
