package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// LocalGateway implements Gateway on the local filesystem. It stands in for
// R2 when storage is not configured, so the pipeline stays runnable in
// development and in the batch CLI without credentials.
type LocalGateway struct {
	dir       string
	publicURL string
}

func NewLocalGateway(dir, publicURL string) (*LocalGateway, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create local storage dir: %w", err)
	}
	return &LocalGateway{dir: dir, publicURL: publicURL}, nil
}

func (g *LocalGateway) UploadFile(ctx context.Context, filename, localPath, contentType string) (string, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(g.dir, filename))
	if err != nil {
		return "", fmt.Errorf("create %s: %w", filename, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("copy %s: %w", filename, err)
	}

	return g.PublicURL(filename), nil
}

func (g *LocalGateway) Delete(ctx context.Context, filename string) error {
	return os.Remove(filepath.Join(g.dir, filename))
}

func (g *LocalGateway) SignedURL(ctx context.Context, filename string, expiry time.Duration) (string, error) {
	return g.PublicURL(filename), nil
}

func (g *LocalGateway) PublicURL(filename string) string {
	if g.publicURL != "" {
		return fmt.Sprintf("%s/%s", g.publicURL, filename)
	}
	return fmt.Sprintf("file://%s", filepath.Join(g.dir, filename))
}
