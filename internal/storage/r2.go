package storage

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/framelab/media-service/internal/config"
)

// Gateway is the blob storage boundary: finished artifacts are uploaded
// under their derived names and addressed by deterministic public URLs.
type Gateway interface {
	UploadFile(ctx context.Context, filename, localPath, contentType string) (string, error)
	Delete(ctx context.Context, filename string) error
	SignedURL(ctx context.Context, filename string, expiry time.Duration) (string, error)
	PublicURL(filename string) string
}

// R2Gateway implements Gateway against Cloudflare R2.
type R2Gateway struct {
	s3Client  *s3.Client
	presigner *s3.PresignClient
	bucket    string
	container string
	publicURL string
}

// NewR2Gateway creates a gateway for the configured R2 bucket.
func NewR2Gateway(cfg *config.R2Config) (*R2Gateway, error) {
	if cfg.AccountID == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("R2 configuration incomplete")
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)

	r2Resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: endpoint,
		}, nil
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithEndpointResolverWithOptions(r2Resolver),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg)

	return &R2Gateway{
		s3Client:  s3Client,
		presigner: s3.NewPresignClient(s3Client),
		bucket:    cfg.BucketName,
		container: cfg.Container,
		publicURL: cfg.PublicURL,
	}, nil
}

// UploadFile uploads a local file under its derived blob name and returns
// the public URL. The local file is left in place; its removal is the
// derivation task's responsibility.
func (g *R2Gateway) UploadFile(ctx context.Context, filename, localPath, contentType string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer file.Close()

	input := &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(g.blobName(filename)),
		Body:        file,
		ContentType: aws.String(contentType),
	}

	if _, err := g.s3Client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", filename, err)
	}

	return g.PublicURL(filename), nil
}

// Delete removes a blob.
func (g *R2Gateway) Delete(ctx context.Context, filename string) error {
	input := &s3.DeleteObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(g.blobName(filename)),
	}

	if _, err := g.s3Client.DeleteObject(ctx, input); err != nil {
		return fmt.Errorf("failed to delete %s: %w", filename, err)
	}

	return nil
}

// SignedURL generates a presigned URL for temporary access.
func (g *R2Gateway) SignedURL(ctx context.Context, filename string, expiry time.Duration) (string, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(g.blobName(filename)),
	}

	presignedReq, err := g.presigner.PresignGetObject(ctx, input, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return presignedReq.URL, nil
}

// PublicURL returns the deterministic CDN URL for a derived filename:
// {CDN_BASE}/{container}/{filename}.
func (g *R2Gateway) PublicURL(filename string) string {
	if g.publicURL != "" {
		return fmt.Sprintf("%s/%s", g.publicURL, g.blobName(filename))
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com/%s", g.bucket, g.blobName(filename))
}

func (g *R2Gateway) blobName(filename string) string {
	if g.container == "" {
		return filename
	}
	return fmt.Sprintf("%s/%s", g.container, filename)
}
