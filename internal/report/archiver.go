// Package report archives sweep summaries to S3-compatible object storage.
// When storage is not configured (empty bucket), the NoopArchiver is used and
// summaries only reach the logs and the HTTP response.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/oklog/ulid/v2"

	"github.com/hyperengineering/prospector/internal/config"
)

// ErrNotConfigured is returned when report storage is not configured.
var ErrNotConfigured = errors.New("report storage not configured")

// Sweep kinds used in object keys.
const (
	KindRescore    = "rescore"
	KindDailyFocus = "daily-focus"
)

// Archiver stores sweep summaries and hands out download links for them.
type Archiver interface {
	// Archive stores summary as JSON and returns its object key.
	Archive(ctx context.Context, kind string, startedAt time.Time, summary any) (string, error)

	// PresignedURL returns a pre-signed URL for downloading an archived report.
	// Returns ErrNotConfigured when storage is not configured.
	PresignedURL(ctx context.Context, key string) (url string, expiry time.Time, err error)
}

// s3Client defines the minimal minio.Client operations used by S3Archiver.
type s3Client interface {
	PutObject(ctx context.Context, bucket, objectName string, r io.Reader, size int64, contentType string) error
	PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error)
}

// minioClientWrapper adapts *minio.Client to s3Client.
type minioClientWrapper struct {
	client *minio.Client
}

func (w *minioClientWrapper) PutObject(ctx context.Context, bucket, objectName string, r io.Reader, size int64, contentType string) error {
	_, err := w.client.PutObject(ctx, bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (w *minioClientWrapper) PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error) {
	return w.client.PresignedGetObject(ctx, bucket, objectName, expiry, nil)
}

// S3Archiver writes reports to an S3-compatible bucket.
type S3Archiver struct {
	client    s3Client
	bucket    string
	prefix    string
	urlExpiry time.Duration
}

// Archive uploads summary under {prefix}/{kind}/{date}/{ulid}.json.
func (a *S3Archiver) Archive(ctx context.Context, kind string, startedAt time.Time, summary any) (string, error) {
	body, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	key := objectKey(a.prefix, kind, startedAt)
	if err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(body), int64(len(body)), "application/json"); err != nil {
		return "", fmt.Errorf("upload report to S3: %w", err)
	}
	return key, nil
}

// PresignedURL returns a pre-signed GET URL for the report at key.
func (a *S3Archiver) PresignedURL(ctx context.Context, key string) (string, time.Time, error) {
	presigned, err := a.client.PresignedGetObject(ctx, a.bucket, key, a.urlExpiry)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate pre-signed URL: %w", err)
	}
	expiry := time.Now().Add(a.urlExpiry)
	return presigned.String(), expiry, nil
}

// NoopArchiver is used when report storage is not configured.
type NoopArchiver struct{}

// Archive is a no-op when storage is not configured.
func (NoopArchiver) Archive(context.Context, string, time.Time, any) (string, error) {
	return "", nil
}

// PresignedURL returns ErrNotConfigured.
func (NoopArchiver) PresignedURL(context.Context, string) (string, time.Time, error) {
	return "", time.Time{}, ErrNotConfigured
}

// NewArchiver creates the appropriate Archiver based on configuration.
// Returns NoopArchiver when bucket is empty, S3Archiver otherwise.
func NewArchiver(cfg config.ReportsConfig) (Archiver, error) {
	if cfg.Bucket == "" {
		return NoopArchiver{}, nil
	}

	useSSL := true
	if cfg.UseSSL != nil {
		useSSL = *cfg.UseSSL
	}
	endpoint := stripScheme(cfg.Endpoint, &useSSL)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	return &S3Archiver{
		client:    &minioClientWrapper{client: client},
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		urlExpiry: time.Duration(cfg.URLExpiry),
	}, nil
}

// stripScheme removes an http(s):// prefix from endpoint, which minio rejects,
// and lets an explicit scheme decide TLS.
func stripScheme(endpoint string, useSSL *bool) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		*useSSL = true
		return strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		*useSSL = false
		return strings.TrimPrefix(endpoint, "http://")
	}
	return endpoint
}

// objectKey returns the key for a report.
// Convention: {prefix}/{kind}/{YYYY-MM-DD}/{ulid}.json
func objectKey(prefix, kind string, startedAt time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(startedAt), ulid.DefaultEntropy())
	return path.Join(prefix, kind, startedAt.UTC().Format("2006-01-02"), id.String()+".json")
}
