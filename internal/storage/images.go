// Package storage uploads product images to Google Cloud Storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
)

var ErrDisabled = errors.New("image storage is not configured")

type ImageStore interface {
	// Upload writes data under objectPath and returns its public URL.
	Upload(ctx context.Context, objectPath, contentType string, data []byte) (string, error)
}

// GCSImageStore relies on the bucket granting public read through IAM, so
// uploaded objects need no per-object ACL.
type GCSImageStore struct {
	client        *storage.Client
	bucket        string
	publicBaseURL string
}

func NewGCSImageStore(client *storage.Client, bucket, publicBaseURL string) *GCSImageStore {
	if publicBaseURL == "" {
		publicBaseURL = "https://storage.googleapis.com"
	}
	return &GCSImageStore{
		client:        client,
		bucket:        strings.TrimSpace(bucket),
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (s *GCSImageStore) Upload(ctx context.Context, objectPath, contentType string, data []byte) (string, error) {
	if s == nil || s.client == nil || s.bucket == "" {
		return "", ErrDisabled
	}

	obj := strings.TrimLeft(objectPath, "/")
	if obj == "" {
		return "", errors.New("object path is empty")
	}

	w := s.client.Bucket(s.bucket).Object(obj).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=3600"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write %s: %w", obj, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize %s: %w", obj, err)
	}

	return PublicURL(s.publicBaseURL, s.bucket, obj), nil
}

// PublicURL escapes each path segment of obj.
func PublicURL(baseURL, bucket, obj string) string {
	parts := strings.Split(obj, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(baseURL, "/"), bucket, strings.Join(parts, "/"))
}

// Disabled rejects every upload.
type Disabled struct{}

func (Disabled) Upload(context.Context, string, string, []byte) (string, error) {
	return "", ErrDisabled
}
