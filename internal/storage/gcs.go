package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSService is the Service backed by Google Cloud Storage.
// It assumes Application Default Credentials are configured (gcloud auth application-default login).
type GCSService struct {
	client *gcs.Client
}

// NewGCSService opens a storage client. Close it when done.
func NewGCSService(ctx context.Context) (*GCSService, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSService: create storage client: %w", err)
	}
	return &GCSService{client: client}, nil
}

// Close releases the underlying client.
func (s *GCSService) Close() error {
	return s.client.Close()
}

// ListObjects implements Service.
func (s *GCSService) ListObjects(ctx context.Context, bucket, prefix string) ([]string, error) {
	it := s.client.Bucket(bucket).Objects(ctx, &gcs.Query{Prefix: prefix})

	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListObjects: iterate gs://%s/%s: %w", bucket, prefix, err)
		}
		names = append(names, attrs.Name)
	}

	return names, nil
}

// Fetch implements Service.
func (s *GCSService) Fetch(ctx context.Context, bucket, object string) ([]byte, error) {
	rc, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}

	return data, nil
}

// Upload implements Service.
func (s *GCSService) Upload(ctx context.Context, bucket, object, contentType string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("Upload: write gs://%s/%s: %w", bucket, object, err)
	}

	// Close to finalize the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("Upload: finalize gs://%s/%s: %w", bucket, object, err)
	}

	return nil
}

var _ Service = (*GCSService)(nil)
