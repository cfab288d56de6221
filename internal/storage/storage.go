// Package storage reads CFDI documents from and writes reports to Google
// Cloud Storage.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Service provides the cloud storage operations the reporter needs.
// This interface enables mocking and testing of storage functionality.
type Service interface {
	// ListObjects returns the names of the objects under prefix, in bucket order.
	ListObjects(ctx context.Context, bucket, prefix string) ([]string, error)

	// Fetch downloads the bytes of one object.
	Fetch(ctx context.Context, bucket, object string) ([]byte, error)

	// Upload writes data to bucket/object with the given content type.
	Upload(ctx context.Context, bucket, object, contentType string, data []byte) error
}

// ParseURI splits "gs://bucket/path/to/object" into bucket and object. The
// object part may be empty ("gs://bucket" or "gs://bucket/").
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	trimmed := strings.TrimPrefix(uri, "gs://")
	bucket, object, _ = strings.Cut(trimmed, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no bucket): %s", uri)
	}

	return bucket, object, nil
}

// FilenameFromURI extracts the filename from a GCS URI.
// e.g., "gs://bucket/folder/file.xml" → "file.xml"
func FilenameFromURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")

	_, object, found := strings.Cut(trimmed, "/")
	if !found || object == "" {
		return trimmed
	}

	return path.Base(object)
}
