package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/cfdi-reporter/internal/cfdi"
	"github.com/dvloznov/cfdi-reporter/internal/logger"
)

// FetchDocuments loads every .xml object under a gs:// prefix as a document.
// A URI naming a single object loads just that object. Documents are named by
// the object's base name and returned in object-name order.
func FetchDocuments(ctx context.Context, svc Service, uri string) ([]cfdi.Document, error) {
	log := logger.FromContext(ctx)

	bucket, prefix, err := ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("FetchDocuments: %w", err)
	}

	names, err := svc.ListObjects(ctx, bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("FetchDocuments: %w", err)
	}

	var objects []string
	for _, name := range names {
		if strings.HasSuffix(name, "/") || !cfdi.IsXMLName(name) {
			continue
		}
		objects = append(objects, name)
	}
	sort.Strings(objects)

	docs := make([]cfdi.Document, 0, len(objects))
	for _, object := range objects {
		data, err := svc.Fetch(ctx, bucket, object)
		if err != nil {
			return nil, fmt.Errorf("FetchDocuments: %w", err)
		}
		docs = append(docs, cfdi.Document{Name: FilenameFromURI("gs://" + bucket + "/" + object), Data: data})
	}

	log.Info().
		Str("bucket", bucket).
		Str("prefix", prefix).
		Int("documents", len(docs)).
		Msg("Fetched documents from GCS")

	return docs, nil
}

// UploadReport writes a rendered report to a gs:// URI. A URI ending in "/"
// is treated as a folder and the file name is appended.
func UploadReport(ctx context.Context, svc Service, uri, filename, contentType string, data []byte) (string, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return "", fmt.Errorf("UploadReport: %w", err)
	}
	if object == "" || strings.HasSuffix(object, "/") {
		object += filename
	}

	if err := svc.Upload(ctx, bucket, object, contentType, data); err != nil {
		return "", fmt.Errorf("UploadReport: %w", err)
	}

	dest := "gs://" + bucket + "/" + object
	log := logger.FromContext(ctx)
	log.Info().Str("uri", dest).Int("bytes", len(data)).Msg("Report uploaded")

	return dest, nil
}
