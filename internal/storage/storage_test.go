package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockService is an in-memory Service keyed by "bucket/object".
type mockService struct {
	objects  map[string][]byte
	listErr  error
	uploaded map[string]string // object key -> content type
}

func newMockService(objects map[string][]byte) *mockService {
	return &mockService{objects: objects, uploaded: map[string]string{}}
}

func (m *mockService) ListObjects(ctx context.Context, bucket, prefix string) ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var names []string
	for key := range m.objects {
		b, object, _ := cutKey(key)
		if b == bucket && len(object) >= len(prefix) && object[:len(prefix)] == prefix {
			names = append(names, object)
		}
	}
	return names, nil
}

func (m *mockService) Fetch(ctx context.Context, bucket, object string) ([]byte, error) {
	data, ok := m.objects[bucket+"/"+object]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (m *mockService) Upload(ctx context.Context, bucket, object, contentType string, data []byte) error {
	m.objects[bucket+"/"+object] = data
	m.uploaded[bucket+"/"+object] = contentType
	return nil
}

func cutKey(key string) (string, string, bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			return key[:i], key[i+1:], true
		}
	}
	return key, "", false
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{uri: "gs://bucket/path/to/file.xml", wantBucket: "bucket", wantObject: "path/to/file.xml"},
		{uri: "gs://bucket/", wantBucket: "bucket", wantObject: ""},
		{uri: "gs://bucket", wantBucket: "bucket", wantObject: ""},
		{uri: "s3://bucket/file.xml", wantErr: true},
		{uri: "gs:///file.xml", wantErr: true},
		{uri: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantObject, object)
		})
	}
}

func TestFilenameFromURI(t *testing.T) {
	assert.Equal(t, "file.xml", FilenameFromURI("gs://bucket/folder/file.xml"))
	assert.Equal(t, "file.xml", FilenameFromURI("gs://bucket/file.xml"))
	assert.Equal(t, "bucket", FilenameFromURI("gs://bucket"))
}

func TestFetchDocuments(t *testing.T) {
	svc := newMockService(map[string][]byte{
		"facturas/2024/b.xml":     []byte("<b/>"),
		"facturas/2024/a.XML":     []byte("<a/>"),
		"facturas/2024/notes.txt": []byte("skip"),
		"facturas/2024/sub/":      nil,
		"facturas/2023/old.xml":   []byte("<old/>"),
		"otro/2024/elsewhere.xml": []byte("<x/>"),
	})

	docs, err := FetchDocuments(context.Background(), svc, "gs://facturas/2024/")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.XML", docs[0].Name)
	assert.Equal(t, []byte("<a/>"), docs[0].Data)
	assert.Equal(t, "b.xml", docs[1].Name)
}

func TestFetchDocuments_Errors(t *testing.T) {
	_, err := FetchDocuments(context.Background(), newMockService(nil), "not-a-uri")
	assert.Error(t, err)

	svc := newMockService(nil)
	svc.listErr = errors.New("permission denied")
	_, err = FetchDocuments(context.Background(), svc, "gs://b/")
	assert.ErrorContains(t, err, "permission denied")
}

func TestUploadReport(t *testing.T) {
	svc := newMockService(map[string][]byte{})

	dest, err := UploadReport(context.Background(), svc, "gs://reports/2024/", "reporte_facturas.pdf", "application/pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "gs://reports/2024/reporte_facturas.pdf", dest)
	assert.Equal(t, "application/pdf", svc.uploaded["reports/2024/reporte_facturas.pdf"])

	dest, err = UploadReport(context.Background(), svc, "gs://reports/custom.pdf", "reporte_facturas.pdf", "application/pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "gs://reports/custom.pdf", dest)
}
