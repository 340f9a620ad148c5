package archive

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPutter struct {
	mock.Mock
	bodies map[string]string
}

func (m *MockPutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, aws.ToString(params.Key))
	if body, err := io.ReadAll(params.Body); err == nil {
		if m.bodies == nil {
			m.bodies = map[string]string{}
		}
		m.bodies[aws.ToString(params.Key)] = string(body)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func TestKey(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "", want: "run-1/parts.xlsx"},
		{prefix: "catalog", want: "catalog/run-1/parts.xlsx"},
		{prefix: "/catalog/snapshots/", want: "catalog/snapshots/run-1/parts.xlsx"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			a := NewS3ArchiverWithClient(nil, Config{Prefix: tt.prefix}, nil)
			assert.Equal(t, tt.want, a.Key("run-1", "/tmp/out/parts.xlsx"))
		})
	}
}

func TestUpload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	report := filepath.Join(dir, "parts.xlsx")
	manifest := filepath.Join(dir, "snapshot.json")
	require.NoError(t, os.WriteFile(report, []byte("xlsx"), 0644))
	require.NoError(t, os.WriteFile(manifest, []byte(`{"run_id":"run-1"}`), 0644))

	putter := new(MockPutter)
	putter.On("PutObject", ctx, "catalog/run-1/parts.xlsx").Return(&s3.PutObjectOutput{}, nil)
	putter.On("PutObject", ctx, "catalog/run-1/snapshot.json").Return(&s3.PutObjectOutput{}, nil)

	a := NewS3ArchiverWithClient(putter, Config{Bucket: "parts", Prefix: "catalog"}, nil)
	uris, err := a.Upload(ctx, "run-1", report, manifest)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"s3://parts/catalog/run-1/parts.xlsx",
		"s3://parts/catalog/run-1/snapshot.json",
	}, uris)
	assert.Equal(t, `{"run_id":"run-1"}`, putter.bodies["catalog/run-1/snapshot.json"])
	putter.AssertExpectations(t)
}

func TestUploadStopsOnError(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	first := filepath.Join(dir, "parts.xlsx")
	second := filepath.Join(dir, "snapshot.json")
	require.NoError(t, os.WriteFile(first, []byte("xlsx"), 0644))
	require.NoError(t, os.WriteFile(second, []byte("{}"), 0644))

	putter := new(MockPutter)
	putter.On("PutObject", ctx, "run-1/parts.xlsx").Return(nil, errors.New("access denied"))

	a := NewS3ArchiverWithClient(putter, Config{Bucket: "parts"}, nil)
	uris, err := a.Upload(ctx, "run-1", first, second)
	require.Error(t, err)
	assert.Empty(t, uris)
	putter.AssertNumberOfCalls(t, "PutObject", 1)
}

func TestUploadMissingFile(t *testing.T) {
	a := NewS3ArchiverWithClient(new(MockPutter), Config{Bucket: "parts"}, nil)
	_, err := a.Upload(context.Background(), "run-1", filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.Error(t, err)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, xlsxContentType, contentType("a.xlsx"))
	assert.Equal(t, "application/json", contentType("a.json"))
	assert.Equal(t, "application/octet-stream", contentType("a.unknownext"))
}
