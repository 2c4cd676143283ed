package s3blob

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	objects map[string][]byte
	puts    int
}

func (f *fakeStore) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	if contentType != "application/json" {
		return errors.New("unexpected content type " + contentType)
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.objects[path] = raw
	f.puts++
	return nil
}

func (f *fakeStore) Exists(_ context.Context, path string) (bool, error) {
	_, ok := f.objects[path]
	return ok, nil
}

func TestArchiveBuild(t *testing.T) {
	store := &fakeStore{objects: map[string][]byte{}}
	now := time.Date(2026, 10, 1, 23, 0, 0, 0, time.FixedZone("x", -3*3600))
	a := NewBuildArchiver(store, "builds", func() time.Time { return now })

	snapshot := map[string]any{"kind": "register", "digest": "D1"}
	require.NoError(t, a.ArchiveBuild(context.Background(), "register", "D1", snapshot))
	require.NoError(t, a.ArchiveBuild(context.Background(), "register", "D1", snapshot))
	require.Equal(t, 1, store.puts)

	raw, ok := store.objects["builds/register/2026/10/02/D1.json"]
	require.True(t, ok)
	var back map[string]any
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, "D1", back["digest"])

	require.Error(t, a.ArchiveBuild(context.Background(), "register", "", snapshot))
}

func TestNormaliseEndpoint(t *testing.T) {
	require.Equal(t, "https://e2.example.com", normaliseEndpoint("https://e2.example.com", false))
	require.Equal(t, "https://minio:9000", normaliseEndpoint("minio:9000", true))
	require.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
}

func TestIsNotFound(t *testing.T) {
	require.True(t, isNotFound(&types.NotFound{}))
	require.True(t, isNotFound(&types.NoSuchKey{}))
	require.False(t, isNotFound(errors.New("timeout")))
}
