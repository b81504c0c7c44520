package materializer_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/benmeehan/signage-agent/internal/materializer"
	"github.com/benmeehan/signage-agent/internal/models"
	"github.com/benmeehan/signage-agent/pkg/file"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockObjectStorage struct {
	mock.Mock
}

func (m *mockObjectStorage) Connect(ctx context.Context, endpoint, accessKeyID, secretAccessKey string, useSSL bool) error {
	args := m.Called(ctx, endpoint, accessKeyID, secretAccessKey, useSSL)
	return args.Error(0)
}

func (m *mockObjectStorage) DownloadObject(ctx context.Context, bucket, object, outputPath string) (int64, error) {
	args := m.Called(ctx, bucket, object, outputPath)
	if err := args.Error(1); err != nil {
		return 0, err
	}
	data := []byte(args.String(2))
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return 0, err
	}
	return int64(args.Int(0)), nil
}

type mediaServer struct {
	*httptest.Server
	gets atomic.Int32
}

func newMediaServer(t *testing.T) *mediaServer {
	t.Helper()
	m := &mediaServer{}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.gets.Add(1)
		if r.URL.Path == "/missing.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("media:" + r.URL.Path))
	}))
	t.Cleanup(m.Server.Close)
	return m
}

func newPrefetcher(dir string, client *http.Client) *materializer.Prefetcher {
	return materializer.NewPrefetcher(materializer.NewValidator(nil, 0, zerolog.Nop()), dir, client,
		nil, file.NewFileService(), zerolog.Nop())
}

func TestPrefetcher_DownloadsAndIndexes(t *testing.T) {
	server := newMediaServer(t)
	dir := t.TempDir()

	p := newPrefetcher(dir, server.Client())

	candidate := models.Snapshot{
		{MediaType: "video/mp4", MediaURL: server.URL + "/a.mp4"},
		{MediaType: "image/jpeg", MediaURL: server.URL + "/b.jpg"},
	}

	var calls int
	out, err := p.Materialize(context.Background(), candidate, func(done, total int) { calls++ })
	require.NoError(t, err)
	assert.True(t, out.Equal(candidate))
	assert.Equal(t, 2, calls)

	media, ok := p.LocalFile(server.URL + "/a.mp4")
	require.True(t, ok)
	assert.Equal(t, dir, filepath.Dir(media.Path))
	assert.Equal(t, ".mp4", filepath.Ext(media.Path))
	assert.NotEmpty(t, media.SHA256)

	data, err := os.ReadFile(media.Path)
	require.NoError(t, err)
	assert.Equal(t, "media:/a.mp4", string(data))
}

func TestPrefetcher_KeepsItemsWithUnreachableMedia(t *testing.T) {
	server := newMediaServer(t)
	p := newPrefetcher(t.TempDir(), server.Client())

	candidate := models.Snapshot{
		{MediaType: "image/jpeg", MediaURL: server.URL + "/ok.jpg"},
		{MediaType: "image/jpeg", MediaURL: server.URL + "/missing.jpg"},
		{MediaType: "image/png", MediaURL: "s3://signage/lobby/a.png"},
	}

	out, err := p.Materialize(context.Background(), candidate, nil)
	require.NoError(t, err)
	assert.True(t, out.Equal(candidate))

	_, ok := p.LocalFile(server.URL + "/ok.jpg")
	assert.True(t, ok)
	_, ok = p.LocalFile(server.URL + "/missing.jpg")
	assert.False(t, ok)
	_, ok = p.LocalFile("s3://signage/lobby/a.png")
	assert.False(t, ok)
}

func TestPrefetcher_ReusesIndexedMedia(t *testing.T) {
	server := newMediaServer(t)
	p := newPrefetcher(t.TempDir(), server.Client())

	candidate := models.Snapshot{
		{MediaType: "image/jpeg", MediaURL: server.URL + "/ok.jpg"},
		{MediaType: "image/jpeg", MediaURL: server.URL + "/missing.jpg"},
	}

	for i := 0; i < 3; i++ {
		_, err := p.Materialize(context.Background(), candidate, nil)
		require.NoError(t, err)
	}

	// ok.jpg once, missing.jpg on every pass
	assert.Equal(t, int32(4), server.gets.Load())
}

func TestPrefetcher_RemovesStaleMedia(t *testing.T) {
	server := newMediaServer(t)
	p := newPrefetcher(t.TempDir(), server.Client())

	_, err := p.Materialize(context.Background(), models.Snapshot{
		{MediaType: "image/jpeg", MediaURL: server.URL + "/old.jpg"},
	}, nil)
	require.NoError(t, err)
	old, ok := p.LocalFile(server.URL + "/old.jpg")
	require.True(t, ok)

	_, err = p.Materialize(context.Background(), models.Snapshot{
		{MediaType: "image/jpeg", MediaURL: server.URL + "/new.jpg"},
	}, nil)
	require.NoError(t, err)

	_, ok = p.LocalFile(server.URL + "/old.jpg")
	assert.False(t, ok)
	_, statErr := os.Stat(old.Path)
	assert.True(t, os.IsNotExist(statErr))

	_, ok = p.LocalFile(server.URL + "/new.jpg")
	assert.True(t, ok)
}

func TestPrefetcher_LocalWriteFailureFailsPass(t *testing.T) {
	server := newMediaServer(t)
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	p := newPrefetcher(filepath.Join(blocker, "media"), server.Client())

	_, err := p.Materialize(context.Background(), models.Snapshot{
		{MediaType: "image/jpeg", MediaURL: server.URL + "/ok.jpg"},
	}, nil)
	assert.ErrorIs(t, err, models.ErrMaterialization)

	_, ok := p.LocalFile(server.URL + "/ok.jpg")
	assert.False(t, ok, "no partial index after a failed pass")
}

func TestPrefetcher_CancelledPassFails(t *testing.T) {
	server := newMediaServer(t)
	p := newPrefetcher(t.TempDir(), server.Client())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Materialize(ctx, models.Snapshot{
		{MediaType: "image/jpeg", MediaURL: server.URL + "/ok.jpg"},
	}, nil)
	assert.ErrorIs(t, err, models.ErrMaterialization)
}

func TestPrefetcher_ObjectStorage(t *testing.T) {
	dir := t.TempDir()
	store := new(mockObjectStorage)
	store.On("DownloadObject", mock.Anything, "signage", "lobby/a.png", mock.Anything).Return(3, nil, "png")

	p := materializer.NewPrefetcher(materializer.NewValidator(nil, 0, zerolog.Nop()), dir, nil,
		store, file.NewFileService(), zerolog.Nop())

	_, err := p.Materialize(context.Background(), models.Snapshot{{MediaType: "image/png", MediaURL: "s3://signage/lobby/a.png"}}, nil)
	require.NoError(t, err)

	media, ok := p.LocalFile("s3://signage/lobby/a.png")
	require.True(t, ok)
	assert.Equal(t, int64(3), media.Size)
	store.AssertExpectations(t)
}

func TestPrefetcher_UnsupportedSchemeIsKept(t *testing.T) {
	p := newPrefetcher(t.TempDir(), nil)

	candidate := models.Snapshot{{MediaType: "image/png", MediaURL: "ftp://x/a.png"}}
	out, err := p.Materialize(context.Background(), candidate, nil)
	require.NoError(t, err)
	assert.True(t, out.Equal(candidate))

	_, ok := p.LocalFile("ftp://x/a.png")
	assert.False(t, ok)
}
