package s3_test

import (
	"context"
	"testing"

	"github.com/benmeehan/signage-agent/pkg/file"
	"github.com/benmeehan/signage-agent/pkg/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	bucket, object, err := s3.ParseURI("s3://signage-media/lobby/intro.mp4")
	require.NoError(t, err)
	assert.Equal(t, "signage-media", bucket)
	assert.Equal(t, "lobby/intro.mp4", object)
}

func TestParseURI_Invalid(t *testing.T) {
	for _, uri := range []string{
		"https://x/a.jpg",
		"s3://bucket-only",
		"s3:///no-bucket.jpg",
	} {
		_, _, err := s3.ParseURI(uri)
		assert.Error(t, err, uri)
	}
}

func TestObjectStorage_DownloadRequiresConnection(t *testing.T) {
	o := s3.NewObjectStorage(file.NewFileService())
	_, err := o.DownloadObject(context.Background(), "b", "k", t.TempDir()+"/k")
	assert.ErrorIs(t, err, s3.ErrNotConnected)
}
