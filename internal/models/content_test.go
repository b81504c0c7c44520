package models_test

import (
	"encoding/json"
	"testing"

	"github.com/benmeehan/signage-agent/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentItem_Kind(t *testing.T) {
	assert.Equal(t, models.MediaKindVideo, models.ContentItem{MediaType: "video/mp4"}.Kind())
	assert.Equal(t, models.MediaKindImage, models.ContentItem{MediaType: "image/jpeg"}.Kind())
	assert.Equal(t, models.MediaKindUnknown, models.ContentItem{MediaType: "text/html"}.Kind())
	assert.Equal(t, models.MediaKindUnknown, models.ContentItem{}.Kind())
}

func TestSnapshotsEqual(t *testing.T) {
	a := models.ContentItem{MediaType: "image/jpeg", MediaURL: "https://x/a.jpg", Length: models.Float(5)}
	b := models.ContentItem{MediaType: "video/mp4", MediaURL: "https://x/b.mp4", Length: models.Float(17), Position: models.Float(0)}

	tests := []struct {
		name  string
		left  models.Snapshot
		right models.Snapshot
		want  bool
	}{
		{"nil and empty", nil, models.Snapshot{}, true},
		{"same items", models.Snapshot{a, b}, models.Snapshot{a, b}.Clone(), true},
		{"order matters", models.Snapshot{a, b}, models.Snapshot{b, a}, false},
		{"different length", models.Snapshot{a}, models.Snapshot{a, b}, false},
		{"length value differs", models.Snapshot{a}, models.Snapshot{{MediaType: a.MediaType, MediaURL: a.MediaURL, Length: models.Float(6)}}, false},
		{"absent vs present position", models.Snapshot{b}, models.Snapshot{{MediaType: b.MediaType, MediaURL: b.MediaURL, Length: b.Length}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, models.SnapshotsEqual(tt.left, tt.right))
			assert.Equal(t, tt.want, tt.left.Equal(tt.right))
		})
	}
}

func TestSnapshot_CloneIsIndependent(t *testing.T) {
	original := models.Snapshot{{MediaType: "image/png", MediaURL: "https://x/a.png", Length: models.Float(5)}}
	clone := original.Clone()

	*clone[0].Length = 9
	assert.Equal(t, 5.0, *original[0].Length)
}

func TestContentItem_DecodesRemotePayload(t *testing.T) {
	payload := `[{"media_type":"video/mp4","media_url":"https://x/v.mp4","length":17,"position":null}]`

	var snapshot models.Snapshot
	require.NoError(t, json.Unmarshal([]byte(payload), &snapshot))
	require.Len(t, snapshot, 1)
	assert.Equal(t, 17.0, *snapshot[0].Length)
	assert.Nil(t, snapshot[0].Position)
}

func TestRawResponse_Message(t *testing.T) {
	raw := models.RawResponse{"message": json.RawMessage(`"Please Add Playlist"`)}
	msg, ok := raw.Message()
	assert.True(t, ok)
	assert.Equal(t, "Please Add Playlist", msg)

	_, ok = models.RawResponse{"message": json.RawMessage(`42`)}.Message()
	assert.False(t, ok)

	_, ok = models.RawResponse{}.Message()
	assert.False(t, ok)
}
