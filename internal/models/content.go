package models

import "strings"

// MediaKind is the display family of a content item.
type MediaKind string

const (
	MediaKindVideo   MediaKind = "video"
	MediaKindImage   MediaKind = "image"
	MediaKindUnknown MediaKind = "unknown"
)

// ContentItem is one entry of a screen's playlist as returned by the content source.
type ContentItem struct {
	// MediaType is the MIME type, e.g. "video/mp4" or "image/jpeg".
	MediaType string `json:"media_type"`

	// MediaURL is the source URI of the media.
	MediaURL string `json:"media_url"`

	// Length is the display duration in seconds, if the remote supplied one.
	Length *float64 `json:"length"`

	// Position is the playlist position, if the remote supplied one.
	Position *float64 `json:"position"`
}

// Kind derives the media family from the MIME type.
func (c ContentItem) Kind() MediaKind {
	switch {
	case strings.HasPrefix(c.MediaType, "video/"):
		return MediaKindVideo
	case strings.HasPrefix(c.MediaType, "image/"):
		return MediaKindImage
	default:
		return MediaKindUnknown
	}
}

// Equal reports field-wise equality.
func (c ContentItem) Equal(other ContentItem) bool {
	return c.MediaType == other.MediaType &&
		c.MediaURL == other.MediaURL &&
		floatPtrEqual(c.Length, other.Length) &&
		floatPtrEqual(c.Position, other.Position)
}

// Snapshot is an ordered list of content items; order is display order.
type Snapshot []ContentItem

// Equal reports structural, order-sensitive equality. A nil and an empty
// snapshot are equal.
func (s Snapshot) Equal(other Snapshot) bool {
	return SnapshotsEqual(s, other)
}

// Clone returns a copy that shares no memory with s.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for i, item := range s {
		out[i] = ContentItem{
			MediaType: item.MediaType,
			MediaURL:  item.MediaURL,
			Length:    cloneFloat(item.Length),
			Position:  cloneFloat(item.Position),
		}
	}
	return out
}

// SnapshotsEqual compares two snapshots item by item.
func SnapshotsEqual(a, b Snapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// Float returns a pointer to v, for building items in code and tests.
func Float(v float64) *float64 {
	return &v
}
