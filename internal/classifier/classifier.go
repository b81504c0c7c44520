// Package classifier maps a raw content source response onto exactly one
// outcome. It has no side effects and never fails.
package classifier

import (
	"encoding/json"

	"github.com/benmeehan/signage-agent/internal/constants"
	"github.com/benmeehan/signage-agent/internal/models"
)

// Kind identifies an outcome variant.
type Kind int

const (
	Unrecognized Kind = iota
	Unchanged
	ContentAvailable
	NoContentAvailable
	NotRegistered
	NoPlaylist
)

func (k Kind) String() string {
	switch k {
	case Unchanged:
		return "unchanged"
	case ContentAvailable:
		return "content_available"
	case NoContentAvailable:
		return "no_content"
	case NotRegistered:
		return "not_registered"
	case NoPlaylist:
		return "no_playlist"
	default:
		return "unknown"
	}
}

// Outcome is the classified response. Items is set only for ContentAvailable.
type Outcome struct {
	Kind    Kind
	Items   models.Snapshot
	Message string
}

// Classify inspects raw and returns its outcome.
func Classify(raw models.RawResponse) Outcome {
	if len(raw) == 0 {
		return Outcome{Kind: Unchanged, Message: constants.MessageUnchanged}
	}

	message, _ := raw.Message()

	switch message {
	case constants.RemoteMessageNotRegistered:
		return Outcome{Kind: NotRegistered, Message: constants.MessageNotRegistered}
	case constants.RemoteMessageNoPlaylist:
		return Outcome{Kind: NoPlaylist, Message: constants.MessageNoPlaylist}
	case constants.RemoteMessageNoContent:
		return Outcome{Kind: NoContentAvailable, Message: constants.MessageNoContent}
	case constants.RemoteMessageDataFound:
		if items, ok := decodeItems(raw["data"]); ok {
			if len(items) == 0 {
				return Outcome{Kind: NoContentAvailable, Message: constants.MessageEmptyData}
			}
			return Outcome{Kind: ContentAvailable, Items: items, Message: constants.MessageContentAvailable}
		}
	}

	if message == "" {
		message = constants.MessageUnknownResponse
	}
	return Outcome{Kind: Unrecognized, Message: message}
}

// decodeItems accepts only a JSON array of content items.
func decodeItems(data json.RawMessage) (models.Snapshot, bool) {
	if len(data) == 0 {
		return nil, false
	}

	var items models.Snapshot
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false
	}
	if items == nil {
		// "data": null
		return nil, false
	}
	return items, true
}
