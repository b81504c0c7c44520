package cache

import (
	"encoding/json"
	"fmt"

	"github.com/benmeehan/signage-agent/internal/constants"
	"github.com/benmeehan/signage-agent/internal/models"
	"github.com/benmeehan/signage-agent/pkg/kvstore"
	"github.com/rs/zerolog"
)

// ContentCacheInterface is the durable store of the last accepted snapshot.
type ContentCacheInterface interface {
	Load(identity string) (models.Snapshot, bool, error)
	Store(snapshot models.Snapshot, identity string) error
	Clear(identity string) error
}

// ContentCache persists snapshots as JSON arrays under a per-device key.
type ContentCache struct {
	store  kvstore.Store
	logger zerolog.Logger
}

// NewContentCache creates a cache over store.
func NewContentCache(store kvstore.Store, logger zerolog.Logger) *ContentCache {
	return &ContentCache{store: store, logger: logger}
}

// Key returns the storage key for identity.
func Key(identity string) string {
	return constants.ItemsDataKeyPrefix + identity
}

// Load returns the cached snapshot. A missing entry is (nil, false, nil).
func (c *ContentCache) Load(identity string) (models.Snapshot, bool, error) {
	value, ok, err := c.store.Get(Key(identity))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached content: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	var snapshot models.Snapshot
	if err := json.Unmarshal([]byte(value), &snapshot); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached content: %w", err)
	}
	if snapshot == nil {
		snapshot = models.Snapshot{}
	}
	return snapshot, true, nil
}

// Store replaces the cached snapshot in a single write.
func (c *ContentCache) Store(snapshot models.Snapshot, identity string) error {
	if snapshot == nil {
		snapshot = models.Snapshot{}
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrStorageWrite, err)
	}
	if err := c.store.Put(Key(identity), string(data)); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStorageWrite, err)
	}

	c.logger.Debug().Str("device_id", identity).Int("items", len(snapshot)).Msg("Content snapshot cached")
	return nil
}

// Clear removes the cached snapshot.
func (c *ContentCache) Clear(identity string) error {
	if err := c.store.Delete(Key(identity)); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStorageWrite, err)
	}
	return nil
}
