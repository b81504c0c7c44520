package state_managers

import (
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/signage-agent/internal/constants"
	"github.com/benmeehan/signage-agent/pkg/kvstore"
	"github.com/rs/zerolog"
)

// SyncMarkers persists the registration status and the time of the last
// completed screen check so both survive a restart.
type SyncMarkers struct {
	store  kvstore.Store
	logger zerolog.Logger
	mu     sync.Mutex
}

// NewSyncMarkers initializes a new SyncMarkers
func NewSyncMarkers(store kvstore.Store, logger zerolog.Logger) *SyncMarkers {
	return &SyncMarkers{
		store:  store,
		logger: logger,
	}
}

// LoadRegistration returns the persisted registration status, or unknown if none.
func (sm *SyncMarkers) LoadRegistration() (constants.RegistrationStatus, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	value, ok, err := sm.store.Get(constants.ScreenRegistrationStatusKey)
	if err != nil {
		sm.logger.Error().Err(err).Msg("Failed to read registration marker")
		return constants.RegistrationUnknown, err
	}
	if !ok {
		return constants.RegistrationUnknown, nil
	}
	return constants.ParseRegistrationStatus(value), nil
}

// LoadLastCheck returns the time of the last completed screen check.
func (sm *SyncMarkers) LoadLastCheck() (time.Time, bool, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	value, ok, err := sm.store.Get(constants.LastScreenCheckTimeKey)
	if err != nil || !ok {
		return time.Time{}, false, err
	}

	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		sm.logger.Warn().Str("value", value).Msg("Ignoring malformed last check time")
		return time.Time{}, false, nil
	}
	return t, true, nil
}

// Save writes both markers. An unknown status is not persisted.
func (sm *SyncMarkers) Save(status constants.RegistrationStatus, checkedAt time.Time) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if status != constants.RegistrationUnknown {
		if err := sm.store.Put(constants.ScreenRegistrationStatusKey, string(status)); err != nil {
			return fmt.Errorf("failed to persist registration marker: %w", err)
		}
	}
	if err := sm.store.Put(constants.LastScreenCheckTimeKey, checkedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to persist last check time: %w", err)
	}
	return nil
}
