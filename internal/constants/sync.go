package constants

import "time"

// SyncState is the engine's current phase.
type SyncState string

const (
	SyncStateBootstrapping SyncState = "bootstrapping"
	SyncStateIdle          SyncState = "idle"
	SyncStatePolling       SyncState = "polling"
	SyncStateMaterializing SyncState = "materializing"
	SyncStateReady         SyncState = "ready"
	SyncStateDegraded      SyncState = "degraded"
)

// RegistrationStatus is what the content source last said about the screen code.
type RegistrationStatus string

const (
	RegistrationUnknown       RegistrationStatus = "unknown"
	RegistrationRegistered    RegistrationStatus = "registered"
	RegistrationNotRegistered RegistrationStatus = "not_registered"
)

// ParseRegistrationStatus maps a persisted marker back to a status.
func ParseRegistrationStatus(s string) RegistrationStatus {
	switch RegistrationStatus(s) {
	case RegistrationRegistered, RegistrationNotRegistered:
		return RegistrationStatus(s)
	default:
		return RegistrationUnknown
	}
}

// Scheduling defaults.
const (
	DefaultBaseInterval           = 10 * time.Second
	SlowModeBaseInterval          = 5 * time.Minute
	DefaultUnregisteredMultiplier = 3
	DefaultMinPollSpacing         = 5 * time.Second
	DefaultContentTimeout         = 15 * time.Second
	DefaultConnectivityInterval   = 10 * time.Second
	DefaultProbeTimeout           = 10 * time.Second
	DefaultItemDelay              = 500 * time.Millisecond
	DefaultHeartbeatInterval      = 30 * time.Second
)

// Persisted key layout.
const (
	ItemsDataKeyPrefix          = "itemsData/"
	ScreenRegistrationStatusKey = "screenRegistrationStatus"
	LastScreenCheckTimeKey      = "lastScreenCheckTime"
)
