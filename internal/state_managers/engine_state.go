// Package state_managers holds the engine's observable state and the small
// markers it persists between runs.
package state_managers

import (
	"sync"
	"time"

	"github.com/benmeehan/signage-agent/internal/constants"
	"github.com/benmeehan/signage-agent/internal/models"
)

// Status is the user-facing status line shown when no media is playing.
type Status struct {
	Message          string `json:"message"`
	IsLoading        bool   `json:"is_loading"`
	DownloadProgress int    `json:"download_progress"`
}

// EngineState is a point-in-time view of the synchronization engine.
type EngineState struct {
	SyncState    constants.SyncState          `json:"sync_state"`
	Registration constants.RegistrationStatus `json:"registration"`
	DeviceID     string                       `json:"device_id"`
	ScreenCode   string                       `json:"screen_code"`
	Displayable  models.Snapshot              `json:"displayable"`
	Status       Status                       `json:"status"`
	Online       bool                         `json:"online"`
	LastCheck    time.Time                    `json:"last_check,omitempty"`
	NextPollAt   time.Time                    `json:"next_poll_at,omitempty"`
	LastError    string                       `json:"last_error,omitempty"`
}

// Clone returns a copy whose snapshot shares no memory with s.
func (s EngineState) Clone() EngineState {
	s.Displayable = s.Displayable.Clone()
	return s
}

// EngineStateStore is the single writer-many reader holder of EngineState.
// Subscribers receive the latest state; a slow subscriber only misses
// intermediate states, never the most recent one.
type EngineStateStore struct {
	mu          sync.RWMutex
	state       EngineState
	subscribers map[int]chan EngineState
	nextID      int
}

// NewEngineStateStore creates a store in the bootstrapping state.
func NewEngineStateStore() *EngineStateStore {
	return &EngineStateStore{
		state: EngineState{
			SyncState:    constants.SyncStateBootstrapping,
			Registration: constants.RegistrationUnknown,
			Status:       Status{Message: constants.StatusInitializing, IsLoading: true},
		},
		subscribers: make(map[int]chan EngineState),
	}
}

// Get returns a copy of the current state.
func (s *EngineStateStore) Get() EngineState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Update applies fn to the state and notifies subscribers.
func (s *EngineStateStore) Update(fn func(*EngineState)) EngineState {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.state)
	current := s.state.Clone()

	for _, ch := range s.subscribers {
		// Replace any unread value with the newest one.
		select {
		case <-ch:
		default:
		}
		ch <- current.Clone()
	}
	return current
}

// Subscribe returns a channel that receives the current state immediately and
// every later update. Call the returned function to unsubscribe.
func (s *EngineStateStore) Subscribe() (<-chan EngineState, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++

	ch := make(chan EngineState, 1)
	ch <- s.state.Clone()
	s.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subscribers, id)
		})
	}
}
