package models

import "time"

// Heartbeat is the periodic status report published for fleet monitoring.
type Heartbeat struct {
	DeviceID     string    `json:"device_id"`
	ScreenCode   string    `json:"screen_code"`
	Timestamp    time.Time `json:"timestamp"`
	SyncState    string    `json:"sync_state"`
	Registration string    `json:"registration"`
	ItemCount    int       `json:"item_count"`
	Online       bool      `json:"online"`
	Status       string    `json:"status"`

	Metrics map[string]interface{} `json:"metrics,omitempty"` // Device health, keyed by metric name
}
