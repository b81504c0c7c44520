// Package kvstore is the local storage medium behind the identity store, the
// content cache and the persisted sync markers. Keys and values are strings;
// every Put is atomic with respect to readers.
package kvstore

import (
	"errors"
	"fmt"
)

// Supported storage drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

var ErrUnknownDriver = errors.New("unknown storage driver")

// Store is a durable string key-value store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)
	// Put writes value under key, replacing any previous value.
	Put(key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
	Close() error
}

// Open returns the Store implementation selected by driver.
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverFile, "":
		return NewFileStore(path, nil)
	case DriverSQLite:
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
