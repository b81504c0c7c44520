package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/benmeehan/signage-agent/pkg/identity"
	"github.com/benmeehan/signage-agent/pkg/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dbPath, addr string) string {
	t.Helper()
	config := fmt.Sprintf(`
log:
  level: error
storage:
  driver: sqlite
  path: %s
content_source:
  base_url: http://127.0.0.1:1
services:
  status_api:
    enabled: true
    addr: %q
`, dbPath, addr)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(config), 0644))
	return path
}

func TestRun_InvalidConfig(t *testing.T) {
	err := run(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to load configuration")
}

func TestRun_StartupFailureClosesStorage(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "signage.db")

	err := run(writeConfig(t, dbPath, "127.0.0.1:-1"))
	require.ErrorContains(t, err, "failed to start status_api")

	// identity written before the failing service must be readable after run returns
	store, err := kvstore.Open(kvstore.DriverSQLite, dbPath)
	require.NoError(t, err)
	defer store.Close()

	deviceID, ok, err := store.Get(identity.DeviceIDKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, deviceID, identity.DeviceIDLength)
}
