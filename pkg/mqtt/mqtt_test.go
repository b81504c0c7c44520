package mqtt_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/benmeehan/signage-agent/pkg/file"
	"github.com/benmeehan/signage-agent/pkg/mqtt"
	"github.com/stretchr/testify/assert"
)

func TestInitialize_MissingCACert(t *testing.T) {
	s := mqtt.NewMqttService(file.NewFileService())

	err := s.Initialize(mqtt.Options{
		Broker:     "ssl://127.0.0.1:8883",
		ClientID:   "signage-test",
		CACertPath: filepath.Join(t.TempDir(), "missing.pem"),
	})
	assert.ErrorContains(t, err, "failed to read CA certificate")
}

func TestInitialize_InvalidCACert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	assert.NoError(t, os.WriteFile(path, []byte("not a certificate"), 0644))

	s := mqtt.NewMqttService(file.NewFileService())
	err := s.Initialize(mqtt.Options{
		Broker:     "ssl://127.0.0.1:8883",
		ClientID:   "signage-test",
		CACertPath: path,
	})
	assert.ErrorContains(t, err, "failed to append CA certificate")
}
