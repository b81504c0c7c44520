package mocks

import (
	"context"

	"github.com/benmeehan/signage-agent/internal/materializer"
	"github.com/benmeehan/signage-agent/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockContentSource is a mock implementation of contentsource.ContentSource
type MockContentSource struct {
	mock.Mock
}

func (m *MockContentSource) CheckScreen(ctx context.Context, screenCode string) (models.RawResponse, error) {
	args := m.Called(ctx, screenCode)
	raw, _ := args.Get(0).(models.RawResponse)
	return raw, args.Error(1)
}

// MockContentCache is a mock implementation of cache.ContentCacheInterface
type MockContentCache struct {
	mock.Mock
}

func (m *MockContentCache) Load(identity string) (models.Snapshot, bool, error) {
	args := m.Called(identity)
	snapshot, _ := args.Get(0).(models.Snapshot)
	return snapshot, args.Bool(1), args.Error(2)
}

func (m *MockContentCache) Store(snapshot models.Snapshot, identity string) error {
	args := m.Called(snapshot, identity)
	return args.Error(0)
}

func (m *MockContentCache) Clear(identity string) error {
	args := m.Called(identity)
	return args.Error(0)
}

// MockMaterializer is a mock implementation of materializer.Materializer
type MockMaterializer struct {
	mock.Mock
}

func (m *MockMaterializer) Materialize(ctx context.Context, candidate models.Snapshot, onProgress materializer.ProgressFunc) (models.Snapshot, error) {
	args := m.Called(ctx, candidate, onProgress)
	snapshot, _ := args.Get(0).(models.Snapshot)
	return snapshot, args.Error(1)
}

// MockConnectivity is a mock implementation of services.Connectivity
type MockConnectivity struct {
	mock.Mock
}

func (m *MockConnectivity) IsOnline() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockConnectivity) Probe(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}
