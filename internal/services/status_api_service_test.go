package services_test

import (
	"net/http"
	"testing"

	"github.com/benmeehan/signage-agent/internal/handlers"
	"github.com/benmeehan/signage-agent/internal/services"
	"github.com/benmeehan/signage-agent/internal/state_managers"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeEngine struct {
	store *state_managers.EngineStateStore
}

func (e storeEngine) State() state_managers.EngineState { return e.store.Get() }

func (e storeEngine) Subscribe() (<-chan state_managers.EngineState, func()) {
	return e.store.Subscribe()
}

func TestStatusAPIService_ServesHealth(t *testing.T) {
	h := handlers.NewStateHandler(storeEngine{store: state_managers.NewEngineStateStore()}, nil, zerolog.Nop())
	svc := services.NewStatusAPIService("127.0.0.1:0", handlers.NewRouter(h, zerolog.Nop()), zerolog.Nop())

	require.NoError(t, svc.Start())
	assert.EqualError(t, svc.Start(), "status api service is already running")

	resp, err := http.Get("http://" + svc.ListenAddr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, svc.Stop())
	assert.Empty(t, svc.ListenAddr())
	assert.EqualError(t, svc.Stop(), "status api service is not running")
}

func TestStatusAPIService_BindFailure(t *testing.T) {
	svc := services.NewStatusAPIService("256.0.0.1:99999", http.NotFoundHandler(), zerolog.Nop())
	assert.Error(t, svc.Start())
}
