package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benmeehan/signage-agent/internal/constants"
	"github.com/benmeehan/signage-agent/internal/metrics_collectors"
	"github.com/benmeehan/signage-agent/internal/mocks"
	"github.com/benmeehan/signage-agent/internal/models"
	"github.com/benmeehan/signage-agent/internal/services"
	"github.com/benmeehan/signage-agent/internal/state_managers"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	mu       sync.Mutex
	state    state_managers.EngineState
	triggers int
}

func (f *fakeEngine) State() state_managers.EngineState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeEngine) TriggerPoll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers++
}

func (f *fakeEngine) Triggers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.triggers
}

func readyEngine() *fakeEngine {
	return &fakeEngine{state: state_managers.EngineState{
		SyncState:    constants.SyncStateReady,
		Registration: constants.RegistrationRegistered,
		DeviceID:     testDeviceID,
		ScreenCode:   testScreenCode,
		Displayable:  twoItems,
		Online:       true,
		Status:       state_managers.Status{Message: constants.MessageContentAvailable},
	}}
}

func TestHeartbeatService_StartStop(t *testing.T) {
	mockMQTT := new(mocks.MockMQTTClient)
	h := services.NewHeartbeatService("signage/heartbeat", "", time.Second, 1, readyEngine(), mockMQTT, zerolog.Nop())

	require.NoError(t, h.Start())

	err := h.Start()
	assert.EqualError(t, err, "heartbeat service is already running")

	require.NoError(t, h.Stop())
	err = h.Stop()
	assert.EqualError(t, err, "heartbeat service is not running")
}

func TestHeartbeatService_PublishesEngineState(t *testing.T) {
	mockMQTT := new(mocks.MockMQTTClient)
	published := make(chan []byte, 10)
	mockMQTT.On("Publish", "signage/heartbeat", byte(1), false, mock.Anything).
		Run(func(args mock.Arguments) { published <- args.Get(3).([]byte) }).
		Return(mocks.NewCompletedToken(nil))

	h := services.NewHeartbeatService("signage/heartbeat", "", 20*time.Millisecond, 1, readyEngine(), mockMQTT, zerolog.Nop())
	require.NoError(t, h.Start())
	defer h.Stop()

	var payload []byte
	select {
	case payload = <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat published")
	}

	var hb models.Heartbeat
	require.NoError(t, json.Unmarshal(payload, &hb))
	assert.Equal(t, testDeviceID, hb.DeviceID)
	assert.Equal(t, testScreenCode, hb.ScreenCode)
	assert.Equal(t, "ready", hb.SyncState)
	assert.Equal(t, "registered", hb.Registration)
	assert.Equal(t, 2, hb.ItemCount)
	assert.True(t, hb.Online)
}

type fixedMetric struct{}

func (fixedMetric) Name() string                            { return "cpu_percent" }
func (fixedMetric) Collect(ctx context.Context) interface{} { return 42.0 }

func TestHeartbeatService_IncludesDeviceMetrics(t *testing.T) {
	mockMQTT := new(mocks.MockMQTTClient)
	published := make(chan []byte, 10)
	mockMQTT.On("Publish", "signage/heartbeat", byte(0), false, mock.Anything).
		Run(func(args mock.Arguments) { published <- args.Get(3).([]byte) }).
		Return(mocks.NewCompletedToken(nil))

	h := services.NewHeartbeatService("signage/heartbeat", "", 20*time.Millisecond, 0, readyEngine(), mockMQTT, zerolog.Nop())
	h.Collectors = metrics_collectors.NewMetricsRegistry()
	h.Collectors.Register(fixedMetric{})
	require.NoError(t, h.Start())
	defer h.Stop()

	var payload []byte
	select {
	case payload = <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat published")
	}

	var hb models.Heartbeat
	require.NoError(t, json.Unmarshal(payload, &hb))
	assert.Equal(t, map[string]interface{}{"cpu_percent": 42.0}, hb.Metrics)
}

func TestHeartbeatService_PublishErrorKeepsRunning(t *testing.T) {
	mockMQTT := new(mocks.MockMQTTClient)
	published := make(chan struct{}, 10)
	mockMQTT.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { published <- struct{}{} }).
		Return(mocks.NewCompletedToken(errors.New("broker unavailable")))

	h := services.NewHeartbeatService("signage/heartbeat", "", 10*time.Millisecond, 0, readyEngine(), mockMQTT, zerolog.Nop())
	require.NoError(t, h.Start())

	for i := 0; i < 2; i++ {
		select {
		case <-published:
		case <-time.After(2 * time.Second):
			t.Fatal("heartbeat loop stopped after a publish error")
		}
	}
	require.NoError(t, h.Stop())
}

func TestHeartbeatService_RefreshTriggersPoll(t *testing.T) {
	mockMQTT := new(mocks.MockMQTTClient)
	engine := readyEngine()

	var handler pahomqtt.MessageHandler
	mockMQTT.On("Subscribe", "signage/refresh/"+testScreenCode, byte(1), mock.Anything).
		Run(func(args mock.Arguments) { handler = args.Get(2).(pahomqtt.MessageHandler) }).
		Return(mocks.NewCompletedToken(nil))
	mockMQTT.On("Unsubscribe", []string{"signage/refresh/" + testScreenCode}).Return(mocks.NewCompletedToken(nil))

	h := services.NewHeartbeatService("signage/heartbeat", "signage/refresh", time.Hour, 1, engine, mockMQTT, zerolog.Nop())
	require.NoError(t, h.Start())
	require.NotNil(t, handler)

	handler(nil, mocks.NewMockMessage("signage/refresh/"+testScreenCode, []byte("{}")))
	assert.Equal(t, 1, engine.Triggers())

	require.NoError(t, h.Stop())
	mockMQTT.AssertExpectations(t)
}

func TestHeartbeatService_SubscribeFailureFailsStart(t *testing.T) {
	mockMQTT := new(mocks.MockMQTTClient)
	mockMQTT.On("Subscribe", mock.Anything, mock.Anything, mock.Anything).
		Return(mocks.NewCompletedToken(errors.New("not authorized")))

	h := services.NewHeartbeatService("signage/heartbeat", "signage/refresh", time.Hour, 1, readyEngine(), mockMQTT, zerolog.Nop())
	assert.Error(t, h.Start())
	assert.Error(t, h.Stop())
}
