package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/benmeehan/signage-agent/internal/metrics_collectors"
	"github.com/benmeehan/signage-agent/internal/models"
	"github.com/benmeehan/signage-agent/internal/state_managers"
	"github.com/benmeehan/signage-agent/pkg/mqtt"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// EngineObserver exposes the sync engine to fleet messaging.
type EngineObserver interface {
	State() state_managers.EngineState
	TriggerPoll()
}

// HeartbeatService publishes periodic status reports and listens for remote
// refresh requests addressed to this screen.
type HeartbeatService struct {
	PubTopic     string
	RefreshTopic string
	Interval     time.Duration
	QOS          int
	Engine       EngineObserver
	MqttClient   mqtt.MQTTClient
	Collectors   *metrics_collectors.MetricsRegistry // Optional device health collectors
	Logger       zerolog.Logger

	subscribed string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHeartbeatService initializes a new HeartbeatService. An empty refreshTopic
// disables the refresh subscription.
func NewHeartbeatService(pubTopic, refreshTopic string, interval time.Duration, qos int,
	engine EngineObserver, mqttClient mqtt.MQTTClient, logger zerolog.Logger) *HeartbeatService {

	return &HeartbeatService{
		PubTopic:     pubTopic,
		RefreshTopic: refreshTopic,
		Interval:     interval,
		QOS:          qos,
		Engine:       engine,
		MqttClient:   mqttClient,
		Logger:       logger,
	}
}

// Start subscribes to the refresh topic and launches the heartbeat loop.
func (h *HeartbeatService) Start() error {
	if h.ctx != nil {
		h.Logger.Warn().Msg("HeartbeatService is already running")
		return errors.New("heartbeat service is already running")
	}

	if err := h.subscribeRefresh(); err != nil {
		return err
	}

	h.ctx, h.cancel = context.WithCancel(context.Background())

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.runHeartbeatLoop()
	}()

	h.Logger.Info().Str("topic", h.PubTopic).Str("refresh_topic", h.subscribed).Msg("HeartbeatService started successfully")
	return nil
}

// Stop gracefully stops the heartbeat service.
func (h *HeartbeatService) Stop() error {
	if h.ctx == nil {
		h.Logger.Warn().Msg("HeartbeatService is not running")
		return errors.New("heartbeat service is not running")
	}

	h.cancel()
	h.wg.Wait()

	if h.subscribed != "" {
		token := h.MqttClient.Unsubscribe(h.subscribed)
		token.Wait()
		if err := token.Error(); err != nil {
			h.Logger.Warn().Err(err).Str("topic", h.subscribed).Msg("Failed to unsubscribe from refresh topic")
		}
		h.subscribed = ""
	}

	h.ctx = nil
	h.cancel = nil

	h.Logger.Info().Msg("HeartbeatService stopped successfully")
	return nil
}

func (h *HeartbeatService) subscribeRefresh() error {
	if h.RefreshTopic == "" {
		return nil
	}

	screenCode := h.Engine.State().ScreenCode
	if screenCode == "" {
		h.Logger.Warn().Msg("No screen code yet, refresh subscription skipped")
		return nil
	}

	topic := h.RefreshTopic + "/" + screenCode
	token := h.MqttClient.Subscribe(topic, byte(h.QOS), h.handleRefresh)
	token.Wait()
	if err := token.Error(); err != nil {
		h.Logger.Error().Err(err).Str("topic", topic).Msg("Failed to subscribe to refresh topic")
		return err
	}

	h.subscribed = topic
	return nil
}

func (h *HeartbeatService) handleRefresh(client pahomqtt.Client, msg pahomqtt.Message) {
	h.Logger.Info().Str("topic", msg.Topic()).Msg("Refresh requested")
	h.Engine.TriggerPoll()
}

// runHeartbeatLoop continuously sends heartbeat messages at the specified interval.
func (h *HeartbeatService) runHeartbeatLoop() {
	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.publish(h.ctx)

		case <-h.ctx.Done():
			h.Logger.Info().Msg("HeartbeatService stopping gracefully")
			return
		}
	}
}

func (h *HeartbeatService) publish(ctx context.Context) {
	state := h.Engine.State()
	heartbeatMessage := models.Heartbeat{
		DeviceID:     state.DeviceID,
		ScreenCode:   state.ScreenCode,
		Timestamp:    time.Now(),
		SyncState:    string(state.SyncState),
		Registration: string(state.Registration),
		ItemCount:    len(state.Displayable),
		Online:       state.Online,
		Status:       state.Status.Message,
	}
	if h.Collectors != nil {
		heartbeatMessage.Metrics = h.Collectors.CollectAll(ctx)
	}

	payload, err := json.Marshal(heartbeatMessage)
	if err != nil {
		h.Logger.Error().Err(err).Msg("Failed to serialize heartbeat message")
		return
	}

	token := h.MqttClient.Publish(h.PubTopic, byte(h.QOS), false, payload)
	token.Wait()

	if err := token.Error(); err != nil {
		h.Logger.Error().Err(err).Msg("Failed to publish heartbeat message")
	} else {
		h.Logger.Debug().Msg("Heartbeat published successfully")
	}
}
