package service_registry

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/benmeehan/signage-agent/internal/cache"
	"github.com/benmeehan/signage-agent/internal/contentsource"
	"github.com/benmeehan/signage-agent/internal/handlers"
	"github.com/benmeehan/signage-agent/internal/materializer"
	"github.com/benmeehan/signage-agent/internal/metrics_collectors"
	"github.com/benmeehan/signage-agent/internal/registry"
	"github.com/benmeehan/signage-agent/internal/services"
	"github.com/benmeehan/signage-agent/internal/state_managers"
	"github.com/benmeehan/signage-agent/internal/utils"
	"github.com/benmeehan/signage-agent/pkg/clock"
	"github.com/benmeehan/signage-agent/pkg/file"
	"github.com/benmeehan/signage-agent/pkg/identity"
	"github.com/benmeehan/signage-agent/pkg/kvstore"
	"github.com/benmeehan/signage-agent/pkg/mqtt"
	"github.com/benmeehan/signage-agent/pkg/s3"
	"github.com/rs/zerolog"
)

// Dependencies are the shared clients the services are built from.
// MqttClient and ObjectStorage are nil when disabled.
type Dependencies struct {
	DeviceInfo    identity.DeviceInfoInterface
	Store         kvstore.Store
	FileClient    file.FileOperations
	MqttClient    mqtt.MQTTClient
	ObjectStorage s3.ObjectStorageClient
	Clock         clock.Clock
}

// ServiceRegistry manages the lifecycle of various services in the system.
type ServiceRegistry struct {
	services    map[string]registry.Service // Stores registered services
	serviceKeys []string                    // Maintains order of service registration
	deps        Dependencies
	engine      *services.SyncService
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes a new service registry with dependencies.
func NewServiceRegistry(deps Dependencies, logger zerolog.Logger) *ServiceRegistry {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	return &ServiceRegistry{
		services: make(map[string]registry.Service),
		deps:     deps,
		Logger:   logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc registry.Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// Engine returns the sync engine once RegisterServices has run.
func (sr *ServiceRegistry) Engine() *services.SyncService {
	return sr.engine
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices builds the sync engine and its companion services from
// configuration and registers them in start order.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config) error {
	state := state_managers.NewEngineStateStore()

	connectivity := services.NewConnectivityService(services.ConnectivityConfig{
		Interval:     config.Connectivity.Interval,
		ProbeTimeout: config.Connectivity.ProbeTimeout,
		ProbeURLs:    config.Connectivity.ProbeURLs,
		Workers:      config.Connectivity.Workers,
	}, state, sr.Logger.With().Str("service", "connectivity").Logger())

	mat, media := sr.buildMaterializer(config)

	sr.engine = services.NewSyncService(
		sr.deps.DeviceInfo,
		contentsource.NewClient(config.ContentSource.BaseURL, config.ContentSource.ScreenPath,
			config.ContentSource.Timeout, sr.Logger.With().Str("component", "content_source").Logger()),
		cache.NewContentCache(sr.deps.Store, sr.Logger.With().Str("component", "cache").Logger()),
		mat,
		connectivity,
		state_managers.NewSyncMarkers(sr.deps.Store, sr.Logger),
		state,
		sr.deps.Clock,
		services.SyncConfig{
			BaseInterval:           config.Sync.BaseInterval,
			UnregisteredMultiplier: config.Sync.UnregisteredMultiplier,
			MinPollSpacing:         config.Sync.MinPollSpacing,
		},
		sr.Logger.With().Str("service", "sync").Logger(),
	)

	// Ordered service definitions with inline constructors
	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (registry.Service, error)
	}{
		{
			name:        "connectivity",
			enabled:     true,
			constructor: func() (registry.Service, error) { return connectivity, nil },
		},
		{
			name:        "sync",
			enabled:     true,
			constructor: func() (registry.Service, error) { return sr.engine, nil },
		},
		{
			name:    "heartbeat",
			enabled: config.Services.Heartbeat.Enabled,
			constructor: func() (registry.Service, error) {
				if sr.deps.MqttClient == nil {
					return nil, errors.New("heartbeat service requires an mqtt client")
				}
				logger := sr.Logger.With().Str("service", "heartbeat").Logger()
				heartbeat := services.NewHeartbeatService(
					config.Services.Heartbeat.Topic,
					config.Services.Heartbeat.RefreshTopic,
					config.Services.Heartbeat.Interval,
					config.Services.Heartbeat.QOS,
					sr.engine,
					sr.deps.MqttClient,
					logger,
				)
				heartbeat.Collectors = metrics_collectors.NewMetricsRegistryFromConfig(config.Services.Heartbeat.Metrics, logger)
				return heartbeat, nil
			},
		},
		{
			name:    "status_api",
			enabled: config.Services.StatusAPI.Enabled,
			constructor: func() (registry.Service, error) {
				handler := handlers.NewStateHandler(sr.engine, media, sr.Logger.With().Str("service", "status_api").Logger())
				return services.NewStatusAPIService(config.Services.StatusAPI.Addr, handlers.NewRouter(handler, sr.Logger),
					sr.Logger.With().Str("service", "status_api").Logger()), nil
			},
		},
	}

	// Register services in the predefined order
	registeredServices := []string{}
	for _, svc := range servicesInOrder {
		if svc.enabled {
			serviceInstance, err := svc.constructor()
			if err != nil {
				sr.Logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
				return err
			}
			sr.RegisterService(svc.name, serviceInstance)
			registeredServices = append(registeredServices, svc.name)
		}
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}

// buildMaterializer returns the configured materializer and, in prefetch
// mode, the index the state API serves media from.
func (sr *ServiceRegistry) buildMaterializer(config *utils.Config) (materializer.Materializer, handlers.MediaLocator) {
	validator := materializer.NewValidator(sr.deps.Clock, config.Materializer.ItemDelay,
		sr.Logger.With().Str("component", "materializer").Logger())

	if config.Materializer.Mode != materializer.ModePrefetch {
		return validator, nil
	}

	prefetcher := materializer.NewPrefetcher(validator, config.Materializer.MediaDir,
		&http.Client{Timeout: config.Materializer.DownloadTimeout}, sr.deps.ObjectStorage, sr.deps.FileClient,
		sr.Logger.With().Str("component", "prefetcher").Logger())
	return prefetcher, prefetcher
}
