package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benmeehan/signage-agent/internal/models"
	"github.com/benmeehan/signage-agent/internal/service_registry"
	"github.com/benmeehan/signage-agent/internal/utils"
	"github.com/benmeehan/signage-agent/pkg/file"
	"github.com/benmeehan/signage-agent/pkg/identity"
	"github.com/benmeehan/signage-agent/pkg/kvstore"
	"github.com/benmeehan/signage-agent/pkg/mqtt"
	"github.com/benmeehan/signage-agent/pkg/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "configs/config.yaml", "path to the configuration file")
	pflag.Parse()

	bootLog := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := run(*configPath); err != nil {
		if errors.Is(err, models.ErrBootstrap) {
			bootLog.Fatal().Err(err).Msg("Device could not be initialized")
		}
		bootLog.Fatal().Err(err).Msg("Agent exited with error")
	}
}

func run(configPath string) error {
	// Initialize file operations handler
	fileClient := file.NewFileService()

	// Load configuration from file
	config, err := utils.LoadConfig(configPath, fileClient)
	if err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}

	log, err := utils.NewLogger(config.Log)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	store, err := kvstore.Open(config.Storage.Driver, config.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", config.Storage.Driver, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	deps := service_registry.Dependencies{
		DeviceInfo: identity.NewDeviceInfo(store),
		Store:      store,
		FileClient: fileClient,
	}

	if config.Materializer.ObjectStorage.Enabled {
		objectStorage := s3.NewObjectStorage(fileClient)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = objectStorage.Connect(ctx, config.Materializer.ObjectStorage.Endpoint,
			config.Materializer.ObjectStorage.AccessKeyID, config.Materializer.ObjectStorage.SecretAccessKey,
			config.Materializer.ObjectStorage.UseSSL)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to object storage: %w", err)
		}
		deps.ObjectStorage = objectStorage
	}

	if config.MQTT.Enabled {
		// Generate a unique MQTT Client ID by appending a UUID
		clientID := config.MQTT.ClientID + "-" + uuid.New().String()
		log.Info().Str("client_id", clientID).Msg("Using MQTT Client ID")

		// Initialize the shared MQTT connection
		mqttClient := mqtt.NewMqttService(fileClient)
		err = mqttClient.Initialize(mqtt.Options{
			Broker:             config.MQTT.Broker,
			ClientID:           clientID,
			Username:           config.MQTT.Username,
			Password:           config.MQTT.Password,
			CACertPath:         config.MQTT.CACertificate,
			InsecureSkipVerify: config.MQTT.InsecureSkipVerify,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize MQTT connection: %w", err)
		}
		defer mqttClient.Disconnect(250)
		deps.MqttClient = mqttClient
	}

	// Create a new service registry to manage services
	serviceRegistry := service_registry.NewServiceRegistry(deps, log)

	// Register all services based on the configuration
	if err := serviceRegistry.RegisterServices(config); err != nil {
		return fmt.Errorf("failed to register services: %w", err)
	}

	// Start all registered services in the registry
	if err := serviceRegistry.StartServices(); err != nil {
		return err
	}
	log.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		log.Error().Err(err).Msg("Some services failed to stop")
	}
	return nil
}
