package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/benmeehan/geo-distance/internal/service_registry"
	"github.com/benmeehan/geo-distance/internal/utils"
	"github.com/benmeehan/geo-distance/pkg/file"
	"github.com/benmeehan/geo-distance/pkg/geo"
	"github.com/benmeehan/geo-distance/pkg/identity"
	"github.com/benmeehan/geo-distance/pkg/mqtt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
	flag.Parse()

	bootLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Initialize file operations handler
	fileClient := file.NewFileService()

	// Load configuration from file
	config, err := utils.LoadConfig(*configPath, fileClient)
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger, err := utils.NewLogger(config.Logging.Level, config.Logging.Format, os.Stdout)
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("Failed to build logger")
	}

	// Load or create the instance identity
	instanceInfo := identity.NewInstanceInfo(config.Identity.InstanceFile, fileClient)
	if err := instanceInfo.LoadInstanceInfo(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to load instance information")
	}
	logger = logger.With().Str("instance_id", instanceInfo.GetInstanceID()).Logger()

	// Generate a unique MQTT Client ID by appending a UUID
	config.MQTT.ClientID = config.MQTT.ClientID + "-" + uuid.New().String()
	logger.Info().Str("client_id", config.MQTT.ClientID).Msg("Using MQTT client ID")

	// Initialize the shared MQTT connection
	mqttClient := mqtt.NewMqttService(fileClient)
	err = mqttClient.Initialize(mqtt.Options{
		Broker:        config.MQTT.Broker,
		ClientID:      config.MQTT.ClientID,
		CACertificate: config.MQTT.CACertificate,
		Username:      config.MQTT.Username,
		Password:      config.MQTT.Password,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize MQTT connection")
	}

	serviceRegistry := service_registry.NewServiceRegistry(mqttClient, geo.NewDistanceCalculator(nil), logger)

	if err := serviceRegistry.RegisterServices(config, instanceInfo); err != nil {
		mqttClient.Disconnect(250)
		logger.Fatal().Err(err).Msg("Failed to register services")
	}

	if err := serviceRegistry.StartServices(); err != nil {
		mqttClient.Disconnect(250)
		logger.Fatal().Err(err).Msg("Failed to start services")
	}

	// Subscriptions do not survive a clean-session reconnect.
	mqttClient.OnReconnect(func() {
		logger.Warn().Msg("MQTT connection restored, resubscribing services")
		if err := serviceRegistry.ResubscribeServices(); err != nil {
			logger.Error().Err(err).Msg("Failed to restore subscriptions")
		}
	})
	logger.Info().Strs("services", serviceRegistry.Names()).Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	logger.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		logger.Error().Err(err).Msg("Errors while stopping services")
	}
	mqttClient.Disconnect(250)
}
