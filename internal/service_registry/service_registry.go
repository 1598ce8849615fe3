package service_registry

import (
	"errors"
	"fmt"

	"github.com/benmeehan/geo-distance/internal/services"
	"github.com/benmeehan/geo-distance/internal/utils"
	"github.com/benmeehan/geo-distance/pkg/geo"
	"github.com/benmeehan/geo-distance/pkg/identity"
	"github.com/benmeehan/geo-distance/pkg/mqtt"
	"github.com/rs/zerolog"
)

// ServiceRegistry manages the lifecycle of the services in the process.
type ServiceRegistry struct {
	services    map[string]Service // Stores registered services
	serviceKeys []string           // Maintains order of service registration
	mqttClient  mqtt.MQTTClient
	calculator  *geo.DistanceCalculator
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes a new service registry with dependencies.
func NewServiceRegistry(mqttClient mqtt.MQTTClient, calculator *geo.DistanceCalculator, logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services:   make(map[string]Service),
		mqttClient: mqttClient,
		calculator: calculator,
		Logger:     logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// Names returns the registered service names in start order.
func (sr *ServiceRegistry) Names() []string {
	return append([]string(nil), sr.serviceKeys...)
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
			return fmt.Errorf("start %s: %w", name, err)
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

// RegisterServices builds and registers the enabled services from configuration.
// The distance service is registered first so the heartbeat can report its counters.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config, instance identity.InstanceInfoInterface) error {
	var stats services.StatsProvider

	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (Service, error)
	}{
		{
			name:    "distance",
			enabled: config.Services.Distance.Enabled,
			constructor: func() (Service, error) {
				svc := services.NewDistanceService(
					config.Services.Distance.Topic,
					config.DistanceQOS(),
					config.Services.Distance.Workers,
					config.Services.Distance.PublishTimeout,
					sr.calculator,
					sr.mqttClient,
					sr.Logger.With().Str("service", "distance").Logger(),
				)
				stats = svc
				return svc, nil
			},
		},
		{
			name:    "heartbeat",
			enabled: config.Services.Heartbeat.Enabled,
			constructor: func() (Service, error) {
				if config.Services.Heartbeat.Interval <= 0 {
					return nil, errors.New("heartbeat interval must be positive")
				}
				return services.NewHeartbeatService(
					config.Services.Heartbeat.Topic,
					config.Services.Heartbeat.Interval,
					config.Services.Heartbeat.QOS,
					instance,
					sr.mqttClient,
					stats,
					sr.Logger.With().Str("service", "heartbeat").Logger(),
				), nil
			},
		},
	}

	registeredServices := []string{}
	for _, svc := range servicesInOrder {
		if !svc.enabled {
			continue
		}
		serviceInstance, err := svc.constructor()
		if err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
			return err
		}
		sr.RegisterService(svc.name, serviceInstance)
		registeredServices = append(registeredServices, svc.name)
	}

	if len(registeredServices) == 0 {
		return errors.New("no services enabled")
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}

// ResubscribeServices restores the subscriptions of every service that holds one.
// It is called after the broker connection comes back.
func (sr *ServiceRegistry) ResubscribeServices() error {
	var errs []error
	for _, name := range sr.serviceKeys {
		r, ok := sr.services[name].(Resubscriber)
		if !ok {
			continue
		}
		if err := r.Resubscribe(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to resubscribe service: %s", name)
			errs = append(errs, fmt.Errorf("resubscribe %s: %w", name, err))
			continue
		}
		sr.Logger.Info().Msgf("Resubscribed service: %s", name)
	}
	return errors.Join(errs...)
}
