package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/benmeehan/geo-distance/internal/constants"
	"github.com/benmeehan/geo-distance/internal/models"
	"github.com/benmeehan/geo-distance/pkg/identity"
	"github.com/benmeehan/geo-distance/pkg/mqtt"
	"github.com/rs/zerolog"
)

// HeartbeatService periodically announces that this instance is alive.
type HeartbeatService struct {
	PubTopic   string
	Interval   time.Duration
	QOS        int
	Instance   identity.InstanceInfoInterface
	MqttClient mqtt.MQTTClient
	Stats      StatsProvider // optional
	Logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHeartbeatService initializes a new HeartbeatService.
func NewHeartbeatService(pubTopic string, interval time.Duration, qos int, instance identity.InstanceInfoInterface,
	mqttClient mqtt.MQTTClient, stats StatsProvider, logger zerolog.Logger) *HeartbeatService {

	return &HeartbeatService{
		PubTopic:   pubTopic,
		Interval:   interval,
		QOS:        qos,
		Instance:   instance,
		MqttClient: mqttClient,
		Stats:      stats,
		Logger:     logger,
	}
}

// Start launches the heartbeat loop in a separate goroutine.
func (h *HeartbeatService) Start() error {
	if h.ctx != nil {
		h.Logger.Warn().Msg("HeartbeatService is already running")
		return errors.New("heartbeat service is already running")
	}
	if h.Interval <= 0 {
		return errors.New("heartbeat interval must be positive")
	}

	h.ctx, h.cancel = context.WithCancel(context.Background())

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.runHeartbeatLoop()
	}()

	h.Logger.Info().Str("topic", h.PubTopic).Dur("interval", h.Interval).Msg("HeartbeatService started successfully")
	return nil
}

// Stop ends the loop and publishes a final stopping heartbeat.
func (h *HeartbeatService) Stop() error {
	if h.ctx == nil {
		h.Logger.Warn().Msg("HeartbeatService is not running")
		return errors.New("heartbeat service is not running")
	}

	h.cancel()
	h.wg.Wait()

	h.ctx = nil
	h.cancel = nil

	if err := h.publish(constants.StatusStopping); err != nil {
		h.Logger.Warn().Err(err).Msg("Failed to publish final heartbeat")
	}

	h.Logger.Info().Msg("HeartbeatService stopped successfully")
	return nil
}

func (h *HeartbeatService) runHeartbeatLoop() {
	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := h.publish(constants.StatusAlive); err != nil {
				h.Logger.Error().Err(err).Msg("Failed to publish heartbeat message")
			} else {
				h.Logger.Debug().Msg("Heartbeat published successfully")
			}

		case <-h.ctx.Done():
			h.Logger.Info().Msg("HeartbeatService stopping gracefully")
			return
		}
	}
}

func (h *HeartbeatService) publish(status string) error {
	message := models.Heartbeat{
		InstanceID: h.Instance.GetInstanceID(),
		Timestamp:  time.Now().UTC(),
		Status:     status,
	}
	if h.Stats != nil {
		stats := h.Stats.Stats()
		message.Served = stats.Served
		message.Failed = stats.Failed
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	token := h.MqttClient.Publish(h.PubTopic, byte(h.QOS), false, payload)
	token.Wait()
	return token.Error()
}
