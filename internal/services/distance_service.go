package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benmeehan/geo-distance/internal/constants"
	"github.com/benmeehan/geo-distance/internal/models"
	"github.com/benmeehan/geo-distance/internal/utils"
	"github.com/benmeehan/geo-distance/pkg/geo"
	"github.com/benmeehan/geo-distance/pkg/mqtt"
	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
)

// Stats counts handled requests. Sentinel results count as served.
type Stats struct {
	Served uint64
	Failed uint64
}

// StatsProvider exposes request counters to the heartbeat.
type StatsProvider interface {
	Stats() Stats
}

// DistanceService answers distance requests received over MQTT.
// Requests arrive on <topic>/request and replies go to the request's reply_to
// topic, or <topic>/response/<request_id> when none is given.
type DistanceService struct {
	// Configuration fields
	topic          string
	qos            int
	workers        int
	publishTimeout time.Duration

	// Dependencies
	calculator *geo.DistanceCalculator
	mqttClient mqtt.MQTTClient
	logger     zerolog.Logger

	// Internal state management
	mu       sync.Mutex
	running  bool
	pool     *utils.WorkerPool
	inFlight cmap.ConcurrentMap[string, time.Time]
	served   atomic.Uint64
	failed   atomic.Uint64
}

// NewDistanceService initializes a new DistanceService with given parameters.
func NewDistanceService(topic string, qos, workers int, publishTimeout time.Duration, calculator *geo.DistanceCalculator,
	mqttClient mqtt.MQTTClient, logger zerolog.Logger) *DistanceService {
	if topic == "" {
		topic = constants.DefaultDistanceTopic
	}
	if workers < 1 {
		workers = constants.DefaultWorkers
	}
	if publishTimeout <= 0 {
		publishTimeout = constants.DefaultPublishTimeout
	}
	if calculator == nil {
		calculator = geo.NewDistanceCalculator(nil)
	}

	return &DistanceService{
		topic:          topic,
		qos:            qos,
		workers:        workers,
		publishTimeout: publishTimeout,
		calculator:     calculator,
		mqttClient:     mqttClient,
		logger:         logger,
		inFlight:       cmap.New[time.Time](),
	}
}

// RequestTopic is the topic the service subscribes to.
func (s *DistanceService) RequestTopic() string {
	return s.topic + "/" + constants.RequestSuffix
}

// ResponseTopic is the default reply topic for requestID.
func (s *DistanceService) ResponseTopic(requestID string) string {
	return fmt.Sprintf("%s/%s/%s", s.topic, constants.ResponseSuffix, requestID)
}

// Start subscribes to the request topic and begins serving.
func (s *DistanceService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn().Msg("DistanceService is already running")
		return errors.New("distance service is already running")
	}

	s.pool = utils.NewWorkerPool(s.workers)

	topic := s.RequestTopic()
	token := s.mqttClient.Subscribe(topic, byte(s.qos), s.HandleRequest)
	token.Wait()
	if err := token.Error(); err != nil {
		s.pool.Shutdown()
		s.pool = nil
		s.logger.Error().Err(err).Str("topic", topic).Msg("Failed to subscribe to MQTT topic")
		return err
	}

	s.running = true
	s.logger.Info().
		Str("topic", topic).
		Int("qos", s.qos).
		Int("workers", s.workers).
		Msg("DistanceService started")
	return nil
}

// Stop unsubscribes and waits for in-flight requests to be answered.
func (s *DistanceService) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.logger.Warn().Msg("DistanceService is not running")
		return errors.New("distance service is not running")
	}
	s.running = false
	pool := s.pool
	s.mu.Unlock()

	topic := s.RequestTopic()
	token := s.mqttClient.Unsubscribe(topic)
	token.Wait()
	unsubErr := token.Error()
	if unsubErr != nil {
		s.logger.Error().Err(unsubErr).Str("topic", topic).Msg("Failed to unsubscribe from MQTT topic")
	}

	pool.Shutdown()

	if unsubErr != nil {
		return unsubErr
	}
	s.logger.Info().Msg("DistanceService stopped successfully")
	return nil
}

// Resubscribe subscribes to the request topic again, for use after the broker
// connection has been re-established. It does nothing when the service is stopped.
func (s *DistanceService) Resubscribe() error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	if !running {
		return nil
	}

	topic := s.RequestTopic()
	token := s.mqttClient.Subscribe(topic, byte(s.qos), s.HandleRequest)
	token.Wait()
	if err := token.Error(); err != nil {
		s.logger.Error().Err(err).Str("topic", topic).Msg("Failed to resubscribe to MQTT topic")
		return err
	}

	s.logger.Info().Str("topic", topic).Msg("DistanceService resubscribed")
	return nil
}

// Stats returns the request counters.
func (s *DistanceService) Stats() Stats {
	return Stats{Served: s.served.Load(), Failed: s.failed.Load()}
}

// HandleRequest decodes an incoming request and queues it for computation.
func (s *DistanceService) HandleRequest(client MQTT.Client, msg MQTT.Message) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.logger.Warn().Msg("Received distance request but service is not running, ignoring")
		return
	}
	pool := s.pool
	s.mu.Unlock()

	req, err := decodeRequest(msg.Payload())
	if err != nil {
		s.failed.Add(1)
		s.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("Malformed distance request")
		resp := models.NewErrorResponse(constants.UnknownRequestID, constants.ErrorCodeMalformedRequest, err)
		if err := s.PublishResponse(s.ResponseTopic(constants.UnknownRequestID), resp); err != nil {
			s.logger.Error().Err(err).Msg("Failed to publish malformed request response")
		}
		return
	}

	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	// QoS 1 may redeliver; drop copies of a request that is still being answered.
	if !s.inFlight.SetIfAbsent(req.RequestID, time.Now()) {
		s.logger.Warn().Str("request_id", req.RequestID).Msg("Duplicate distance request ignored")
		return
	}

	err = pool.TrySubmit(func() {
		defer s.inFlight.Remove(req.RequestID)
		s.serve(req)
	})
	switch {
	case err == nil:
	case errors.Is(err, utils.ErrPoolBusy):
		s.inFlight.Remove(req.RequestID)
		s.failed.Add(1)
		s.logger.Warn().Str("request_id", req.RequestID).Msg("Workers busy, distance request rejected")
		s.reply(req, models.NewErrorResponse(req.RequestID, constants.ErrorCodeBusy, err))
	default:
		s.inFlight.Remove(req.RequestID)
		s.logger.Warn().Err(err).Str("request_id", req.RequestID).Msg("Service stopping, distance request dropped")
	}
}

func (s *DistanceService) serve(req models.DistanceRequest) {
	s.reply(req, s.Process(req))
}

func (s *DistanceService) reply(req models.DistanceRequest, resp models.DistanceResponse) {
	topic := req.ReplyTo
	if topic == "" {
		topic = s.ResponseTopic(req.RequestID)
	}

	if err := s.PublishResponse(topic, resp); err != nil {
		s.logger.Error().Err(err).Str("request_id", req.RequestID).Msg("Failed to publish distance response")
	}
}

// Process runs the calculation for req and builds the reply.
func (s *DistanceService) Process(req models.DistanceRequest) models.DistanceResponse {
	log := s.logger.With().Str("request_id", req.RequestID).Logger()

	result, err := s.calculator.Compute(req.Source, req.Destination, req.Unit)
	if err != nil {
		s.failed.Add(1)

		code := constants.ErrorCodeInternal
		switch {
		case errors.Is(err, geo.ErrMissingInput):
			code = constants.ErrorCodeMissingInput
		case errors.Is(err, geo.ErrUnknownUnit):
			code = constants.ErrorCodeUnknownUnit
		}

		log.Warn().Err(err).Str("code", code).Msg("Distance request rejected")
		return models.NewErrorResponse(req.RequestID, code, err)
	}

	s.served.Add(1)
	if result.IsInvalid() {
		log.Info().Msg("Distance request had invalid coordinates")
	} else {
		log.Debug().
			Float64("distance", result.Distance).
			Str("unit", result.Unit).
			Msg("Distance computed")
	}
	return models.NewDistanceResponse(req.RequestID, result)
}

// PublishResponse serializes resp and publishes it, waiting at most the publish timeout.
func (s *DistanceService) PublishResponse(topic string, resp models.DistanceResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to serialize distance response: %w", err)
	}

	token := s.mqttClient.Publish(topic, byte(s.qos), false, payload)
	if !token.WaitTimeout(s.publishTimeout) {
		return fmt.Errorf("timed out publishing to %s after %s", topic, s.publishTimeout)
	}
	if err := token.Error(); err != nil {
		return err
	}

	s.logger.Debug().Str("topic", topic).Msg("Distance response published")
	return nil
}

// decodeRequest keeps numbers as json.Number so that coordinate types survive decoding.
func decodeRequest(payload []byte) (models.DistanceRequest, error) {
	var req models.DistanceRequest

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return models.DistanceRequest{}, fmt.Errorf("invalid json body: %w", err)
	}
	if dec.More() {
		return models.DistanceRequest{}, errors.New("body must contain only one JSON object")
	}
	return req, nil
}
