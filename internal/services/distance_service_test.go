package services_test

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benmeehan/geo-distance/internal/constants"
	"github.com/benmeehan/geo-distance/internal/mocks"
	"github.com/benmeehan/geo-distance/internal/models"
	"github.com/benmeehan/geo-distance/internal/services"
	"github.com/benmeehan/geo-distance/pkg/geo"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testTopic    = "geo/distance"
	requestTopic = "geo/distance/request"
	referenceKm  = 93.64478249224159
)

// publishRecorder captures payloads handed to the mock client's Publish.
type publishRecorder struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
}

func (r *publishRecorder) record(args mock.Arguments) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, args.String(0))
	r.payloads = append(r.payloads, args.Get(3).([]byte))
}

func (r *publishRecorder) responses(t *testing.T) []models.DistanceResponse {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.DistanceResponse, 0, len(r.payloads))
	for _, p := range r.payloads {
		var resp models.DistanceResponse
		require.NoError(t, json.Unmarshal(p, &resp))
		out = append(out, resp)
	}
	return out
}

func newService(client *mocks.MockMQTTClient) *services.DistanceService {
	return services.NewDistanceService(testTopic, 1, 2, time.Second, geo.NewDistanceCalculator(nil), client, zerolog.Nop())
}

func startedService(t *testing.T) (*services.DistanceService, *mocks.MockMQTTClient, *publishRecorder) {
	t.Helper()

	client := new(mocks.MockMQTTClient)
	rec := &publishRecorder{}

	client.On("Subscribe", requestTopic, byte(1), mock.Anything).Return(mocks.NewCompletedToken(nil))
	client.On("Unsubscribe", []string{requestTopic}).Return(mocks.NewCompletedToken(nil))
	client.On("Publish", mock.Anything, byte(1), false, mock.Anything).
		Run(rec.record).
		Return(mocks.NewCompletedToken(nil))

	s := newService(client)
	require.NoError(t, s.Start())
	return s, client, rec
}

func coords(lat, lon any) *geo.Coordinates {
	return &geo.Coordinates{Latitude: lat, Longitude: lon, Altitude: 0.0}
}

// TestDistanceService_Start_Success tests the successful start of the DistanceService.
func TestDistanceService_Start_Success(t *testing.T) {
	// Setup
	client := new(mocks.MockMQTTClient)
	client.On("Subscribe", requestTopic, byte(1), mock.Anything).Return(mocks.NewCompletedToken(nil))
	client.On("Unsubscribe", []string{requestTopic}).Return(mocks.NewCompletedToken(nil))

	s := newService(client)

	// Execute
	err := s.Start()

	// Assert
	assert.NoError(t, err)

	err = s.Start()
	assert.EqualError(t, err, "distance service is already running")

	assert.NoError(t, s.Stop())
	client.AssertExpectations(t)
}

// TestDistanceService_Start_Failure tests a failed subscription.
func TestDistanceService_Start_Failure(t *testing.T) {
	// Setup
	client := new(mocks.MockMQTTClient)
	client.On("Subscribe", requestTopic, byte(1), mock.Anything).Return(mocks.NewCompletedToken(errors.New("subscribe failed")))

	s := newService(client)

	// Execute
	err := s.Start()

	// Assert
	assert.EqualError(t, err, "subscribe failed")
	assert.EqualError(t, s.Stop(), "distance service is not running")
	client.AssertExpectations(t)
}

// TestDistanceService_Stop_Failure tests a failed unsubscribe.
func TestDistanceService_Stop_Failure(t *testing.T) {
	// Setup
	client := new(mocks.MockMQTTClient)
	client.On("Subscribe", requestTopic, byte(1), mock.Anything).Return(mocks.NewCompletedToken(nil))
	client.On("Unsubscribe", []string{requestTopic}).Return(mocks.NewCompletedToken(errors.New("unsubscribe failed")))

	s := newService(client)
	require.NoError(t, s.Start())

	// Execute
	err := s.Stop()

	// Assert
	assert.EqualError(t, err, "unsubscribe failed")
	client.AssertExpectations(t)
}

// TestDistanceService_HandleRequest_Kilometers tests a full request/reply cycle.
func TestDistanceService_HandleRequest_Kilometers(t *testing.T) {
	// Setup
	s, client, rec := startedService(t)

	payload := []byte(`{
		"request_id": "r1",
		"source": {"latitude": -33.0351516, "longitude": -70.5955963, "altitude": 0},
		"destination": {"latitude": -33.0348327, "longitude": -71.5980458, "altitude": 0},
		"unit": ""
	}`)

	// Execute
	s.HandleRequest(nil, mocks.NewMessage(requestTopic, payload))
	require.NoError(t, s.Stop())

	// Assert
	resps := rec.responses(t)
	require.Len(t, resps, 1)
	assert.Equal(t, []string{"geo/distance/response/r1"}, rec.topics)
	assert.Equal(t, "r1", resps[0].RequestID)
	assert.Equal(t, "km", resps[0].Unit)
	require.NotNil(t, resps[0].Distance)
	assert.InDelta(t, referenceKm, *resps[0].Distance, 0.5)
	assert.Empty(t, resps[0].Error)
	assert.Equal(t, services.Stats{Served: 1}, s.Stats())
	client.AssertExpectations(t)
}

// TestDistanceService_HandleRequest_ReplyTo tests that reply_to overrides the default topic.
func TestDistanceService_HandleRequest_ReplyTo(t *testing.T) {
	// Setup
	s, _, rec := startedService(t)

	payload := []byte(`{"request_id":"r2","reply_to":"clients/42/inbox",
		"source":{"latitude":10,"longitude":20},"destination":{"latitude":30,"longitude":40},"unit":"nm"}`)

	// Execute
	s.HandleRequest(nil, mocks.NewMessage(requestTopic, payload))
	require.NoError(t, s.Stop())

	// Assert
	resps := rec.responses(t)
	require.Len(t, resps, 1)
	assert.Equal(t, []string{"clients/42/inbox"}, rec.topics)
	assert.Equal(t, "nm", resps[0].Unit)
	assert.InDelta(t, 3035.7289569/1.852, *resps[0].Distance, 0.01)
}

// TestDistanceService_HandleRequest_GeneratesRequestID tests replies to requests without an id.
func TestDistanceService_HandleRequest_GeneratesRequestID(t *testing.T) {
	// Setup
	s, _, rec := startedService(t)

	payload := []byte(`{"source":{"latitude":0,"longitude":0},"destination":{"latitude":0,"longitude":1},"unit":"km"}`)

	// Execute
	s.HandleRequest(nil, mocks.NewMessage(requestTopic, payload))
	require.NoError(t, s.Stop())

	// Assert
	resps := rec.responses(t)
	require.Len(t, resps, 1)
	_, err := uuid.Parse(resps[0].RequestID)
	assert.NoError(t, err)
	assert.Equal(t, "geo/distance/response/"+resps[0].RequestID, rec.topics[0])
}

// TestDistanceService_HandleRequest_StringLatitude tests that quoted numbers are not coerced.
func TestDistanceService_HandleRequest_StringLatitude(t *testing.T) {
	// Setup
	s, _, rec := startedService(t)

	payload := []byte(`{"request_id":"r3","source":{"latitude":"34.5","longitude":40},
		"destination":{"latitude":0,"longitude":10},"unit":"km"}`)

	// Execute
	s.HandleRequest(nil, mocks.NewMessage(requestTopic, payload))
	require.NoError(t, s.Stop())

	// Assert
	resps := rec.responses(t)
	require.Len(t, resps, 1)
	require.NotNil(t, resps[0].Distance)
	assert.Equal(t, -1.0, *resps[0].Distance)
	assert.Equal(t, "invalid", resps[0].Unit)
}

// TestDistanceService_HandleRequest_MalformedPayload tests handling of an invalid payload.
func TestDistanceService_HandleRequest_MalformedPayload(t *testing.T) {
	// Setup
	s, _, rec := startedService(t)

	// Execute
	s.HandleRequest(nil, mocks.NewMessage(requestTopic, []byte("invalid-json")))
	require.NoError(t, s.Stop())

	// Assert
	resps := rec.responses(t)
	require.Len(t, resps, 1)
	assert.Equal(t, []string{"geo/distance/response/unknown"}, rec.topics)
	assert.Equal(t, constants.ErrorCodeMalformedRequest, resps[0].Code)
	assert.Nil(t, resps[0].Distance)
	assert.Equal(t, services.Stats{Failed: 1}, s.Stats())
}

// TestDistanceService_HandleRequest_NotRunning tests that requests are ignored before Start.
func TestDistanceService_HandleRequest_NotRunning(t *testing.T) {
	// Setup
	client := new(mocks.MockMQTTClient)
	s := newService(client)

	// Execute
	s.HandleRequest(nil, mocks.NewMessage(requestTopic, []byte(`{}`)))

	// Assert
	client.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestDistanceService_Process_InvalidRange tests the sentinel reply for out-of-range coordinates.
func TestDistanceService_Process_InvalidRange(t *testing.T) {
	s := newService(new(mocks.MockMQTTClient))

	tests := []struct {
		name     string
		src, dst *geo.Coordinates
	}{
		{"source latitude", coords(-100.0, 10.0), coords(0.0, 10.0)},
		{"destination longitude", coords(0.0, 10.0), coords(0.0, 999.0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.Process(models.DistanceRequest{RequestID: "x", Source: tt.src, Destination: tt.dst, Unit: "km"})

			require.NotNil(t, resp.Distance)
			assert.Equal(t, -1.0, *resp.Distance)
			assert.Equal(t, "invalid", resp.Unit)
			assert.Empty(t, resp.Code)
		})
	}
}

// TestDistanceService_Process_Errors tests the replies for propagated errors.
func TestDistanceService_Process_Errors(t *testing.T) {
	s := newService(new(mocks.MockMQTTClient))

	tests := []struct {
		name string
		req  models.DistanceRequest
		code string
	}{
		{"missing destination", models.DistanceRequest{Source: coords(0.0, 0.0), Unit: "km"}, constants.ErrorCodeMissingInput},
		{"missing source", models.DistanceRequest{Destination: coords(0.0, 0.0), Unit: "km"}, constants.ErrorCodeMissingInput},
		{"unknown unit", models.DistanceRequest{Source: coords(10.0, 20.0), Destination: coords(30.0, 40.0), Unit: "lightyears"}, constants.ErrorCodeUnknownUnit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.Process(tt.req)

			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Error)
			assert.Nil(t, resp.Distance)
		})
	}
	assert.Equal(t, services.Stats{Failed: 3}, s.Stats())
}

// TestDistanceService_PublishResponse_Timeout tests a publish that never completes.
func TestDistanceService_PublishResponse_Timeout(t *testing.T) {
	// Setup
	client := new(mocks.MockMQTTClient)
	client.On("Publish", "geo/distance/response/r9", byte(1), false, mock.Anything).Return(mocks.NewPendingToken())

	s := newService(client)

	// Execute
	err := s.PublishResponse(s.ResponseTopic("r9"), models.DistanceResponse{RequestID: "r9"})

	// Assert
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "timed out"))
	client.AssertExpectations(t)
}

// TestDistanceService_PublishResponse_Failure tests a publish error.
func TestDistanceService_PublishResponse_Failure(t *testing.T) {
	// Setup
	client := new(mocks.MockMQTTClient)
	client.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(mocks.NewCompletedToken(errors.New("publish failed")))

	s := newService(client)

	// Execute
	err := s.PublishResponse("somewhere", models.DistanceResponse{RequestID: "r9"})

	// Assert
	assert.EqualError(t, err, "publish failed")
}

// gatedPublisher records publishes and holds the one addressed to blockTopic until
// release is closed.
type gatedPublisher struct {
	publishRecorder
	blockTopic string
	entered    chan struct{}
	release    chan struct{}
	once       sync.Once
}

func (g *gatedPublisher) record(args mock.Arguments) {
	g.publishRecorder.record(args)
	if args.String(0) == g.blockTopic {
		g.once.Do(func() { close(g.entered) })
		<-g.release
	}
}

func (g *gatedPublisher) topicCounts() map[string]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	counts := make(map[string]int)
	for _, topic := range g.topics {
		counts[topic]++
	}
	return counts
}

func gatedService(t *testing.T, workers int, blockRequestID string) (*services.DistanceService, *gatedPublisher, <-chan struct{}) {
	t.Helper()

	client := new(mocks.MockMQTTClient)
	g := &gatedPublisher{
		blockTopic: "geo/distance/response/" + blockRequestID,
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	unsubscribed := make(chan struct{})

	client.On("Subscribe", requestTopic, byte(1), mock.Anything).Return(mocks.NewCompletedToken(nil))
	client.On("Unsubscribe", []string{requestTopic}).
		Run(func(mock.Arguments) { close(unsubscribed) }).
		Return(mocks.NewCompletedToken(nil))
	client.On("Publish", mock.Anything, byte(1), false, mock.Anything).
		Run(g.record).
		Return(mocks.NewCompletedToken(nil))

	s := services.NewDistanceService(testTopic, 1, workers, time.Second, geo.NewDistanceCalculator(nil), client, zerolog.Nop())
	require.NoError(t, s.Start())
	return s, g, unsubscribed
}

func requestPayload(id string) []byte {
	return []byte(`{"request_id":"` + id + `","source":{"latitude":0,"longitude":0},` +
		`"destination":{"latitude":0,"longitude":1},"unit":"km"}`)
}

// TestDistanceService_HandleRequest_DuplicateInFlight tests that a redelivered request is answered once.
func TestDistanceService_HandleRequest_DuplicateInFlight(t *testing.T) {
	// Setup
	s, g, _ := gatedService(t, 2, "dup")

	// Execute
	s.HandleRequest(nil, mocks.NewMessage(requestTopic, requestPayload("dup")))
	<-g.entered
	s.HandleRequest(nil, mocks.NewMessage(requestTopic, requestPayload("dup")))
	s.HandleRequest(nil, mocks.NewMessage(requestTopic, requestPayload("other")))

	close(g.release)
	require.NoError(t, s.Stop())

	// Assert
	assert.Equal(t, map[string]int{
		"geo/distance/response/dup":   1,
		"geo/distance/response/other": 1,
	}, g.topicCounts())
	assert.Equal(t, services.Stats{Served: 2}, s.Stats())
}

// TestDistanceService_Stop_DropsRequestsWhileDraining tests that Stop answers queued work
// and ignores requests that arrive after it begins.
func TestDistanceService_Stop_DropsRequestsWhileDraining(t *testing.T) {
	// Setup
	s, g, unsubscribed := gatedService(t, 1, "a")

	s.HandleRequest(nil, mocks.NewMessage(requestTopic, requestPayload("a")))
	<-g.entered

	// Execute
	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop() }()
	<-unsubscribed

	s.HandleRequest(nil, mocks.NewMessage(requestTopic, requestPayload("b")))

	select {
	case <-stopped:
		t.Fatal("Stop returned before the in-flight request was answered")
	default:
	}

	close(g.release)

	// Assert
	require.NoError(t, <-stopped)
	assert.Equal(t, map[string]int{"geo/distance/response/a": 1}, g.topicCounts())
	assert.Equal(t, services.Stats{Served: 1}, s.Stats())
}

// TestDistanceService_HandleRequest_Busy tests the reply when the worker queue is full.
func TestDistanceService_HandleRequest_Busy(t *testing.T) {
	// Setup
	s, g, _ := gatedService(t, 1, "r1")

	// Execute
	s.HandleRequest(nil, mocks.NewMessage(requestTopic, requestPayload("r1")))
	<-g.entered
	s.HandleRequest(nil, mocks.NewMessage(requestTopic, requestPayload("r2")))
	s.HandleRequest(nil, mocks.NewMessage(requestTopic, requestPayload("r3")))

	close(g.release)
	require.NoError(t, s.Stop())

	// Assert
	byID := make(map[string]models.DistanceResponse)
	for _, resp := range g.responses(t) {
		byID[resp.RequestID] = resp
	}
	require.Len(t, byID, 3)
	assert.Equal(t, constants.ErrorCodeBusy, byID["r3"].Code)
	assert.Nil(t, byID["r3"].Distance)
	assert.NotNil(t, byID["r1"].Distance)
	assert.NotNil(t, byID["r2"].Distance)
	assert.Equal(t, services.Stats{Served: 2, Failed: 1}, s.Stats())
}

// TestDistanceService_Resubscribe tests restoring the subscription after a reconnect.
func TestDistanceService_Resubscribe(t *testing.T) {
	// Setup
	s, client, _ := startedService(t)

	// Execute
	err := s.Resubscribe()

	// Assert
	assert.NoError(t, err)
	client.AssertNumberOfCalls(t, "Subscribe", 2)

	require.NoError(t, s.Stop())
	assert.NoError(t, s.Resubscribe())
	client.AssertNumberOfCalls(t, "Subscribe", 2)
}

// TestDistanceService_Resubscribe_Failure tests a rejected resubscription.
func TestDistanceService_Resubscribe_Failure(t *testing.T) {
	// Setup
	client := new(mocks.MockMQTTClient)
	client.On("Subscribe", requestTopic, byte(1), mock.Anything).Return(mocks.NewCompletedToken(nil)).Once()
	client.On("Subscribe", requestTopic, byte(1), mock.Anything).Return(mocks.NewCompletedToken(errors.New("not authorized"))).Once()
	client.On("Unsubscribe", []string{requestTopic}).Return(mocks.NewCompletedToken(nil))

	s := newService(client)
	require.NoError(t, s.Start())

	// Execute
	err := s.Resubscribe()

	// Assert
	assert.EqualError(t, err, "not authorized")
	require.NoError(t, s.Stop())
	client.AssertExpectations(t)
}
