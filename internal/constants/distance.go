package constants

import "time"

const (
	DefaultDistanceTopic  = "geo/distance"
	DefaultHeartbeatTopic = "geo/distance/heartbeat"
	DefaultQOS            = 1
	DefaultWorkers        = 4
	DefaultPublishTimeout = 5 * time.Second
	DefaultHeartbeatEvery = 30 * time.Second

	// RequestSuffix is appended to the service topic to form the subscription.
	RequestSuffix = "request"
	// ResponseSuffix precedes the request ID in the default reply topic.
	ResponseSuffix = "response"
	// UnknownRequestID addresses replies to requests that could not be decoded.
	UnknownRequestID = "unknown"
)

// Error codes carried in distance error responses.
const (
	// ErrorCodeMissingInput means the source or destination was absent
	ErrorCodeMissingInput = "missing_input"
	// ErrorCodeUnknownUnit means the unit is not km, nm or blank
	ErrorCodeUnknownUnit = "unknown_unit"
	// ErrorCodeMalformedRequest means the payload was not a valid request document
	ErrorCodeMalformedRequest = "malformed_request"
	// ErrorCodeInternal means the distance could not be computed
	ErrorCodeInternal = "internal"
	// ErrorCodeBusy means every worker was busy and the request was not queued
	ErrorCodeBusy = "busy"
)

// Heartbeat statuses
const (
	StatusAlive    = "alive"
	StatusStopping = "stopping"
)
