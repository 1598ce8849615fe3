package models

import "github.com/benmeehan/geo-distance/pkg/geo"

// DistanceRequest is the message a client publishes to ask for a distance.
type DistanceRequest struct {
	RequestID   string           `json:"request_id,omitempty"` // Correlates the reply; generated when empty.
	ReplyTo     string           `json:"reply_to,omitempty"`   // Topic for the reply; defaults to <topic>/response/<request_id>.
	Source      *geo.Coordinates `json:"source"`
	Destination *geo.Coordinates `json:"destination"`
	Unit        string           `json:"unit"` // "km", "nm" or blank for km.
}

// DistanceResponse is published back for every request. Either Error is set, or
// Distance and Unit are. A distance of -1 with unit "invalid" flags bad coordinates.
type DistanceResponse struct {
	RequestID string   `json:"request_id"`
	Distance  *float64 `json:"distance,omitempty"`
	Unit      string   `json:"unit,omitempty"`
	Error     string   `json:"error,omitempty"`
	Code      string   `json:"code,omitempty"`
}

// NewDistanceResponse wraps a computed result.
func NewDistanceResponse(requestID string, result geo.DistanceResult) DistanceResponse {
	d := result.Distance
	return DistanceResponse{RequestID: requestID, Distance: &d, Unit: result.Unit}
}

// NewErrorResponse builds a failure reply.
func NewErrorResponse(requestID, code string, err error) DistanceResponse {
	return DistanceResponse{RequestID: requestID, Error: err.Error(), Code: code}
}
