package models

import "time"

// Heartbeat is the periodic liveness message of a distance service instance.
type Heartbeat struct {
	InstanceID string    `json:"instance_id"`
	Timestamp  time.Time `json:"timestamp"`
	Status     string    `json:"status"`
	Served     uint64    `json:"served"`
	Failed     uint64    `json:"failed"`
}
