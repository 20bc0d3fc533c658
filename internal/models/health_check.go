package models

import "time"

// QueueStats is a snapshot of the job queue backlog.
type QueueStats struct {
	Name      string `json:"name"`
	Messages  int    `json:"messages"`
	Consumers int    `json:"consumers"`
}

// HealthCheck is the gateway health report. Queue is set only while the
// job queue is connected.
type HealthCheck struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Queue     *QueueStats       `json:"queue,omitempty"`
}
