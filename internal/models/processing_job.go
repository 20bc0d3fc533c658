package models

import "time"

// ProcessingJob is a queued request to run one local image through a
// Smartmine service.
type ProcessingJob struct {
	ID              string    `json:"id"`
	Service         string    `json:"service" binding:"required"`
	SourcePath      string    `json:"source_path" binding:"required"`
	DestinationPath string    `json:"destination_path" binding:"required"`
	Restore         *bool     `json:"restore,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	ResultURL       string    `json:"result_url,omitempty"`
	Error           string    `json:"error,omitempty"`
}

// RestoreResolution defaults to true when the job does not say otherwise.
func (j *ProcessingJob) RestoreResolution() bool {
	return j.Restore == nil || *j.Restore
}

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)
