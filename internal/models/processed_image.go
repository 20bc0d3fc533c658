package models

import "time"

type ProcessedImage struct {
	ID          string    `json:"id"`
	Service     string    `json:"service"`
	Filename    string    `json:"filename"`
	URL         string    `json:"url"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	FileSize    int64     `json:"file_size"`
	ProcessedAt time.Time `json:"processed_at"`
}
