package smartmine

import (
	"fmt"
	"strings"
)

// Credentials authenticate a session against the API.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" || strings.TrimSpace(c.Password) == "" {
		return ErrMissingCredentials
	}
	return nil
}

// Dimensions is an image size in pixels.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (d Dimensions) Valid() bool {
	return d.Width > 0 && d.Height > 0
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// ProcessingStatus is the state of a remote request as reported by the API.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusInProgress ProcessingStatus = "in_progress"
	StatusComplete   ProcessingStatus = "complete"
	StatusFailed     ProcessingStatus = "failed"
)

func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}
