package smartmine

import (
	"errors"
	"fmt"

	"github.com/phambaophuc/smartmine-client/pkg/utils"
)

var (
	ErrServerUnreachable  = errors.New("smartmine API is unreachable")
	ErrLogin              = errors.New("login failed")
	ErrMissingCredentials = errors.New("username and password are required")
	ErrInvalidService     = errors.New("invalid service name")
	ErrDimensionCheck     = errors.New("image dimension check failed")
	ErrRequestToken       = errors.New("request token acquisition failed")
	ErrUpload             = errors.New("upload failed")
	ErrStartProcessing    = errors.New("processing trigger failed")
	ErrProgress           = errors.New("progress query failed")
	ErrProcessingFailed   = errors.New("remote processing failed")
	ErrTimeout            = errors.New("processing timed out")
	ErrDownload           = errors.New("download failed")
	ErrNoMatchingFiles    = errors.New("no JPEG or PNG files found")

	// ErrInvalidImage is returned when a local file cannot be decoded.
	ErrInvalidImage = utils.ErrInvalidImage
)

// StatusError carries a non-success HTTP response from the API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// RequestError annotates a failure with the request token it belongs to.
type RequestError struct {
	Op           string
	Service      ServiceName
	RequestToken string
	Err          error
}

func (e *RequestError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	if e.RequestToken != "" {
		return fmt.Sprintf("%s %s (request_token=%s): %v", e.Service, e.Op, e.RequestToken, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newRequestError(op string, service ServiceName, requestToken string, err error) error {
	if err == nil {
		return nil
	}
	return &RequestError{Op: op, Service: service, RequestToken: requestToken, Err: err}
}
