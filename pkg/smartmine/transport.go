package smartmine

import (
	"context"
	"io"
)

// Transport performs the remote calls a processing session needs.
// Implementations tag failures with the matching sentinel error
// (ErrLogin, ErrUpload, ...) so callers can tell them apart.
type Transport interface {
	HealthCheck(ctx context.Context) error
	Login(ctx context.Context, creds Credentials) (string, error)
	// CheckDimensions returns nil when the image already satisfies the
	// service's input constraint, or the size it must be reduced to.
	CheckDimensions(ctx context.Context, bearer string, service ServiceName, size Dimensions) (*Dimensions, error)
	RequestToken(ctx context.Context, bearer string, service ServiceName) (string, error)
	Upload(ctx context.Context, bearer, requestToken, filename string, r io.Reader) error
	StartProcessing(ctx context.Context, bearer, requestToken string) error
	Progress(ctx context.Context, bearer, requestToken string) (ProcessingStatus, error)
	Download(ctx context.Context, bearer, requestToken string) ([]byte, error)
}
