package smartmine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval    = time.Second
	DefaultMaxPollAttempts = 3600
)

// Sleeper pauses between progress polls. It returns early with ctx.Err()
// when ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BatchPolicy controls what a batch does after a file fails.
type BatchPolicy int

const (
	AbortOnError BatchPolicy = iota
	ContinueOnError
)

func (p BatchPolicy) String() string {
	if p == ContinueOnError {
		return "continue"
	}
	return "abort"
}

func ParseBatchPolicy(value string) (BatchPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "abort":
		return AbortOnError, nil
	case "continue":
		return ContinueOnError, nil
	default:
		return AbortOnError, fmt.Errorf("unknown batch policy %q", value)
	}
}

// Client drives image submissions against a Transport. It holds no
// session state; every unit of work logs in through its own Session.
type Client struct {
	transport         Transport
	policy            *DimensionPolicy
	resizer           ImageResizer
	logger            *zap.Logger
	pollInterval      time.Duration
	maxPollAttempts   int
	sleep             Sleeper
	restoreResolution bool
	upscaleService    ServiceName
	tempDir           string
	batchPolicy       BatchPolicy
	progress          func(BatchProgress)
	homeDir           func() (string, error)
}

type Option func(*Client)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithMaxPollAttempts bounds how many progress queries a request gets
// before it fails with ErrTimeout.
func WithMaxPollAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxPollAttempts = n
		}
	}
}

func WithSleeper(sleep Sleeper) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

func WithResizer(resizer ImageResizer) Option {
	return func(c *Client) {
		if resizer != nil {
			c.resizer = resizer
		}
	}
}

// WithRestoreResolution toggles the upscale pass that brings a
// downsampled result back to the source resolution. Enabled by default.
func WithRestoreResolution(enabled bool) Option {
	return func(c *Client) { c.restoreResolution = enabled }
}

func WithUpscaleService(service ServiceName) Option {
	return func(c *Client) {
		if service.Valid() {
			c.upscaleService = service
		}
	}
}

// WithTempDir sets where intermediate files go. Empty means os.TempDir.
func WithTempDir(dir string) Option {
	return func(c *Client) { c.tempDir = dir }
}

func WithBatchPolicy(policy BatchPolicy) Option {
	return func(c *Client) { c.batchPolicy = policy }
}

func WithProgress(fn func(BatchProgress)) Option {
	return func(c *Client) { c.progress = fn }
}

func withHomeDir(fn func() (string, error)) Option {
	return func(c *Client) { c.homeDir = fn }
}

func NewClient(transport Transport, opts ...Option) *Client {
	c := &Client{
		transport:         transport,
		resizer:           NewImagingResizer(),
		logger:            zap.NewNop(),
		pollInterval:      DefaultPollInterval,
		maxPollAttempts:   DefaultMaxPollAttempts,
		sleep:             sleepContext,
		restoreResolution: true,
		upscaleService:    ServiceImageSuperResolution,
		batchPolicy:       AbortOnError,
		homeDir:           os.UserHomeDir,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("smartmine")
	c.policy = NewDimensionPolicy(transport, c.logger)
	return c
}

// HealthCheck reports ErrServerUnreachable when the API does not answer.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.transport.HealthCheck(ctx); err != nil {
		if errors.Is(err, ErrServerUnreachable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrServerUnreachable, err)
	}
	return nil
}

// Login validates creds, checks the API is reachable and opens a Session.
// Invalid credentials fail before any remote call.
func (c *Client) Login(ctx context.Context, creds Credentials) (*Session, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if err := c.HealthCheck(ctx); err != nil {
		return nil, err
	}

	bearer, err := c.transport.Login(ctx, creds)
	if err != nil {
		c.logger.Error("Login failed", zap.String("username", creds.Username), zap.Error(err))
		return nil, err
	}
	if bearer == "" {
		return nil, fmt.Errorf("%w: empty bearer token", ErrLogin)
	}

	id := uuid.NewString()
	c.logger.Info("Session opened", zap.String("session_id", id), zap.String("username", creds.Username))
	return &Session{
		client: c,
		bearer: bearer,
		id:     id,
		logger: c.logger.With(zap.String("session_id", id)),
	}, nil
}

// ProcessImage processes one image with a fresh session. An empty dst
// saves to the user's Downloads folder under the source file name.
func (c *Client) ProcessImage(ctx context.Context, creds Credentials, service ServiceName, src, dst string) error {
	return c.ProcessImageNamed(ctx, creds, service, src, dst, "")
}

// ProcessImageNamed processes src under a caller-chosen upload name, for
// sources spooled to scratch files.
func (c *Client) ProcessImageNamed(ctx context.Context, creds Credentials, service ServiceName, src, dst, name string) error {
	if !service.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidService, service)
	}

	session, err := c.Login(ctx, creds)
	if err != nil {
		return err
	}
	return session.ProcessImageNamed(ctx, service, src, dst, name)
}

// BulkProcessImages processes every JPEG/PNG in srcDir with one session.
// Files are listed before any network activity.
func (c *Client) BulkProcessImages(ctx context.Context, creds Credentials, service ServiceName, srcDir, dstDir string) (*BatchReport, error) {
	if !service.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidService, service)
	}

	files, err := ListImageFiles(srcDir)
	if err != nil {
		return nil, err
	}

	session, err := c.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	return session.processFiles(ctx, service, files, dstDir)
}
