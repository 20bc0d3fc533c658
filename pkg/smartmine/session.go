package smartmine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/phambaophuc/smartmine-client/pkg/utils"
)

// Session is an authenticated unit of work. The bearer token is never
// shared through package state, so sessions are independent values.
type Session struct {
	client *Client
	bearer string
	id     string
	logger *zap.Logger
}

func (s *Session) ID() string { return s.id }

// ProcessImage runs one image through service and writes the result to
// dst. Images the service cannot accept at their size are downsampled
// first; with resolution restore enabled the result is then upscaled and
// resized back to the source dimensions.
func (s *Session) ProcessImage(ctx context.Context, service ServiceName, src, dst string) error {
	return s.ProcessImageNamed(ctx, service, src, dst, "")
}

// ProcessImageNamed is ProcessImage with the file name reported to the
// service set to name. An empty name uses the base name of src.
func (s *Session) ProcessImageNamed(ctx context.Context, service ServiceName, src, dst, name string) error {
	if !service.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidService, service)
	}

	dst, err := s.client.resolveDestination(src, dst)
	if err != nil {
		return err
	}
	return s.processImage(ctx, service, src, dst, uploadName(src, name))
}

func uploadName(src, name string) string {
	if name != "" {
		if base := filepath.Base(name); base != "." && base != string(filepath.Separator) {
			return base
		}
	}
	return filepath.Base(src)
}

func (s *Session) processImage(ctx context.Context, service ServiceName, src, dst, name string) error {
	c := s.client
	log := s.logger.With(zap.String("service", service.String()), zap.String("source", src))

	original, err := c.resizer.Dimensions(src)
	if err != nil {
		return err
	}

	input, releaseInput, err := s.downsampleIfRequired(ctx, service, src, original)
	if err != nil {
		return err
	}
	defer releaseInput()

	if input == "" || !c.restoreResolution || service == c.upscaleService {
		if input == "" {
			input = src
		}
		if err := s.submit(ctx, service, input, name, dst); err != nil {
			return err
		}
		log.Info("Image processed", zap.String("destination", dst))
		return nil
	}

	serviceResult, releaseResult, err := utils.CreateScratchFile(c.tempDir, src)
	if err != nil {
		return err
	}
	defer releaseResult()

	if err := s.submit(ctx, service, input, name, serviceResult); err != nil {
		return err
	}

	resultSize, err := c.resizer.Dimensions(serviceResult)
	if err != nil {
		return err
	}
	upscaleInput, releaseUpscaleInput, err := s.downsampleIfRequired(ctx, c.upscaleService, serviceResult, resultSize)
	if err != nil {
		return err
	}
	defer releaseUpscaleInput()
	if upscaleInput == "" {
		upscaleInput = serviceResult
	}

	upscaled, releaseUpscaled, err := utils.CreateScratchFile(c.tempDir, src)
	if err != nil {
		return err
	}
	defer releaseUpscaled()

	if err := s.submit(ctx, c.upscaleService, upscaleInput, name, upscaled); err != nil {
		return err
	}

	if _, err := c.resizer.Resize(upscaled, original, dst, c.tempDir); err != nil {
		return err
	}

	log.Info("Image processed with resolution restore",
		zap.String("destination", dst),
		zap.Stringer("size", original))
	return nil
}

// downsampleIfRequired returns "" when path already fits service, or a
// temporary resized copy together with the func that deletes it.
func (s *Session) downsampleIfRequired(ctx context.Context, service ServiceName, path string, size Dimensions) (string, func(), error) {
	noop := func() {}

	target, err := s.client.policy.Target(ctx, s.bearer, service, size)
	if err != nil {
		return "", noop, err
	}
	if target == nil {
		return "", noop, nil
	}

	resized, err := s.client.resizer.Resize(path, *target, "", s.client.tempDir)
	if err != nil {
		return "", noop, err
	}
	return resized, func() { os.Remove(resized) }, nil
}

// submit performs one request: token, upload, trigger, poll, download.
func (s *Session) submit(ctx context.Context, service ServiceName, src, name, dst string) error {
	t := s.client.transport
	log := s.logger.With(zap.String("service", service.String()))

	requestToken, err := t.RequestToken(ctx, s.bearer, service)
	if err != nil {
		return newRequestError("request_token", service, "", err)
	}
	log = log.With(zap.String("request_token", requestToken))

	if err := s.upload(ctx, requestToken, src, name); err != nil {
		return newRequestError("upload", service, requestToken, err)
	}
	log.Debug("File uploaded", zap.String("source", src))

	if err := t.StartProcessing(ctx, s.bearer, requestToken); err != nil {
		return newRequestError("start_processing", service, requestToken, err)
	}

	if err := s.waitForCompletion(ctx, service, requestToken); err != nil {
		log.Error("Request did not complete", zap.Error(err))
		return err
	}

	data, err := t.Download(ctx, s.bearer, requestToken)
	if err != nil {
		return newRequestError("download", service, requestToken, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return newRequestError("save_result", service, requestToken, fmt.Errorf("failed to write %s: %w", dst, err))
	}

	log.Debug("Result downloaded", zap.String("destination", dst), zap.Int("bytes", len(data)))
	return nil
}

func (s *Session) upload(ctx context.Context, requestToken, src, name string) error {
	file, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer file.Close()

	return s.client.transport.Upload(ctx, s.bearer, requestToken, name, file)
}

// waitForCompletion polls progress until the request reaches a terminal
// status or the attempt ceiling is hit. No sleep follows the last poll.
func (s *Session) waitForCompletion(ctx context.Context, service ServiceName, requestToken string) error {
	c := s.client
	for attempt := 1; ; attempt++ {
		status, err := c.transport.Progress(ctx, s.bearer, requestToken)
		if err != nil {
			return newRequestError("progress", service, requestToken, err)
		}

		switch status {
		case StatusComplete:
			return nil
		case StatusFailed:
			return newRequestError("process", service, requestToken, ErrProcessingFailed)
		}

		if attempt >= c.maxPollAttempts {
			return newRequestError("poll", service, requestToken,
				fmt.Errorf("%w after %d attempts", ErrTimeout, attempt))
		}
		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return newRequestError("poll", service, requestToken, err)
		}
	}
}

func (c *Client) resolveDestination(src, dst string) (string, error) {
	if dst == "" {
		dir, err := c.defaultOutputDir()
		if err != nil {
			return "", err
		}
		dst = filepath.Join(dir, filepath.Base(src))
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("failed to create destination directory: %w", err)
	}
	return dst, nil
}

func (c *Client) defaultOutputDir() (string, error) {
	home, err := c.homeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, "Downloads"), nil
}
