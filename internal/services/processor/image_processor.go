package processor

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/phambaophuc/smartmine-client/pkg/smartmine"
	"github.com/phambaophuc/smartmine-client/pkg/utils"
)

// ImageProcessor runs gateway and queue requests through Smartmine with
// the service account credentials from config.
type ImageProcessor struct {
	restoring *smartmine.Client
	plain     *smartmine.Client
	creds     smartmine.Credentials
	tempDir   string
	logger    *zap.Logger
}

func NewImageProcessor(
	transport smartmine.Transport,
	creds smartmine.Credentials,
	tempDir string,
	logger *zap.Logger,
	opts ...smartmine.Option,
) *ImageProcessor {
	base := append([]smartmine.Option{smartmine.WithLogger(logger), smartmine.WithTempDir(tempDir)}, opts...)
	base = base[:len(base):len(base)]

	return &ImageProcessor{
		restoring: smartmine.NewClient(transport, append(base, smartmine.WithRestoreResolution(true))...),
		plain:     smartmine.NewClient(transport, append(base, smartmine.WithRestoreResolution(false))...),
		creds:     creds,
		tempDir:   tempDir,
		logger:    logger.Named("processor"),
	}
}

func (p *ImageProcessor) client(restore bool) *smartmine.Client {
	if restore {
		return p.restoring
	}
	return p.plain
}

// ProcessFile processes src into dst. An empty dst uses the client default.
func (p *ImageProcessor) ProcessFile(ctx context.Context, service smartmine.ServiceName, src, dst string, restore bool) error {
	return p.client(restore).ProcessImage(ctx, p.creds, service, src, dst)
}

// ProcessUpload spools r to a scratch file, processes it under filename
// and returns the path of the result. The caller must call release once
// done with it.
func (p *ImageProcessor) ProcessUpload(ctx context.Context, service smartmine.ServiceName, filename string, r io.Reader, restore bool) (string, func(), error) {
	noop := func() {}

	input, releaseInput, err := utils.CreateScratchFile(p.tempDir, filename)
	if err != nil {
		return "", noop, err
	}
	defer releaseInput()

	if err := writeFile(input, r); err != nil {
		return "", noop, err
	}

	output, releaseOutput, err := utils.CreateScratchFile(p.tempDir, filename)
	if err != nil {
		return "", noop, err
	}

	if err := p.client(restore).ProcessImageNamed(ctx, p.creds, service, input, output, filename); err != nil {
		releaseOutput()
		p.logger.Error("Upload processing failed",
			zap.String("filename", filename),
			zap.String("service", service.String()),
			zap.Error(err))
		return "", noop, err
	}
	return output, releaseOutput, nil
}

func writeFile(path string, r io.Reader) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}
