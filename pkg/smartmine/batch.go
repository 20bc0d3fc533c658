package smartmine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".JPG":  true,
	".JPEG": true,
	".PNG":  true,
}

// BatchResult is the outcome for one file of a batch.
type BatchResult struct {
	Source      string
	Destination string
	Err         error
}

// BatchReport summarises a batch run.
type BatchReport struct {
	Service   ServiceName
	Results   []BatchResult
	Succeeded int
	Failed    int
}

// Err joins the errors of every failed file, or returns nil.
func (r *BatchReport) Err() error {
	if r == nil {
		return nil
	}
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Source, res.Err))
		}
	}
	return errors.Join(errs...)
}

// BatchProgress is reported after each file of a batch.
type BatchProgress struct {
	Done   int
	Total  int
	Source string
	Err    error
}

// ListImageFiles returns the JPEG and PNG files directly inside dir, in
// directory listing order. Extensions are matched case-sensitively
// against .jpg/.jpeg/.png and their upper-case forms.
func ListImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExtensions[filepath.Ext(entry.Name())] {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoMatchingFiles, dir)
	}
	return files, nil
}

// BulkProcessImages processes every JPEG/PNG in srcDir into dstDir,
// keeping file names. An empty dstDir means the user's Downloads folder.
func (s *Session) BulkProcessImages(ctx context.Context, service ServiceName, srcDir, dstDir string) (*BatchReport, error) {
	if !service.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidService, service)
	}

	files, err := ListImageFiles(srcDir)
	if err != nil {
		return nil, err
	}
	return s.processFiles(ctx, service, files, dstDir)
}

func (s *Session) processFiles(ctx context.Context, service ServiceName, files []string, dstDir string) (*BatchReport, error) {
	c := s.client
	if dstDir == "" {
		dir, err := c.defaultOutputDir()
		if err != nil {
			return nil, err
		}
		dstDir = dir
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	log := s.logger.With(zap.String("service", service.String()), zap.String("policy", c.batchPolicy.String()))
	log.Info("Bulk processing images", zap.Int("files", len(files)), zap.String("destination", dstDir))

	report := &BatchReport{Service: service, Results: make([]BatchResult, 0, len(files))}
	for i, src := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		dst := filepath.Join(dstDir, filepath.Base(src))
		err := s.processImage(ctx, service, src, dst, filepath.Base(src))
		report.Results = append(report.Results, BatchResult{Source: src, Destination: dst, Err: err})
		if err != nil {
			report.Failed++
			log.Error("Image failed", zap.String("source", src), zap.Error(err))
		} else {
			report.Succeeded++
		}

		if c.progress != nil {
			c.progress(BatchProgress{Done: i + 1, Total: len(files), Source: src, Err: err})
		}

		if err != nil && c.batchPolicy == AbortOnError {
			return report, fmt.Errorf("%s: %w", src, err)
		}
	}

	log.Info("Bulk processing finished",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed))
	return report, report.Err()
}
