package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/phambaophuc/smartmine-client/pkg/utils"
)

// Upload stores r under a generated key and returns its public URL.
func (s *StorageService) Upload(ctx context.Context, r io.Reader, filename string) (string, error) {
	key := utils.GenerateStorageKey(filename)

	_, err := s.sbClient.UploadFile(s.bucket, key, r)
	if err != nil {
		return "", fmt.Errorf("failed to upload to supabase: %w", err)
	}

	publicURL := s.sbClient.GetPublicUrl(s.bucket, key)
	s.logger.Debug("Result mirrored", zap.String("key", key))
	return publicURL.SignedURL, nil
}

// MirrorFile uploads a processed image from disk under its own name.
func (s *StorageService) MirrorFile(ctx context.Context, path string) (string, error) {
	return s.MirrorFileAs(ctx, path, filepath.Base(path))
}

// MirrorFileAs uploads path with its storage key derived from name.
func (s *StorageService) MirrorFileAs(ctx context.Context, path, name string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return s.Upload(ctx, bytes.NewReader(data), name)
}
