package storage

import (
	"context"

	storage_go "github.com/supabase-community/storage-go"
	"go.uber.org/zap"
)

// HealthCheck lists the bucket root to confirm Supabase is reachable.
func (s *StorageService) HealthCheck(ctx context.Context) string {
	_, err := s.sbClient.ListFiles(s.bucket, "", storage_go.FileSearchOptions{Limit: 1})
	if err != nil {
		s.logger.Warn("Supabase health check failed", zap.Error(err))
		return "unhealthy: " + err.Error()
	}
	return "healthy"
}
