package storage

import (
	storage_go "github.com/supabase-community/storage-go"
	"go.uber.org/zap"

	"github.com/phambaophuc/smartmine-client/internal/config"
)

// StorageService mirrors processed results to a Supabase bucket.
type StorageService struct {
	sbClient *storage_go.Client
	bucket   string
	logger   *zap.Logger
}

func NewStorageService(cfg config.SupabaseConfig, logger *zap.Logger) *StorageService {
	sbClient := storage_go.NewClient(cfg.URL+"/storage/v1", cfg.KEY, nil)

	return &StorageService{
		sbClient: sbClient,
		bucket:   cfg.BUCKET,
		logger:   logger.Named("storage"),
	}
}
