package queue

import (
	"context"

	"github.com/phambaophuc/smartmine-client/internal/models"
	"github.com/phambaophuc/smartmine-client/pkg/smartmine"
)

// JobProcessor runs one image through a Smartmine service.
type JobProcessor interface {
	ProcessFile(ctx context.Context, service smartmine.ServiceName, src, dst string, restore bool) error
}

type JobStore interface {
	SaveJob(ctx context.Context, job *models.ProcessingJob) error
}

// ResultMirror copies a processed file to shared storage and returns its URL.
type ResultMirror interface {
	MirrorFile(ctx context.Context, path string) (string, error)
}
