package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/phambaophuc/smartmine-client/internal/models"
	"github.com/phambaophuc/smartmine-client/pkg/smartmine"
)

type JobQueue interface {
	PublishJob(ctx context.Context, job *models.ProcessingJob) error
}

type JobReader interface {
	GetJob(ctx context.Context, id string) (*models.ProcessingJob, error)
}

type JobHandler struct {
	queue  JobQueue
	jobs   JobReader
	roots  JobRoots
	logger *zap.Logger
}

// NewJobHandler builds the job endpoints. A nil queue disables enqueueing,
// as do empty roots.
func NewJobHandler(queue JobQueue, jobs JobReader, roots JobRoots, logger *zap.Logger) *JobHandler {
	return &JobHandler{queue: queue, jobs: jobs, roots: roots.absolute(), logger: logger}
}

func (h *JobHandler) EnqueueJob(c *gin.Context) {
	var job models.ProcessingJob
	if err := c.ShouldBindJSON(&job); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid job: "+err.Error())
		return
	}

	service, err := smartmine.ParseServiceName(job.Service)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	job.Service = service.String()

	if !h.roots.configured() {
		respondError(c, http.StatusServiceUnavailable, "Job directories are not configured")
		return
	}
	if job.SourcePath, err = resolveUnder(h.roots.SourceDir, job.SourcePath); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid source_path: "+err.Error())
		return
	}
	if job.DestinationPath, err = resolveUnder(h.roots.DestDir, job.DestinationPath); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid destination_path: "+err.Error())
		return
	}

	job.ID = ""
	job.ResultURL = ""
	job.Error = ""

	if h.queue == nil {
		respondError(c, http.StatusServiceUnavailable, "Job queue is not available")
		return
	}

	if err := h.queue.PublishJob(c.Request.Context(), &job); err != nil {
		h.logger.Error("Failed to enqueue job", zap.Error(err))
		respondError(c, http.StatusServiceUnavailable, "Failed to enqueue job")
		return
	}

	c.JSON(http.StatusAccepted, models.APIResponse{
		Success: true,
		Data:    job,
	})
}

func (h *JobHandler) GetJob(c *gin.Context) {
	if h.jobs == nil {
		respondError(c, http.StatusServiceUnavailable, "Job store is not available")
		return
	}

	job, err := h.jobs.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Failed to load job", zap.String("job_id", c.Param("id")), zap.Error(err))
		}
		respondError(c, status, err.Error())
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data:    job,
	})
}
