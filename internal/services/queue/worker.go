package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/phambaophuc/smartmine-client/internal/logging"
	"github.com/phambaophuc/smartmine-client/internal/models"
	"github.com/phambaophuc/smartmine-client/pkg/smartmine"
)

var (
	ErrDeliveriesClosed = errors.New("delivery channel closed")
	ErrNoDestination    = errors.New("job has no destination path")
)

// StartWorker consumes jobs one at a time until ctx is cancelled.
func (q *QueueService) StartWorker(ctx context.Context, workerID int) error {
	msgs, err := q.channel.Consume(
		q.queueName,                        // queue
		fmt.Sprintf("worker-%d", workerID), // consumer
		false,                              // auto-ack
		false,                              // exclusive
		false,                              // no-local
		false,                              // no-wait
		nil,                                // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	q.logger.Info("Worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-ctx.Done():
			q.logger.Info("Worker stopping", zap.Int("worker_id", workerID))
			return nil
		case msg, ok := <-msgs:
			if !ok {
				q.logger.Warn("Message channel closed", zap.Int("worker_id", workerID))
				return ErrDeliveriesClosed
			}

			q.processMessage(ctx, msg, workerID)
		}
	}
}

func (q *QueueService) processMessage(ctx context.Context, msg amqp.Delivery, workerID int) {
	var job models.ProcessingJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		q.logger.Error("Failed to unmarshal job",
			zap.Error(err),
			zap.Int("worker_id", workerID))
		msg.Nack(false, false) // Don't requeue malformed messages
		return
	}

	q.handleJob(ctx, &job)

	if err := msg.Ack(false); err != nil {
		q.logger.Error("Failed to ack message",
			zap.String("job_id", job.ID),
			zap.Error(err))
	}
}

// handleJob runs job and records every status change in the job store.
func (q *QueueService) handleJob(ctx context.Context, job *models.ProcessingJob) {
	log := logging.WithOperation(q.logger, "process_job", job.ID)
	log.Info("Processing job", zap.String("service", job.Service))

	q.updateStatus(ctx, log, job, models.StatusProcessing, nil)

	resultURL, err := q.runJob(ctx, job)
	if err != nil {
		log.Error("Job processing failed", zap.Error(err))
		q.updateStatus(ctx, log, job, models.StatusFailed, err)
		return
	}

	job.ResultURL = resultURL
	q.updateStatus(ctx, log, job, models.StatusCompleted, nil)
	log.Info("Job completed successfully", zap.String("destination", job.DestinationPath))
}

func (q *QueueService) runJob(ctx context.Context, job *models.ProcessingJob) (string, error) {
	service, err := smartmine.ParseServiceName(job.Service)
	if err != nil {
		return "", err
	}
	if job.DestinationPath == "" {
		return "", ErrNoDestination
	}

	if err := q.processor.ProcessFile(ctx, service, job.SourcePath, job.DestinationPath, job.RestoreResolution()); err != nil {
		return "", err
	}

	if q.mirror == nil {
		return "", nil
	}
	url, err := q.mirror.MirrorFile(ctx, job.DestinationPath)
	if err != nil {
		return "", fmt.Errorf("failed to mirror result: %w", err)
	}
	return url, nil
}

func (q *QueueService) updateStatus(ctx context.Context, log *zap.Logger, job *models.ProcessingJob, status string, jobErr error) {
	job.Status = status
	job.UpdatedAt = time.Now()
	if jobErr != nil {
		job.Error = jobErr.Error()
	}

	if err := q.jobs.SaveJob(ctx, job); err != nil {
		log.Warn("Failed to store job status",
			zap.String("status", status),
			zap.Error(err))
	}
}
