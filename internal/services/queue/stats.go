package queue

import (
	"errors"
	"fmt"

	"github.com/streadway/amqp"

	"github.com/phambaophuc/smartmine-client/internal/models"
)

var ErrChannelClosed = errors.New("queue channel not available")

type queueInspector interface {
	QueueInspect(name string) (amqp.Queue, error)
}

// GetQueueStats reports the backlog and consumer count of the job queue.
func (q *QueueService) GetQueueStats() (models.QueueStats, error) {
	if q.channel == nil {
		return models.QueueStats{}, ErrChannelClosed
	}
	return inspectQueue(q.channel, q.queueName)
}

func inspectQueue(inspector queueInspector, name string) (models.QueueStats, error) {
	info, err := inspector.QueueInspect(name)
	if err != nil {
		return models.QueueStats{}, fmt.Errorf("failed to inspect queue %s: %w", name, err)
	}
	return models.QueueStats{
		Name:      info.Name,
		Messages:  info.Messages,
		Consumers: info.Consumers,
	}, nil
}

// HealthCheck reports whether the RabbitMQ connection and channel are open.
func (q *QueueService) HealthCheck() string {
	switch {
	case q.conn == nil || q.conn.IsClosed():
		return "unhealthy: connection closed"
	case q.channel == nil:
		return "unhealthy: " + ErrChannelClosed.Error()
	default:
		return "healthy"
	}
}
