package queue

import (
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

type QueueService struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	logger    *zap.Logger
	queueName string
	processor JobProcessor
	jobs      JobStore
	mirror    ResultMirror
}

// NewQueueService connects to RabbitMQ and declares the job queue. mirror
// may be nil when results are not copied to storage.
func NewQueueService(
	rabbitmqURL string,
	queueName string,
	processor JobProcessor,
	jobs JobStore,
	mirror ResultMirror,
	logger *zap.Logger,
) (*QueueService, error) {
	conn, err := amqp.Dial(rabbitmqURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// Declare queue
	_, err = channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	// One unacknowledged job at a time keeps submissions sequential.
	if err := channel.Qos(1, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	return &QueueService{
		conn:      conn,
		channel:   channel,
		logger:    logger.Named("queue"),
		queueName: queueName,
		processor: processor,
		jobs:      jobs,
		mirror:    mirror,
	}, nil
}

// Close closes the queue connection
func (q *QueueService) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		q.conn.Close()
	}
	return nil
}
