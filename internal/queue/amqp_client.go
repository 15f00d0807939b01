package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

type amqpPublisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPClient publishes queue messages to a RabbitMQ queue through the
// default exchange.
type AMQPClient struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	ch      amqpPublisher
	closeCh func() error
	queue   string
}

// DeclareQueue declares the durable work queue shared by producer and worker.
func DeclareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	return err
}

// NewAMQPClient dials the broker and declares the queue.
func NewAMQPClient(url, queueName string) (*AMQPClient, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("AMQP_URL is required")
	}
	if strings.TrimSpace(queueName) == "" {
		return nil, fmt.Errorf("AMQP_QUEUE is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := DeclareQueue(ch, queueName); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare amqp queue: %w", err)
	}
	return &AMQPClient{conn: conn, ch: ch, closeCh: ch.Close, queue: queueName}, nil
}

// Send publishes a persistent JSON message. A channel is not safe for
// concurrent publishes, so sends are serialized.
func (a *AMQPClient) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode amqp message: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	err = a.ch.Publish("", a.queue, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		CorrelationId: msg.RequestID,
		MessageId:     msg.ResumeID,
		Timestamp:     time.Now().UTC(),
		Body:          payload,
	})
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

// Close releases the channel and connection.
func (a *AMQPClient) Close() error {
	if a.closeCh != nil {
		_ = a.closeCh()
	}
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}

var _ Client = (*AMQPClient)(nil)
