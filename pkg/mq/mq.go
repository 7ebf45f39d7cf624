package mq

import (
	"context"
	"desockfuzz/config"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var errStopped = errors.New("crash publisher stopped")

// RabbitMQ is the crash report sink. A worker publishes rarely, so one
// connection is kept and redialed when the broker drops it.
type RabbitMQ interface {
	// Publish declares the durable queue if needed and sends one persistent
	// JSON message to it.
	Publish(ctx context.Context, queue string, body []byte) error
}

type publisher struct {
	logger *zap.Logger
	url    string
	dial   func(url string) (*amqp.Connection, error)

	mu      sync.Mutex
	conn    *amqp.Connection
	stopped bool
}

type RabbitMQParams struct {
	fx.In

	Config    *config.AppConfig
	Logger    *zap.Logger
	Lifecycle fx.Lifecycle
}

// NewRabbitMQ returns nil when RABBITMQ_URL is not set. The connection is
// dialed on first publish, so a worker that never crashes never connects.
func NewRabbitMQ(p RabbitMQParams) RabbitMQ {
	if p.Config.RabbitMQURL == "" {
		p.Logger.Debug("RabbitMQ disabled, RABBITMQ_URL is not set")
		return nil
	}
	pub := &publisher{
		logger: p.Logger,
		url:    p.Config.RabbitMQURL,
		dial:   amqp.Dial,
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return pub.close()
		},
	})
	return pub
}

// connection returns the live connection, dialing a new one when there is
// none or the broker closed the last.
func (p *publisher) connection() (*amqp.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return nil, errStopped
	}
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn, nil
	}
	if p.conn != nil {
		p.logger.Warn("RabbitMQ connection lost, redialing")
	}
	conn, err := p.dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	p.conn = conn
	return conn, nil
}

func (p *publisher) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

func (p *publisher) Publish(ctx context.Context, queue string, body []byte) error {
	conn, err := p.connection()
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	err = ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}
	return nil
}
