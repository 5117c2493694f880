package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mcdev12/outreach/go/internal/models"
	"github.com/streadway/amqp"
)

type AMQPConfig struct {
	URL      string
	Exchange string
}

// AMQPPublisher publishes activities to a durable topic exchange with routing
// key "<org_id>.<kind>".
type AMQPPublisher struct {
	conn    *amqp.Connection
	config  AMQPConfig
	mu      sync.Mutex
	channel *amqp.Channel
}

func NewAMQPPublisher(cfg AMQPConfig) (*AMQPPublisher, error) {
	if cfg.Exchange == "" {
		cfg.Exchange = "outreach.activity"
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // kind
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{conn: conn, config: cfg, channel: ch}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, a *models.Activity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}

	// amqp.Channel is not safe for concurrent publishes.
	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.Publish(p.config.Exchange, subjectSuffix(a), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    a.ID.String(),
		Timestamp:    a.CreatedAt,
		Type:         string(a.Kind),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to RabbitMQ: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Connected() bool {
	return p.conn != nil && !p.conn.IsClosed()
}

func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
