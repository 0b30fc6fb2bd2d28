package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/STRATINT/eventfeed/internal/models"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Routing keys published on the topic exchange.
const (
	RoutingRunCompleted  = "run.completed"
	RoutingEventApproved = "event.approved"
)

const (
	publishTimeout = 5 * time.Second
	reconnectDelay = 5 * time.Second
)

// Envelope wraps every published payload.
type Envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQPublisher emits run summaries and approved candidates to a topic
// exchange. It satisfies ingestion.RunNotifier and moderation.ApprovalNotifier.
type RabbitMQPublisher struct {
	exchange string
	url      string
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel channel

	done chan struct{}
}

// NewRabbitMQPublisher dials url, declares the exchange and starts the
// reconnect watcher.
func NewRabbitMQPublisher(url, exchange string, logger *slog.Logger) (*RabbitMQPublisher, error) {
	conn, ch, err := dial(url, exchange)
	if err != nil {
		return nil, err
	}

	p := newPublisher(ch, exchange, logger)
	p.url = url
	p.conn = conn
	go p.handleReconnect(conn)

	p.logger.Info("rabbitmq publisher initialized", "exchange", exchange)
	return p, nil
}

func newPublisher(ch channel, exchange string, logger *slog.Logger) *RabbitMQPublisher {
	return &RabbitMQPublisher{
		exchange: exchange,
		logger:   logger.With("component", "publisher"),
		now:      time.Now,
		channel:  ch,
		done:     make(chan struct{}),
	}
}

func dial(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return conn, ch, nil
}

// PublishRunCompleted publishes the final summary of a run.
func (p *RabbitMQPublisher) PublishRunCompleted(ctx context.Context, summary models.Summary) error {
	return p.publish(ctx, RoutingRunCompleted, summary)
}

// PublishEventApproved publishes a candidate that reached approved status.
func (p *RabbitMQPublisher) PublishEventApproved(ctx context.Context, event models.CandidateEvent) error {
	return p.publish(ctx, RoutingEventApproved, event)
}

func (p *RabbitMQPublisher) publish(ctx context.Context, routingKey string, payload any) error {
	now := p.now().UTC()
	body, err := json.Marshal(Envelope{Type: routingKey, OccurredAt: now, Data: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.RLock()
	ch := p.channel
	p.mu.RUnlock()
	if ch == nil {
		return fmt.Errorf("rabbitmq channel is not open")
	}

	err = ch.PublishWithContext(
		ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    now,
			MessageId:    uuid.NewString(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}

	p.logger.Debug("message published", "routing_key", routingKey, "body_size", len(body))
	return nil
}

// handleReconnect redials after the broker drops the connection until Close
// is called.
func (p *RabbitMQPublisher) handleReconnect(conn *amqp.Connection) {
	for {
		closeChan := conn.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-p.done:
			return
		case closeErr, ok := <-closeChan:
			if !ok || closeErr == nil {
				return
			}
			p.logger.Error("rabbitmq connection closed, reconnecting", "error", closeErr)
		}

		for {
			select {
			case <-p.done:
				return
			case <-time.After(reconnectDelay):
			}

			newConn, ch, err := dial(p.url, p.exchange)
			if err != nil {
				p.logger.Error("failed to reconnect to rabbitmq", "error", err)
				continue
			}

			p.mu.Lock()
			p.conn = newConn
			p.channel = ch
			p.mu.Unlock()
			conn = newConn

			p.logger.Info("reconnected to rabbitmq")
			break
		}
	}
}

// Close stops reconnecting and closes the channel and connection.
func (p *RabbitMQPublisher) Close() error {
	select {
	case <-p.done:
		return nil
	default:
		close(p.done)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Error("failed to close rabbitmq channel", "error", err)
		}
		p.channel = nil
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("failed to close rabbitmq connection: %w", err)
		}
		p.conn = nil
	}
	p.logger.Info("rabbitmq publisher closed")
	return nil
}

// HealthCheck verifies the connection is still open.
func (p *RabbitMQPublisher) HealthCheck() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.channel == nil {
		return fmt.Errorf("rabbitmq channel is nil")
	}
	if p.conn != nil && p.conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection is closed")
	}
	return nil
}
