package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// RatingSubmitted is the routing key of events emitted after a rating is stored.
	RatingSubmitted = "rating.submitted"

	defaultExchange = "ich.events"
)

// RatingEvent describes a stored rating.
type RatingEvent struct {
	RatingID  string    `json:"ratingId"`
	ProductID string    `json:"productId"`
	AuthorID  string    `json:"authorId"`
	Score     int       `json:"rating"`
	HasReview bool      `json:"hasReview"`
	CreatedAt time.Time `json:"createdAt"`
}

// AMQPPublisher publishes domain events to a RabbitMQ topic exchange.
// A dropped connection or channel is reopened on the next publish.
type AMQPPublisher struct {
	mu       sync.Mutex
	url      string
	exchange string
	dial     func(url string) (*amqp.Connection, error)
	conn     *amqp.Connection
	ch       *amqp.Channel
	closed   bool
}

// NewAMQPPublisher dials url and declares a durable topic exchange.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	p := newPublisher(url, exchange, amqp.Dial)
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func newPublisher(url, exchange string, dial func(string) (*amqp.Connection, error)) *AMQPPublisher {
	exchange = strings.TrimSpace(exchange)
	if exchange == "" {
		exchange = defaultExchange
	}
	return &AMQPPublisher{url: url, exchange: exchange, dial: dial}
}

// connectLocked (re)opens whatever part of the connection is gone.
func (p *AMQPPublisher) connectLocked() error {
	if p.conn == nil || p.conn.IsClosed() {
		p.ch = nil
		conn, err := p.dial(p.url)
		if err != nil {
			return fmt.Errorf("dial amqp: %w", err)
		}
		p.conn = conn
	}
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		_ = p.conn.Close()
		p.conn = nil
		return fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	p.ch = ch
	return nil
}

// PublishRating emits a rating.submitted event.
func (p *AMQPPublisher) PublishRating(ctx context.Context, evt RatingEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode rating event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("publisher closed")
	}
	if err := p.connectLocked(); err != nil {
		return err
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, RatingSubmitted, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    evt.RatingID,
		Timestamp:    evt.CreatedAt,
		Type:         RatingSubmitted,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish rating event: %w", err)
	}
	return nil
}

// Close shuts the channel and connection. A closed publisher refuses events.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
		p.ch = nil
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
		p.conn = nil
	}
	return errors.Join(errs...)
}
