package events

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestNewAMQPPublisherRejectsBadURL(t *testing.T) {
	if _, err := NewAMQPPublisher("http://localhost:5672", ""); err == nil {
		t.Fatalf("expected error for non-amqp scheme")
	}
}

func TestPublisherRedialsAfterConnectionLoss(t *testing.T) {
	dials := 0
	p := newPublisher("amqp://broker", "", func(string) (*amqp.Connection, error) {
		dials++
		return nil, errors.New("broker down")
	})
	if p.exchange != defaultExchange {
		t.Fatalf("exchange = %q, want %q", p.exchange, defaultExchange)
	}

	evt := RatingEvent{RatingID: "r1", CreatedAt: time.Now()}
	for i := 0; i < 2; i++ {
		if err := p.PublishRating(context.Background(), evt); err == nil {
			t.Fatalf("publish %d: expected error while broker is down", i)
		}
	}
	if dials != 2 {
		t.Fatalf("dials = %d, want one per publish attempt", dials)
	}
}

func TestClosedPublisherRefusesEvents(t *testing.T) {
	dials := 0
	p := newPublisher("amqp://broker", "", func(string) (*amqp.Connection, error) {
		dials++
		return nil, errors.New("unreachable")
	})
	if err := p.Close(); err != nil {
		t.Fatalf("close idle publisher: %v", err)
	}
	err := p.PublishRating(context.Background(), RatingEvent{RatingID: "r1", CreatedAt: time.Now()})
	if err == nil {
		t.Fatalf("expected publish on closed publisher to fail")
	}
	if dials != 0 {
		t.Fatalf("closed publisher dialed %d times", dials)
	}
}
