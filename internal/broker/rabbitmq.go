// Package broker mirrors auction events onto a RabbitMQ topic exchange so
// downstream services (mail, analytics, payments) can react to bids and
// auction lifecycle changes without touching the bidding path.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"antique-auction/internal/events"
	"antique-auction/utils"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	Exchange          = "auction_events"
	DefaultBufferSize = 256
	publishTimeout    = 5 * time.Second
)

// Message is the JSON body published for every event
type Message struct {
	Type       events.Type `json:"type"`
	AuctionID  string      `json:"auctionId,omitempty"`
	UserID     string      `json:"userId,omitempty"`
	OccurredAt time.Time   `json:"occurredAt"`
	Data       any         `json:"data"`
}

// RoutingKey maps an event type to its topic, e.g. new_bid -> auction.new_bid
func RoutingKey(t events.Type) string {
	return "auction." + string(t)
}

// Encode builds the message body for e
func Encode(e events.Event) ([]byte, error) {
	return json.Marshal(Message{
		Type:       e.Type,
		AuctionID:  e.AuctionID,
		UserID:     e.UserID,
		OccurredAt: e.OccurredAt.UTC(),
		Data:       e.Payload,
	})
}

// Publisher is an events.Publisher backed by a RabbitMQ channel. Publish
// only enqueues; a single goroutine owns the channel and does the I/O.
type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue chan events.Event

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// Dial connects to url and declares the durable topic exchange
func Dial(url string, buffer int) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("broker: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("broker: open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		Exchange,
		"topic",
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("broker: declare exchange: %w", err)
	}

	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	p := &Publisher{
		conn:  conn,
		ch:    ch,
		queue: make(chan events.Event, buffer),
		done:  make(chan struct{}),
	}
	go p.loop()
	return p, nil
}

// Publish queues e for delivery. Events are dropped when the buffer is full
// or the publisher is closed; the broker copy is best effort.
func (p *Publisher) Publish(e events.Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- e:
	default:
		utils.Warn("broker: buffer full, dropping event", map[string]any{
			"type":       e.Type,
			"auction_id": e.AuctionID,
		})
	}
}

// Close flushes queued events and closes the connection
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	if err := p.ch.Close(); err != nil {
		utils.Warn("broker: channel close failed", map[string]any{"error": err.Error()})
	}
	return p.conn.Close()
}

func (p *Publisher) loop() {
	defer close(p.done)
	for e := range p.queue {
		if err := p.send(e); err != nil {
			utils.Error("broker: publish failed", map[string]any{
				"type":       e.Type,
				"auction_id": e.AuctionID,
				"error":      err.Error(),
			})
		}
	}
}

func (p *Publisher) send(e events.Event) error {
	body, err := Encode(e)
	if err != nil {
		return fmt.Errorf("encode %s: %w", e.Type, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	return p.ch.PublishWithContext(ctx,
		Exchange,
		RoutingKey(e.Type),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}
