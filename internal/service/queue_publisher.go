package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/fleet-ledger/internal/config"
	"github.com/iliyamo/fleet-ledger/internal/queue"
)

// EventPublisher delivers ledger events after a mutation commits.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.LedgerEvent) error
}

// AMQPPublisher publishes ledger events to RabbitMQ.  The connection is
// opened lazily and reopened after a failure.  Messages are persistent.
type AMQPPublisher struct {
	url    string
	logger logrus.FieldLogger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPPublisher returns a publisher for url.  No connection is made
// until the first Publish.
func NewAMQPPublisher(url string, logger logrus.FieldLogger) *AMQPPublisher {
	return &AMQPPublisher{url: url, logger: logger}
}

func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queue.LedgerQueueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Publish sends ev to the ledger queue on the default exchange.
func (p *AMQPPublisher) Publish(ctx context.Context, ev queue.LedgerEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channel()
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         string(ev.Type),
		Timestamp:    ev.OccurredAt,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.LedgerQueueName, false, false, pub); err != nil {
		p.reset()
		return err
	}
	return nil
}

// Close releases the broker connection.
func (p *AMQPPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}

// events stamps and publishes ledger events.  A nil publisher drops them.
// Failures are logged and never reach the caller: the mutation has
// already committed.
type events struct {
	pub    EventPublisher
	logger logrus.FieldLogger
	now    func() time.Time
}

func (e events) emit(ctx context.Context, actor Actor, typ queue.EventType, journeyID uint64, attrs map[string]string) {
	if e.pub == nil {
		return
	}
	ev := queue.LedgerEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		OccurredAt: e.now().UTC(),
		ActorID:    actor.UserID,
		ActorRole:  string(actor.Role),
		JourneyID:  journeyID,
		Attributes: attrs,
	}
	// The request context may already be finishing; give the broker its
	// own short deadline.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := e.pub.Publish(pctx, ev); err != nil {
		config.LogError(e.logger, "service", "emit", "publish ledger event", ev, err)
	}
}
