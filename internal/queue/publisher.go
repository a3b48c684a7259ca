package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher publishes program events to RabbitMQ.  Each publish dials its
// own connection, so a broker outage only costs the events sent while it
// lasts.  Errors are logged and returned to allow callers to ignore
// failures without interrupting the main request flow.
type Publisher struct {
	url   string
	queue string
	log   *zap.Logger
}

// NewPublisher returns a publisher for the given broker URL and queue.
func NewPublisher(url, queueName string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{url: url, queue: queueName, log: log}
}

// PublishProgramChanged publishes ev as a persistent JSON message on the
// program events queue.
func (p *Publisher) PublishProgramChanged(ctx context.Context, ev ProgramChangedEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn("rabbitmq: dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("rabbitmq: channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		p.queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		p.log.Warn("rabbitmq: queue declare failed", zap.String("queue", p.queue), zap.Error(err))
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("rabbitmq: marshal event failed", zap.Error(err))
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Type:         ev.Action,
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		p.log.Warn("rabbitmq: publish failed", zap.String("queue", p.queue), zap.Error(err))
		return err
	}
	return nil
}
