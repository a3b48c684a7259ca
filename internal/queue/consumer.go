package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AuditConsumer listens to the program events queue and appends one line
// per event to an audit log file.
type AuditConsumer struct {
	url     string
	queue   string
	logPath string
	log     *zap.Logger
}

// NewAuditConsumer returns a consumer writing to logPath.
func NewAuditConsumer(url, queueName, logPath string, log *zap.Logger) *AuditConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuditConsumer{url: url, queue: queueName, logPath: logPath, log: log}
}

// Run connects to RabbitMQ, declares the queue (durable) and consumes
// messages until ctx is cancelled.  It reconnects with exponential backoff
// when the broker is unreachable or the delivery channel closes; messages
// that cannot be processed are rejected without requeue so the consumer
// keeps operating.  It returns ctx.Err() on shutdown.
func (c *AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("program-consumer: failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("program-consumer: consume loop ended; reconnecting", zap.Error(err))
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *AuditConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("program-consumer: set QoS failed", zap.Error(err))
	}

	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleMessage(d.Body); err != nil {
				c.log.Warn("program-consumer: handle message failed", zap.Error(err))
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *AuditConsumer) handleMessage(body []byte) error {
	var ev ProgramChangedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.ProgramID == "" || ev.Action == "" {
		return errors.New("event without program id or action")
	}
	if dir := filepath.Dir(c.logPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(auditLine(ev)); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// auditLine renders ev as a single human-friendly line.
func auditLine(ev ProgramChangedEvent) string {
	plots := "[]"
	if len(ev.PlotIDs) > 0 {
		plots = fmt.Sprintf("[%s]", strings.Join(ev.PlotIDs, ","))
	}
	return fmt.Sprintf("[%s] Program %s | program_id=%s | user_id=%s | producer=%s | farm=%s | season=%s | period=%s | reviewed=%t | plots=%s\n",
		ev.OccurredAt, ev.Action, ev.ProgramID, orDash(ev.UserID), ev.ProducerCode, ev.FarmCode,
		orDash(deref(ev.SeasonID)), orDash(deref(ev.PeriodID)), ev.Reviewed, plots)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
