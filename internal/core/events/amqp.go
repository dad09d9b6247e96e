package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Envelope is the wire form of an event on the broker.
type Envelope struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data"`
}

func EncodeEvent(event Event) ([]byte, error) {
	data, _ := event.Payload().(map[string]interface{})
	return json.Marshal(Envelope{
		ID:         event.EventID(),
		Type:       event.EventType(),
		OccurredAt: event.OccurredAt(),
		Data:       data,
	})
}

func DecodeEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if env.ID == "" || env.Type == "" {
		return Envelope{}, errors.New("event is missing id or type")
	}
	return env, nil
}

// AMQPForwarder copies bus events onto a durable RabbitMQ queue.
type AMQPForwarder struct {
	url    string
	queue  string
	logger *slog.Logger
}

func NewAMQPForwarder(url, queue string, logger *slog.Logger) *AMQPForwarder {
	return &AMQPForwarder{url: url, queue: queue, logger: logger.With("component", "amqp_forwarder")}
}

// Register subscribes the forwarder to the given event types.
func (f *AMQPForwarder) Register(bus *EventBus, eventTypes ...string) {
	for _, t := range eventTypes {
		bus.Subscribe(t, f.Forward)
	}
}

// Forward publishes one event as a persistent message. Each call dials its
// own connection, which suits the low event volume of onboarding.
func (f *AMQPForwarder) Forward(ctx context.Context, event Event) error {
	body, err := EncodeEvent(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	conn, err := amqp.Dial(f.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(f.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp queue declare: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = ch.PublishWithContext(ctx, "", f.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID(),
		Type:         event.EventType(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}

	f.logger.Info("event forwarded", "event_type", event.EventType(), "event_id", event.EventID(), "queue", f.queue)
	return nil
}

// Consumer drains the queue the forwarder writes to, reconnecting with
// exponential backoff until its context ends.
type Consumer struct {
	url    string
	queue  string
	logger *slog.Logger
	handle func(ctx context.Context, env Envelope) error
}

func NewConsumer(url, queue string, logger *slog.Logger, handle func(ctx context.Context, env Envelope) error) *Consumer {
	return &Consumer{url: url, queue: queue, logger: logger.With("component", "amqp_consumer"), handle: handle}
}

func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("failed to dial broker", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("consume loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.logger.Warn("set QoS failed", "error", err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	c.logger.Info("consuming", "queue", c.queue)
	for d := range msgs {
		if err := c.Deliver(ctx, d.Body); err != nil {
			c.logger.Error("handle message failed", "error", err)
			// reject without requeue to avoid tight redelivery loops
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// Deliver decodes one message body and passes it to the handler.
func (c *Consumer) Deliver(ctx context.Context, body []byte) error {
	env, err := DecodeEnvelope(body)
	if err != nil {
		return err
	}
	return c.handle(ctx, env)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
