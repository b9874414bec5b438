package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/zqadmin/ojadmin/config"
)

// RabbitMQClient publishes events to a topic exchange, using the event
// channel as routing key. Subscribers consume from a queue named after the
// channel that is bound to the exchange.
type RabbitMQClient struct {
	conn     *amqp.Connection
	exchange string
	durable  bool
	autoDel  bool
	prefetch int

	// amqp channels are not safe for concurrent publishing.
	mu  sync.Mutex
	pub *amqp.Channel
}

// NewRabbitMQClient dials the broker and declares the events exchange.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	exchange := strings.TrimSpace(cfg.Exchange)
	if exchange == "" {
		exchange = "ojadmin.events"
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &RabbitMQClient{
		conn:     conn,
		exchange: exchange,
		durable:  cfg.QueueDurable,
		autoDel:  cfg.QueueAutoDelete,
		prefetch: cfg.PrefetchCount,
		pub:      ch,
	}, nil
}

// Publish sends data to the exchange with channel as routing key. The
// "content_type" and "event" attributes fill the matching AMQP properties;
// the rest travel as headers.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}

	msg := amqp.Publishing{
		ContentType:  "application/octet-stream",
		DeliveryMode: amqp.Transient,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Headers:      amqp.Table{},
		Body:         data,
	}
	if r.durable {
		msg.DeliveryMode = amqp.Persistent
	}
	for key, value := range attrs {
		switch key {
		case "content_type":
			msg.ContentType = value
		case "event":
			msg.Type = value
			msg.Headers[key] = value
		default:
			msg.Headers[key] = value
		}
	}

	r.mu.Lock()
	err := r.pub.PublishWithContext(ctx, r.exchange, channel, false, false, msg)
	r.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("rabbitmq publish %s: %w", channel, err)
	}
	return msg.MessageId, nil
}

// Subscribe consumes messages routed with channel until ctx is done. A
// handler error requeues the message.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}

	ch, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if r.prefetch > 0 {
		if err := ch.Qos(r.prefetch, 0, false); err != nil {
			return err
		}
	}

	q, err := ch.QueueDeclare(channel, r.durable, r.autoDel, false, false, nil)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(q.Name, channel, r.exchange, false, nil); err != nil {
		return fmt.Errorf("bind %s to %s: %w", q.Name, r.exchange, err)
	}

	consumerTag := "ojadmin-" + uuid.NewString()
	deliveries, err := ch.Consume(q.Name, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = ch.Cancel(consumerTag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			msg := Message{
				ID:         d.MessageId,
				Data:       d.Body,
				Attributes: headersToAttributes(d.Headers),
			}
			if d.ContentType != "" {
				if msg.Attributes == nil {
					msg.Attributes = map[string]string{}
				}
				msg.Attributes["content_type"] = d.ContentType
			}
			if err := handler(ctx, msg); err != nil {
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Close closes the publishing channel and the connection.
func (r *RabbitMQClient) Close() error {
	if r.pub != nil {
		_ = r.pub.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}
