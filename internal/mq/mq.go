package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/zqadmin/ojadmin/config"
)

// Channels carrying problem admin events.
const (
	ChannelProblemCreated   = "problem.created"
	ChannelTestCaseUploaded = "testcase.uploaded"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// ProblemCreated is published after a problem has been committed.
type ProblemCreated struct {
	ProblemID  int       `json:"problem_id"`
	Title      string    `json:"title"`
	SetterID   int       `json:"setter_id"`
	IsPublic   bool      `json:"is_public"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TestCaseUploaded is published after a test case has been stored.
type TestCaseUploaded struct {
	ProblemID  int       `json:"problem_id"`
	TestCaseID int       `json:"test_case_id"`
	ObjectKey  string    `json:"object_key,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// MQ wraps a backend with a stable API. A nil *MQ, or one without a
// backend, drops published events and refuses subscriptions.
type MQ struct {
	backend Backend
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Open connects the broker named in cfg.MQ.Backend. An empty backend
// yields a disabled MQ.
func Open(ctx context.Context, cfg config.Config) (*MQ, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.MQ.Backend)) {
	case "", "none":
		return New(nil), nil
	case "rabbitmq":
		b, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return New(b), nil
	case "pubsub":
		b, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return New(b), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQ.Backend)
	}
}

// Enabled reports whether a broker is configured.
func (m *MQ) Enabled() bool {
	return m != nil && m.backend != nil
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if !m.Enabled() {
		return "", nil
	}
	return m.backend.Publish(ctx, channel, data, attrs)
}

// PublishJSON encodes event as JSON and publishes it on channel with an
// "event" attribute naming the channel.
func (m *MQ) PublishJSON(ctx context.Context, channel string, event any) (string, error) {
	if !m.Enabled() {
		return "", nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("encode %s event: %w", channel, err)
	}
	return m.backend.Publish(ctx, channel, data, map[string]string{
		"event":        channel,
		"content_type": "application/json",
	})
}

// Subscribe consumes messages from the named channel.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if !m.Enabled() {
		return fmt.Errorf("subscribe %s: mq backend is not configured", channel)
	}
	return m.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	if !m.Enabled() {
		return nil
	}
	return m.backend.Close()
}
