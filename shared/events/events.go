package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/orderhub/order-system/shared/models"
)

var (
	ErrInvalidTopic   = errors.New("invalid topic")
	ErrInvalidPayload = errors.New("message payload cannot be empty")
)

// Topic is the routing key an event is published under
type Topic string

func NewTopic(topic string) (Topic, error) {
	if topic == "" {
		return "", ErrInvalidTopic
	}
	return Topic(topic), nil
}

func (t Topic) String() string {
	return string(t)
}

// Matches reports whether the topic matches the given pattern.
// Patterns are dot-separated segments where "*" matches one segment
// and a single "#" matches everything.
func (t Topic) Matches(pattern Topic) bool {
	if pattern == "#" {
		return true
	}

	patternParts := strings.Split(pattern.String(), ".")
	topicParts := strings.Split(t.String(), ".")

	if len(patternParts) != len(topicParts) {
		return false
	}

	for i, part := range patternParts {
		if part != "*" && part != topicParts[i] {
			return false
		}
	}

	return true
}

// Metadata carries transport-level attributes alongside an event
type Metadata map[string]string

func (m Metadata) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m Metadata) Set(key string, value string) {
	m[key] = value
}

func (m Metadata) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// Event is the envelope every message on the channel travels in
type Event struct {
	ID            models.ID   `json:"id"`
	AggregateID   models.ID   `json:"aggregate_id"`
	Topic         Topic       `json:"topic"`
	Data          interface{} `json:"data"`
	Metadata      Metadata    `json:"metadata"`
	Timestamp     time.Time   `json:"timestamp"`
	CorrelationID models.ID   `json:"correlation_id"`
}

// Publisher publishes events to the order exchange
type Publisher interface {
	Publish(ctx context.Context, events ...*Event) error
}

// EventHandler handles delivered events
type EventHandler interface {
	HandlerID() string
	Handle(ctx context.Context, event *Event) error
}

// NewEvent creates a new domain event
func NewEvent(aggregateID models.ID, topic Topic, data interface{}) *Event {
	return &Event{
		ID:          models.GenerateUUID(),
		AggregateID: aggregateID,
		Topic:       topic,
		Data:        data,
		Metadata:    make(Metadata),
		Timestamp:   time.Now(),
	}
}

// WithCorrelationID sets correlation ID
func (e *Event) WithCorrelationID(correlationID models.ID) *Event {
	e.CorrelationID = correlationID
	return e
}

// WithMetadata adds metadata
func (e *Event) WithMetadata(key string, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(Metadata)
	}
	e.Metadata.Set(key, value)
	return e
}

// MarshalPayload marshals the event payload
func (e *Event) MarshalPayload() (json.RawMessage, error) {
	if b, ok := e.Data.([]byte); ok {
		return b, nil
	}

	if b, ok := e.Data.(json.RawMessage); ok {
		return b, nil
	}

	return json.Marshal(e.Data)
}

// UnmarshalPayload unmarshals the event payload into the given receiver
func (e *Event) UnmarshalPayload(v interface{}) error {
	raw, err := e.MarshalPayload()
	if err != nil {
		return err
	}

	return json.Unmarshal(raw, v)
}

// Order lifecycle topics
const (
	OrderCreatedTopic   Topic = "order.created"
	OrderCompletedTopic Topic = "order.completed"
	OrderFailedTopic    Topic = "order.failed"
)
