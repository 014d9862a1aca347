package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicMatches(t *testing.T) {
	tests := []struct {
		topic   Topic
		pattern Topic
		want    bool
	}{
		{"order.created", "order.created", true},
		{"order.created", "order.completed", false},
		{"order.created", "order.*", true},
		{"order.created", "*.created", true},
		{"order.created", "*.*", true},
		{"order.created", "#", true},
		{"order.created", "order", false},
		{"order.created", "order.created.v2", false},
		{"order", "order", true},
		{"order", "*", true},
	}

	for _, tt := range tests {
		t.Run(tt.topic.String()+" vs "+tt.pattern.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.topic.Matches(tt.pattern))
		})
	}
}

func TestNewTopic(t *testing.T) {
	topic, err := NewTopic("order.created")
	require.NoError(t, err)
	assert.Equal(t, Topic("order.created"), topic)

	_, err = NewTopic("")
	assert.ErrorIs(t, err, ErrInvalidTopic)
}

func TestNewEvent(t *testing.T) {
	event := NewEvent("aggregate-1", OrderCreatedTopic, map[string]string{"order_id": "abc"})

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, OrderCreatedTopic, event.Topic)
	assert.False(t, event.Timestamp.IsZero())
	assert.NotNil(t, event.Metadata)

	event.WithCorrelationID("corr-1").WithMetadata("source", "api")

	assert.Equal(t, "corr-1", event.CorrelationID.String())
	source, ok := event.Metadata.Get("source")
	require.True(t, ok)
	assert.Equal(t, "api", source)
}

func TestMarshalPayload(t *testing.T) {
	t.Run("struct payload", func(t *testing.T) {
		event := NewEvent("agg", OrderCreatedTopic, struct {
			OrderID string `json:"order_id"`
		}{OrderID: "abc"})

		raw, err := event.MarshalPayload()
		require.NoError(t, err)
		assert.JSONEq(t, `{"order_id":"abc"}`, string(raw))
	})

	t.Run("raw bytes pass through untouched", func(t *testing.T) {
		payload := []byte(`{"order_id":"abc"}`)
		event := NewEvent("agg", OrderCreatedTopic, payload)

		raw, err := event.MarshalPayload()
		require.NoError(t, err)
		assert.Equal(t, payload, []byte(raw))
	})

	t.Run("raw message passes through untouched", func(t *testing.T) {
		payload := json.RawMessage(`{"order_id":"abc"}`)
		event := NewEvent("agg", OrderCreatedTopic, payload)

		raw, err := event.MarshalPayload()
		require.NoError(t, err)
		assert.Equal(t, payload, raw)
	})
}

func TestUnmarshalPayload(t *testing.T) {
	event := NewEvent("agg", OrderCreatedTopic, []byte(`{"order_id":"abc"}`))

	var data struct {
		OrderID string `json:"order_id"`
	}
	require.NoError(t, event.UnmarshalPayload(&data))
	assert.Equal(t, "abc", data.OrderID)

	event.Data = []byte("{not json")
	assert.Error(t, event.UnmarshalPayload(&data))
}
