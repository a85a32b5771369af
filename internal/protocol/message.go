package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types published to status subscribers
const (
	EventTypeStatus = "status"
	EventTypeHealth = "health"
	EventTypeSync   = "sync"
	EventTypeOrphan = "orphan"
)

// Event is the envelope for everything pushed to websocket and NATS
// subscribers.
type Event struct {
	Type      string          `json:"type"`
	Network   Network         `json:"network"`
	NodeType  NodeType        `json:"node_type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEvent wraps payload in an Event stamped with the current time
func NewEvent(eventType string, network Network, nodeType NodeType, payload any) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}
	return &Event{
		Type:      eventType,
		Network:   network,
		NodeType:  nodeType,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}, nil
}

// Encode serializes an event to JSON
func (e *Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent deserializes an event from JSON
func DecodeEvent(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// DecodePayload unmarshals the payload into v
func (e *Event) DecodePayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}
