package types

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrMalformedFrame is returned by Conn.ReadJSON for a frame that arrived
// intact but is not a valid message. The connection stays usable.
var ErrMalformedFrame = errors.New("malformed frame")

// Message is a WebSocket frame in either direction.
type Message struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	ClientID  string          `json:"-"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage encodes payload as the data of an outgoing message.
func NewMessage(event string, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Event: event, Data: data, Timestamp: time.Now()}, nil
}

// Decode unmarshals the message data into v.
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return json.Unmarshal([]byte("{}"), v)
	}
	return json.Unmarshal(m.Data, v)
}

// MessageHandler handles an incoming message for an event name.
type MessageHandler func(ctx context.Context, clientID string, msg Message) error

// ClientInfo holds metadata about a connected WebSocket client.
type ClientInfo struct {
	ID          string    `json:"id"`
	ConnectedAt time.Time `json:"connected_at"`
	State       string    `json:"state"`
}

// Conn abstracts a WebSocket connection for testability. ReadJSON wraps
// ErrMalformedFrame for undecodable frames; any other error ends the
// connection.
type Conn interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	Ping() error
	Close() error
}
