// Package events decodes notifications from the streaming engine and
// applies them to a monitoring tree.
package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/irctrakz/streammon/pkg/core"
)

// ErrInvalidEvent is returned for events that cannot be decoded or lack required fields.
var ErrInvalidEvent = errors.New("invalid event")

// Type names an engine notification.
type Type string

// Event types.
const (
	TypeAppCreated          Type = "app_created"
	TypeAppDeleted          Type = "app_deleted"
	TypeStreamCreated       Type = "stream_created"
	TypeStreamDeleted       Type = "stream_deleted"
	TypeStreamReserved      Type = "stream_reserved"
	TypeReservationReleased Type = "reservation_released"
	TypeBytesIn             Type = "bytes_in"
	TypeBytesOut            Type = "bytes_out"
	TypeSessionConnected    Type = "session_connected"
	TypeSessionDisconnected Type = "session_disconnected"
)

// Event is one engine notification.
//
// Counter events (bytes and sessions) carrying a Stream are applied to
// that stream, which forwards upward unless it is a relay. Without a
// Stream they are applied to the application directly.
type Event struct {
	Type      Type                   `json:"type"`
	App       uint32                 `json:"app"`
	AppName   string                 `json:"app_name,omitempty"`
	Stream    *core.StreamDescriptor `json:"stream,omitempty"`
	Publisher core.PublisherType     `json:"publisher,omitempty"`
	Bytes     uint64                 `json:"bytes,omitempty"`

	// Reservation fields.
	Provider core.ProviderType `json:"provider,omitempty"`
	URI      string            `json:"uri,omitempty"`
	Name     string            `json:"name,omitempty"`
	Port     uint32            `json:"port,omitempty"`
}

// Decode parses and validates a JSON-encoded event.
func Decode(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// Encode marshals ev to JSON.
func Encode(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

// Validate checks that ev carries the fields its type requires.
func (ev Event) Validate() error {
	switch ev.Type {
	case TypeAppCreated, TypeAppDeleted, TypeReservationReleased, TypeBytesIn:
	case TypeStreamCreated, TypeStreamDeleted:
		if ev.Stream == nil {
			return fmt.Errorf("%w: %s requires a stream", ErrInvalidEvent, ev.Type)
		}
	case TypeStreamReserved:
		if ev.URI == "" {
			return fmt.Errorf("%w: %s requires a uri", ErrInvalidEvent, ev.Type)
		}
	case TypeBytesOut, TypeSessionConnected, TypeSessionDisconnected:
		if !ev.Publisher.Valid() {
			return fmt.Errorf("%w: invalid publisher %d", ErrInvalidEvent, ev.Publisher)
		}
	case "":
		return fmt.Errorf("%w: missing type", ErrInvalidEvent)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, ev.Type)
	}
	return nil
}
