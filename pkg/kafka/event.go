package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Girirajbhatt/careerhub/pkg/logger"
)

// SchemaVersion is bumped when the envelope changes incompatibly.
const SchemaVersion = 1

// Aggregate names the entity an event is about. Its ID is the message key,
// so events of one aggregate stay ordered on one partition.
type Aggregate struct {
	Type string
	ID   string
}

// Event is the envelope for every message the service publishes.
type Event struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	AggregateID   string            `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	Version       int               `json:"version"`
	Timestamp     time.Time         `json:"timestamp"`
	Source        string            `json:"source"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewEvent encodes data into a new envelope. Event ids are UUIDv7, so they
// sort by creation time.
func NewEvent(source, eventType string, agg Aggregate, data any) (*Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate event id: %w", err)
	}

	return &Event{
		EventID:       id.String(),
		EventType:     eventType,
		AggregateID:   agg.ID,
		AggregateType: agg.Type,
		Version:       SchemaVersion,
		Timestamp:     time.Now().UTC(),
		Source:        source,
		Data:          payload,
	}, nil
}

// FromRequest copies the correlation id of the request in ctx.
func (e *Event) FromRequest(ctx context.Context) *Event {
	e.CorrelationID = logger.CorrelationIDFromContext(ctx)
	return e
}

// WithMetadata sets key. Empty values are skipped.
func (e *Event) WithMetadata(key, value string) *Event {
	if value == "" {
		return e
	}
	if e.Metadata == nil {
		e.Metadata = make(map[string]string, 1)
	}
	e.Metadata[key] = value
	return e
}

// Key returns the partition key.
func (e *Event) Key() []byte { return []byte(e.AggregateID) }
