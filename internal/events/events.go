// Package events publishes sync outcomes to Kafka so downstream services
// (guest messaging, loyalty scoring) can react to fresh reservation data.
package events

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/mhdraihanr/loyalinn-pms/internal/model"
)

// TopicReservationsSynced carries one event per finished tenant sync.
const TopicReservationsSynced = "pms.reservations.synced"

// DefaultProducer names this service in envelopes when none is configured.
const DefaultProducer = "loyalinn"

// EventReservationsSynced is the envelope type of a sync outcome.
const EventReservationsSynced = "ReservationsSynced"

const eventVersion = 1

// Envelope wraps every event. Payload holds the type-specific body.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewSyncedEnvelope wraps run. The tenant id is the correlation id.
func NewSyncedEnvelope(producer string, run model.SyncRun, now time.Time) (Envelope, error) {
	payload, err := json.Marshal(run)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventReservationsSynced,
		EventVersion:  eventVersion,
		OccurredAt:    now.UTC(),
		Producer:      producer,
		CorrelationID: run.TenantID,
		Payload:       payload,
	}, nil
}

func marshalEnvelope(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// DecodeSynced unpacks a ReservationsSynced message value.
func DecodeSynced(value []byte) (Envelope, model.SyncRun, error) {
	var env Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return Envelope{}, model.SyncRun{}, err
	}
	var run model.SyncRun
	if err := json.Unmarshal(env.Payload, &run); err != nil {
		return env, model.SyncRun{}, err
	}
	return env, run, nil
}

// PartitionKey keeps every event of one tenant in order.
func PartitionKey(tenantID string) []byte { return []byte(tenantID) }
