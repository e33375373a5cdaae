package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrEmptyData means an envelope decoded but carries no event body.
var ErrEmptyData = errors.New("envelope carries no data")

// PayloadEnvelope is what outbox_events.payload holds: a versioned wrapper
// whose Data is the event-specific body from pkg/outbox/payloads.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"event_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Source     string          `json:"source,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// ParseEnvelope decodes a stored payload and rejects a missing or null Data.
func ParseEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return PayloadEnvelope{}, ErrEmptyData
	}
	env.Data = data
	return env, nil
}

// DecodeData unmarshals the event body into v.
func (e PayloadEnvelope) DecodeData(v any) error {
	return json.Unmarshal(e.Data, v)
}
