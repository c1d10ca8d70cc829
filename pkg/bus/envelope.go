package bus

import (
	"encoding/json"
	"time"
)

// Envelope is the wire shape every message carries, independent of the
// underlying transport. Payload is left as raw JSON so callers own their
// own message schemas.
type Envelope struct {
	ID            string          `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	Type          string          `json:"type"`
	CorrelationID string          `json:"correlationId,omitempty"`
	ReplyTo       string          `json:"replyTo,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}
