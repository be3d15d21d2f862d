package gametx

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CorrelationField is the payload field carrying the correlation id the
// server echoes back in confirmation pushes.
const CorrelationField = "mf_id"

// ErrPayloadTooLarge is returned when the encoded payload exceeds the ledger's
// size limit. The failure is a validation error, never retried, and no
// backend is contacted.
var ErrPayloadTooLarge = errors.New("encoded payload exceeds size limit")

// Codec serializes action payloads and enforces the encoded size limit.
type Codec struct {
	maxBytes   int
	appVersion string
}

// NewCodec creates a codec with the given encoded-size limit. appVersion is
// stamped into every payload for server-side diagnostics; empty disables it.
func NewCodec(maxBytes int, appVersion string) *Codec {
	return &Codec{maxBytes: maxBytes, appVersion: appVersion}
}

// Encode serializes the payload with the correlation id embedded. A payload
// that already carries a correlation id keeps it, so retries of the same
// logical action stay correlated.
func (c *Codec) Encode(payload map[string]any) ([]byte, string, error) {
	data := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		data[k] = v
	}

	correlationID, _ := data[CorrelationField].(string)
	if correlationID == "" {
		correlationID = uuid.NewString()
		data[CorrelationField] = correlationID
	}
	if c.appVersion != "" {
		data["app"] = c.appVersion
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, "", fmt.Errorf("encoding payload: %w", err)
	}
	if len(encoded) > c.maxBytes {
		return nil, "", fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, len(encoded), c.maxBytes)
	}
	return encoded, correlationID, nil
}
