package telemetry

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/manaforge/manaforge-client-go/internal/api"
	"go.uber.org/zap"
)

// Event names emitted by the SDK.
const (
	EventTxLengthExceeded        = "tx_length_exceeded"
	EventDelegationRequestFailed = "delegation_request_failed"
	EventCustomJSONFailed        = "custom_json_failed"
	EventLogin                   = "log_in"
	EventSignUp                  = "sign_up"
)

const emitTimeout = 10 * time.Second

// Emitter reports diagnostic events to the game server. Emission is
// fire-and-forget: failures are logged, never surfaced to callers.
type Emitter struct {
	client    *api.Client
	logger    *zap.Logger
	deviceID  string
	sessionID string
}

// NewEmitter creates an emitter tagged with the device and session ids.
func NewEmitter(client *api.Client, deviceID, sessionID string, logger *zap.Logger) *Emitter {
	return &Emitter{
		client:    client,
		logger:    logger,
		deviceID:  deviceID,
		sessionID: sessionID,
	}
}

// Emit reports an event asynchronously.
func (e *Emitter) Emit(event string, data map[string]any) {
	go e.send(event, data)
}

func (e *Emitter) send(event string, data map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("event_name", event)
	params.Set("browser_id", e.deviceID)
	params.Set("session_id", e.sessionID)

	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			e.logger.Warn("telemetry payload not serializable",
				zap.String("event", event),
				zap.Error(err),
			)
			return
		}
		params.Set("data", string(encoded))
	}

	if err := e.client.LogEvent(ctx, params); err != nil {
		e.logger.Debug("telemetry event dropped",
			zap.String("event", event),
			zap.Error(err),
		)
	}
}
