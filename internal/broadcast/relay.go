package broadcast

import (
	"context"

	"github.com/manaforge/manaforge-client-go/internal/api"
	"go.uber.org/zap"
)

// RelayAPI is the server endpoint that co-signs and forwards an operation
// using credentials the relay already holds for the player.
type RelayAPI interface {
	RelayBroadcast(ctx context.Context, opID string, payload []byte) (api.BroadcastResponse, error)
}

// DelegatedRelay broadcasts through the trusted relay. Signing happens
// server-side, so no local key material is needed.
type DelegatedRelay struct {
	relay  RelayAPI
	logger *zap.Logger
}

// NewDelegatedRelay creates the relay backend.
func NewDelegatedRelay(relay RelayAPI, logger *zap.Logger) *DelegatedRelay {
	return &DelegatedRelay{relay: relay, logger: logger}
}

func (b *DelegatedRelay) Name() string { return "delegated_relay" }

func (b *DelegatedRelay) Submit(ctx context.Context, env Envelope) Outcome {
	resp, err := b.relay.RelayBroadcast(ctx, env.OperationID, env.Payload)
	if err != nil {
		return Rejected(err.Error())
	}
	if resp.Error != "" {
		return Rejected(resp.Error)
	}
	return Accepted(resp.ID)
}
