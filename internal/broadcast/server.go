package broadcast

import (
	"context"

	"github.com/manaforge/manaforge-client-go/internal/api"
	"github.com/manaforge/manaforge-client-go/internal/sign"
	"go.uber.org/zap"
)

// BattleAPI is the game server's low-latency forwarding endpoint for
// battle-class transactions.
type BattleAPI interface {
	BroadcastBattleTx(ctx context.Context, signedTx []byte) (api.BroadcastResponse, error)
}

// ServerSideBroadcast signs locally and hands the signed transaction to the
// game server, which forwards it to the ledger. Used for battle-class
// operations where confirmation latency matters.
type ServerSideBroadcast struct {
	signer sign.Signer
	battle BattleAPI
	logger *zap.Logger
}

// NewServerSideBroadcast creates the server-side broadcast backend.
func NewServerSideBroadcast(signer sign.Signer, battle BattleAPI, logger *zap.Logger) *ServerSideBroadcast {
	return &ServerSideBroadcast{signer: signer, battle: battle, logger: logger}
}

func (b *ServerSideBroadcast) Name() string { return "server_side" }

func (b *ServerSideBroadcast) Submit(ctx context.Context, env Envelope) Outcome {
	tx, err := env.MarshalTx()
	if err != nil {
		return Rejected(err.Error())
	}

	signed, err := b.signer.Sign(ctx, tx, env.Authority())
	if err != nil {
		b.logger.Warn("battle tx signing failed",
			zap.String("operation", env.OperationID),
			zap.Error(err),
		)
		return Rejected(err.Error())
	}

	resp, err := b.battle.BroadcastBattleTx(ctx, signed)
	if err != nil {
		return Rejected(err.Error())
	}
	if resp.Error != "" {
		return Rejected(resp.Error)
	}
	return Accepted(resp.ID)
}
