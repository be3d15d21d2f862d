package broadcast

import (
	"context"

	"github.com/manaforge/manaforge-client-go/internal/chain"
	"github.com/manaforge/manaforge-client-go/internal/sign"
	"go.uber.org/zap"
)

// LocalKeySigner signs with a locally held private key and submits directly
// to a ledger RPC node.
type LocalKeySigner struct {
	signer sign.Signer
	node   chain.NodeClient
	logger *zap.Logger
}

// NewLocalKeySigner creates the local-key backend.
func NewLocalKeySigner(signer sign.Signer, node chain.NodeClient, logger *zap.Logger) *LocalKeySigner {
	return &LocalKeySigner{signer: signer, node: node, logger: logger}
}

func (b *LocalKeySigner) Name() string { return "local_key" }

func (b *LocalKeySigner) Submit(ctx context.Context, env Envelope) Outcome {
	tx, err := env.MarshalTx()
	if err != nil {
		return Rejected(err.Error())
	}

	signed, err := b.signer.Sign(ctx, tx, env.Authority())
	if err != nil {
		b.logger.Warn("local signing failed",
			zap.String("operation", env.OperationID),
			zap.Error(err),
		)
		return Rejected(err.Error())
	}

	ref, err := b.node.SubmitTransaction(ctx, signed)
	if err != nil {
		return Rejected(err.Error())
	}
	return Accepted(ref)
}
