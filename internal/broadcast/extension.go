package broadcast

import (
	"context"

	"github.com/manaforge/manaforge-client-go/internal/sign"
	"go.uber.org/zap"
)

// ExtensionResult is an external signer application's answer to a signing
// request. The user sees the operation label and may decline.
type ExtensionResult struct {
	Approved  bool
	Cancelled bool
	TrxID     string
	Err       string
}

// ExtensionClient bridges to an external signer application that holds the
// player's keys and asks the user to approve each operation.
type ExtensionClient interface {
	RequestOperation(ctx context.Context, account, operationID string, payload []byte, level sign.Authority, label string) (ExtensionResult, error)
}

// ExtensionSigner broadcasts through an external signer application.
type ExtensionSigner struct {
	ext    ExtensionClient
	logger *zap.Logger
}

// NewExtensionSigner creates the external-signer backend.
func NewExtensionSigner(ext ExtensionClient, logger *zap.Logger) *ExtensionSigner {
	return &ExtensionSigner{ext: ext, logger: logger}
}

func (b *ExtensionSigner) Name() string { return "extension" }

func (b *ExtensionSigner) Submit(ctx context.Context, env Envelope) Outcome {
	res, err := b.ext.RequestOperation(ctx, env.Account, env.OperationID, env.Payload, env.Authority(), env.Label)
	if err != nil {
		return Rejected(err.Error())
	}
	if res.Cancelled {
		b.logger.Info("operation declined by user", zap.String("operation", env.OperationID))
		return Cancelled()
	}
	if !res.Approved {
		return Rejected(res.Err)
	}
	return Accepted(res.TrxID)
}
