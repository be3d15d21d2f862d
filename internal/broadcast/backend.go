package broadcast

import (
	"context"
	"encoding/json"

	"github.com/manaforge/manaforge-client-go/internal/sign"
)

// Envelope is one game action ready for broadcast: a single custom operation
// plus the authority lists a backend must sign with.
type Envelope struct {
	OperationID string
	Payload     []byte // encoded payload, correlation id embedded
	Account     string
	Elevated    bool
	Label       string // human-readable description shown by interactive signers
}

// Authority returns the authority level the envelope must be signed with.
func (e Envelope) Authority() sign.Authority {
	if e.Elevated {
		return sign.AuthorityElevated
	}
	return sign.AuthorityStandard
}

type wireOperation struct {
	ID               string   `json:"id"`
	JSON             string   `json:"json"`
	RequiredElevated []string `json:"required_elevated_auths"`
	RequiredStandard []string `json:"required_standard_auths"`
}

type wireTransaction struct {
	Operations []wireOperation `json:"operations"`
}

// MarshalTx serializes the envelope into the unsigned wire transaction.
func (e Envelope) MarshalTx() ([]byte, error) {
	op := wireOperation{
		ID:               e.OperationID,
		JSON:             string(e.Payload),
		RequiredElevated: []string{},
		RequiredStandard: []string{},
	}
	if e.Elevated {
		op.RequiredElevated = []string{e.Account}
	} else {
		op.RequiredStandard = []string{e.Account}
	}
	return json.Marshal(wireTransaction{Operations: []wireOperation{op}})
}

// Backend submits one envelope to the ledger. Implementations differ in where
// signing happens and which transport carries the transaction; the engine
// treats them uniformly.
type Backend interface {
	Name() string
	Submit(ctx context.Context, env Envelope) Outcome
}
