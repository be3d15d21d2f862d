package sign

import (
	"context"
)

// Authority is the authority level a transaction must be signed with.
// Standard covers everyday game actions; elevated is required for operations
// the player's account policy marks as sensitive.
type Authority string

const (
	AuthorityStandard Authority = "standard"
	AuthorityElevated Authority = "elevated"
)

// Signer produces a signature over opaque bytes: a serialized unsigned
// transaction, or a raw challenge such as the login request.
//
// The SDK never implements cryptographic primitives itself; a Signer is an
// injected capability backed by held key material, an external signer
// application, or a remote service.
type Signer interface {
	// Account returns the ledger account the signer signs for.
	Account() string

	// Sign returns the signed form of the input. Implementations must not
	// assume the input is JSON or any other structured format.
	Sign(ctx context.Context, tx []byte, level Authority) ([]byte, error)
}
