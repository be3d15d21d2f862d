package sign

import (
	"context"
	"encoding/base64"
	"encoding/json"
)

// StaticSigner wraps transactions with a fixed signature marker. It stands in
// for a real signer in tests and demos.
type StaticSigner struct {
	account   string
	signature string
}

// NewStaticSigner creates a signer for the given account.
func NewStaticSigner(account, signature string) *StaticSigner {
	return &StaticSigner{account: account, signature: signature}
}

func (s *StaticSigner) Account() string { return s.account }

// Sign wraps the input bytes base64-encoded. The input is opaque: it may be a
// serialized transaction or a raw login challenge.
func (s *StaticSigner) Sign(_ context.Context, tx []byte, level Authority) ([]byte, error) {
	signed := struct {
		Tx         string    `json:"tx"`
		Authority  Authority `json:"authority"`
		Signatures []string  `json:"signatures"`
	}{
		Tx:         base64.StdEncoding.EncodeToString(tx),
		Authority:  level,
		Signatures: []string{s.signature},
	}
	return json.Marshal(signed)
}
