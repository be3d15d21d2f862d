package broadcast

import (
	"encoding/json"
	"testing"

	"github.com/manaforge/manaforge-client-go/internal/sign"
)

func TestEnvelope_Authority(t *testing.T) {
	if got := (Envelope{}).Authority(); got != sign.AuthorityStandard {
		t.Errorf("Expected standard authority, got %s", got)
	}
	if got := (Envelope{Elevated: true}).Authority(); got != sign.AuthorityElevated {
		t.Errorf("Expected elevated authority, got %s", got)
	}
}

func TestEnvelope_MarshalTx(t *testing.T) {
	env := Envelope{
		OperationID: "mf_submit_team",
		Payload:     []byte(`{"match_id":"m-1"}`),
		Account:     "alice",
	}

	data, err := env.MarshalTx()
	if err != nil {
		t.Fatalf("Expected marshal to succeed, got %v", err)
	}

	var tx wireTransaction
	if err := json.Unmarshal(data, &tx); err != nil {
		t.Fatalf("Expected valid JSON, got %v", err)
	}
	if len(tx.Operations) != 1 {
		t.Fatalf("Expected one operation, got %d", len(tx.Operations))
	}

	op := tx.Operations[0]
	if op.ID != "mf_submit_team" {
		t.Errorf("Expected operation id mf_submit_team, got %q", op.ID)
	}
	if op.JSON != `{"match_id":"m-1"}` {
		t.Errorf("Expected the payload embedded verbatim, got %q", op.JSON)
	}
	if len(op.RequiredStandard) != 1 || op.RequiredStandard[0] != "alice" {
		t.Errorf("Expected alice in the standard auths, got %v", op.RequiredStandard)
	}
	if len(op.RequiredElevated) != 0 {
		t.Errorf("Expected no elevated auths, got %v", op.RequiredElevated)
	}
}

func TestEnvelope_MarshalTxElevated(t *testing.T) {
	env := Envelope{
		OperationID: "mf_transfer",
		Payload:     []byte(`{}`),
		Account:     "alice",
		Elevated:    true,
	}

	data, err := env.MarshalTx()
	if err != nil {
		t.Fatalf("Expected marshal to succeed, got %v", err)
	}

	var tx wireTransaction
	if err := json.Unmarshal(data, &tx); err != nil {
		t.Fatalf("Expected valid JSON, got %v", err)
	}

	op := tx.Operations[0]
	if len(op.RequiredElevated) != 1 || op.RequiredElevated[0] != "alice" {
		t.Errorf("Expected alice in the elevated auths, got %v", op.RequiredElevated)
	}
	if len(op.RequiredStandard) != 0 {
		t.Errorf("Expected no standard auths, got %v", op.RequiredStandard)
	}
}
