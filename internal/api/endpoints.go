package api

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
)

// DelegationResult is the server's answer to a transaction capacity request.
type DelegationResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// RequestDelegation asks the server to grant additional transaction capacity
// after a resource-exhaustion rejection from the ledger.
func (c *Client) RequestDelegation(ctx context.Context) (DelegationResult, error) {
	var result DelegationResult
	err := c.Get(ctx, "/players/delegation", nil, &result)
	return result, err
}

// LoginResponse carries the player state returned on a successful login.
type LoginResponse struct {
	Name             string          `json:"name"`
	Token            string          `json:"token"`
	UseRelay         bool            `json:"use_relay"`
	RequireElevated  bool            `json:"require_elevated_auth"`
	OutstandingMatch json.RawMessage `json:"outstanding_match,omitempty"`
}

// Login exchanges a signed login request for a session token.
func (c *Client) Login(ctx context.Context, name, ref string, ts int64, sig string) (LoginResponse, error) {
	q := url.Values{}
	q.Set("name", name)
	if ref != "" {
		q.Set("ref", ref)
	}
	q.Set("ts", strconv.FormatInt(ts, 10))
	q.Set("sig", sig)

	var resp LoginResponse
	err := c.Get(ctx, "/players/login", q, &resp)
	return resp, err
}

// BroadcastResponse is returned by the server-side broadcast endpoints.
type BroadcastResponse struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

// BroadcastBattleTx posts a signed battle transaction for server-side
// forwarding to the ledger.
func (c *Client) BroadcastBattleTx(ctx context.Context, signedTx []byte) (BroadcastResponse, error) {
	form := url.Values{}
	form.Set("signed_tx", string(signedTx))

	var resp BroadcastResponse
	err := c.PostForm(ctx, "/battle/battle_tx", form, &resp)
	return resp, err
}

// RelayBroadcast posts an unsigned operation to the relay, which co-signs it
// with credentials it already holds.
func (c *Client) RelayBroadcast(ctx context.Context, opID string, payload []byte) (BroadcastResponse, error) {
	form := url.Values{}
	form.Set("id", opID)
	form.Set("json", string(payload))

	var resp BroadcastResponse
	err := c.PostForm(ctx, "/transactions/relay", form, &resp)
	return resp, err
}

// Settings fetches the current game settings document.
func (c *Client) Settings(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.Get(ctx, "/settings", nil, &raw)
	return raw, err
}

// LogEvent reports a telemetry event. Failures are returned to the caller;
// the telemetry emitter treats them as fire-and-forget.
func (c *Client) LogEvent(ctx context.Context, params url.Values) error {
	return c.Get(ctx, "/players/event", params, nil)
}
