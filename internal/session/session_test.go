package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/manaforge/manaforge-client-go/internal/config"
	"github.com/manaforge/manaforge-client-go/internal/gametx"
	"github.com/manaforge/manaforge-client-go/internal/match"
	"github.com/manaforge/manaforge-client-go/internal/sign"
	"github.com/manaforge/manaforge-client-go/internal/socket"
	"go.uber.org/zap"
)

func newTestSession(t *testing.T, loginBody string) *Session {
	t.Helper()
	return newTestSessionWithConfig(t, loginBody, nil)
}

func newTestSessionWithConfig(t *testing.T, loginBody string, mutate func(*config.Config)) *Session {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/settings":
			w.Write([]byte(`{"version":"1.0.0","rpc_nodes":["https://node-a"]}`))
		case "/players/login":
			w.Write([]byte(loginBody))
		default:
			w.Write([]byte(`{}`))
		}
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.API.URL = srv.URL
	cfg.API.Timeout = 5 * time.Second
	cfg.Storage.Path = filepath.Join(t.TempDir(), "session.db")
	cfg.Tx.MaxPayloadBytes = 8192
	cfg.Tx.RetryLimit = 2
	cfg.Tx.RetryBackoff = time.Millisecond
	cfg.Tx.ConfirmTimeout = 100 * time.Millisecond
	cfg.Tx.PaymentConfirmTimeout = 100 * time.Millisecond
	if mutate != nil {
		mutate(cfg)
	}

	signer := sign.NewStaticSigner("alice", "test-signature")
	// Nop logger: telemetry goroutines may outlive the test server.
	sess, err := New(cfg, signer, nil, "test", zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	t.Cleanup(func() { sess.Close() })
	return sess
}

func TestSession_ChainTestModeSeedsPrefix(t *testing.T) {
	sess := newTestSessionWithConfig(t, `{}`, func(cfg *config.Config) {
		cfg.Chain.TestMode = true
		cfg.Chain.Prefix = "pt_"
	})

	if got := sess.settings.OperationPrefix(); got != "pt_mf_" {
		t.Errorf("Expected the configured test prefix before the first refresh, got %q", got)
	}
}

func TestSession_SubmitRequiresLogin(t *testing.T) {
	sess := newTestSession(t, `{}`)

	res := sess.SubmitOperation(context.Background(), "find_match", "Find Match", nil)
	if !errors.Is(res.Err, ErrNotLoggedIn) {
		t.Errorf("Expected ErrNotLoggedIn, got %v", res.Err)
	}
}

func TestSession_LoginSetsPlayer(t *testing.T) {
	sess := newTestSession(t, `{"name":"alice","token":"tok-1","use_relay":true}`)

	p, err := sess.Login(context.Background(), "  @Alice ")
	if err != nil {
		t.Fatalf("Expected login to succeed, got %v", err)
	}
	if p.Name != "alice" {
		t.Errorf("Expected player alice, got %q", p.Name)
	}
	if !p.UseRelay {
		t.Error("Expected the relay policy to be carried")
	}

	got, ok := sess.Player()
	if !ok || got.Name != "alice" {
		t.Error("Expected the session to hold the player")
	}

	policy := sess.policy()
	if policy.Account != "alice" || !policy.UseRelay {
		t.Errorf("Expected the policy to reflect the player, got %+v", policy)
	}
}

func TestSession_LoginSeedsOutstandingMatch(t *testing.T) {
	body := `{"name":"alice","token":"tok-1","outstanding_match":{"id":"m-9","status":1,"opponent":"bob"}}`
	sess := newTestSession(t, body)

	if _, err := sess.Login(context.Background(), "alice"); err != nil {
		t.Fatalf("Expected login to succeed, got %v", err)
	}

	got, ok := sess.matches.Current()
	if !ok {
		t.Fatal("Expected the outstanding match to be seeded")
	}
	if got.ID != "m-9" {
		t.Errorf("Expected match m-9, got %q", got.ID)
	}
	if got.Status != match.StatusMatched {
		t.Errorf("Expected status MATCHED, got %s", got.Status)
	}
	if got.Opponent != "bob" {
		t.Errorf("Expected opponent bob, got %q", got.Opponent)
	}
}

func TestSession_LogoutClearsState(t *testing.T) {
	sess := newTestSession(t, `{"name":"alice","token":"tok-1"}`)

	if _, err := sess.Login(context.Background(), "alice"); err != nil {
		t.Fatalf("Expected login to succeed, got %v", err)
	}
	sess.matches.Apply(match.Update{ID: "m-1"})

	sess.Logout()

	if _, ok := sess.Player(); ok {
		t.Error("Expected no player after logout")
	}
	if _, ok := sess.matches.Current(); ok {
		t.Error("Expected no match after logout")
	}
	if _, err := sess.store.SavedLogin(); err == nil {
		t.Error("Expected the saved login to be cleared")
	}
}

func TestSession_HandleTransactionUpdateResolvesPending(t *testing.T) {
	sess := newTestSession(t, `{}`)

	pending := sess.registry.Register("tx-1", time.Minute)
	sess.HandleTransactionUpdate(socket.TransactionUpdate{
		CorrelationID: "tx-1",
		TrxID:         "ledger-1",
		Success:       true,
	})

	select {
	case res := <-pending.Done():
		if !res.Success {
			t.Error("Expected a successful result")
		}
		if res.TrxID != "ledger-1" {
			t.Errorf("Expected trx id ledger-1, got %q", res.TrxID)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected the pending confirmation to resolve")
	}
}

func TestSession_HandleTransactionUpdateCarriesRejection(t *testing.T) {
	sess := newTestSession(t, `{}`)

	pending := sess.registry.Register("tx-2", time.Minute)
	sess.HandleTransactionUpdate(socket.TransactionUpdate{
		CorrelationID: "tx-2",
		Success:       false,
		Error:         "invalid team",
	})

	res := <-pending.Done()
	if res.Success {
		t.Error("Expected a failed result")
	}
	if res.Err == nil {
		t.Fatal("Expected the rejection to carry an error")
	}
}

func TestSession_HandleMatchCancelledChecksID(t *testing.T) {
	sess := newTestSession(t, `{}`)
	sess.matches.Apply(match.Update{ID: "m-1"})

	sess.HandleMatchCancelled("m-other")
	if _, ok := sess.matches.Current(); !ok {
		t.Error("Expected a cancellation for another match to be ignored")
	}

	sess.HandleMatchCancelled("m-1")
	if _, ok := sess.matches.Current(); ok {
		t.Error("Expected the current match to be cleared")
	}
}

type stubWallet struct {
	mu                   sync.Mutex
	to, amount, currency string
	memo                 []byte
	err                  error
}

func (w *stubWallet) Transfer(_ context.Context, to, amount, currency string, memo []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.to, w.amount, w.currency, w.memo = to, amount, currency, memo
	return w.err
}

func (w *stubWallet) sentMemo() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.memo
}

func TestSession_SendPaymentWaitsForPush(t *testing.T) {
	sess := newTestSession(t, `{"name":"alice","token":"tok-1"}`)
	if _, err := sess.Login(context.Background(), "alice"); err != nil {
		t.Fatalf("Expected login to succeed, got %v", err)
	}

	wallet := &stubWallet{}

	done := make(chan gametx.Result, 1)
	go func() {
		done <- sess.SendPayment(context.Background(), wallet, "shop", "10.000", "MANA", "purchase", map[string]any{"item": "pack"})
	}()

	// The memo embeds the correlation id; resolve it once the transfer ran.
	var corrID string
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		memo := wallet.sentMemo()
		if len(memo) > 0 && sess.registry.Len() > 0 {
			var decoded []any
			if err := json.Unmarshal(memo, &decoded); err == nil && len(decoded) == 2 {
				if data, ok := decoded[1].(map[string]any); ok {
					corrID, _ = data[gametx.CorrelationField].(string)
				}
			}
			if corrID != "" && sess.registry.Resolve(corrID, gametx.Result{Success: true, TrxID: "pay-ref"}) {
				break
			}
		}
		time.Sleep(time.Millisecond)
	}

	select {
	case res := <-done:
		if !res.Success {
			t.Fatalf("Expected the payment confirmation, got %+v", res)
		}
		if res.TrxID != "pay-ref" {
			t.Errorf("Expected trx id pay-ref, got %q", res.TrxID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected SendPayment to return")
	}

	if wallet.to != "shop" || wallet.currency != "MANA" {
		t.Errorf("Expected the transfer details to pass through, got %+v", wallet)
	}
}

func TestSession_SendPaymentWalletFailure(t *testing.T) {
	sess := newTestSession(t, `{"name":"alice","token":"tok-1"}`)
	if _, err := sess.Login(context.Background(), "alice"); err != nil {
		t.Fatalf("Expected login to succeed, got %v", err)
	}

	wallet := &stubWallet{err: errors.New("user closed the wallet")}
	res := sess.SendPayment(context.Background(), wallet, "shop", "10.000", "MANA", "purchase", nil)
	if res.Err == nil {
		t.Error("Expected the wallet failure to surface")
	}
	if sess.registry.Len() != 0 {
		t.Errorf("Expected no pending confirmation, got %d", sess.registry.Len())
	}
}
