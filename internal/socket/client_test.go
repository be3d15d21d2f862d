package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/manaforge/manaforge-client-go/internal/config"
	"github.com/manaforge/manaforge-client-go/internal/match"
	"go.uber.org/zap/zaptest"
)

type recordingHandler struct {
	txUpdates    chan TransactionUpdate
	matchUpdates chan match.Update
	cancelled    chan string
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		txUpdates:    make(chan TransactionUpdate, 8),
		matchUpdates: make(chan match.Update, 8),
		cancelled:    make(chan string, 8),
	}
}

func (h *recordingHandler) HandleTransactionUpdate(u TransactionUpdate) { h.txUpdates <- u }
func (h *recordingHandler) HandleMatchUpdate(u match.Update)            { h.matchUpdates <- u }
func (h *recordingHandler) HandleMatchCancelled(id string)              { h.cancelled <- id }

// pushServer upgrades the connection, checks the auth message, and then
// writes each frame to the client.
func pushServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade: %v", err)
			return
		}
		defer conn.Close()

		var auth authMessage
		if err := conn.ReadJSON(&auth); err != nil {
			t.Errorf("Failed to read auth message: %v", err)
			return
		}
		if auth.Type != "auth" || auth.Player != "alice" || auth.Token != "tok-1" {
			t.Errorf("Unexpected auth message: %+v", auth)
		}

		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}

		// Keep the connection open until the client closes it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func connect(t *testing.T, srv *httptest.Server, handler Handler) *Client {
	t.Helper()
	c := NewClient(config.SocketConfig{
		URL:              wsURL(srv),
		PingInterval:     time.Second,
		ReconnectBackoff: 10 * time.Millisecond,
		MaxReconnects:    1,
	}, handler, zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx, "alice", "tok-1"); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestClient_DispatchesTransactionComplete(t *testing.T) {
	frames := []string{
		`{"id":"transaction_complete","data":{"mf_id":"tx-1","trx_id":"ledger-1","success":true}}`,
	}
	handler := newRecordingHandler()
	srv := pushServer(t, frames)
	defer srv.Close()

	connect(t, srv, handler)

	select {
	case u := <-handler.txUpdates:
		if u.CorrelationID != "tx-1" {
			t.Errorf("Expected correlation id tx-1, got %q", u.CorrelationID)
		}
		if u.TrxID != "ledger-1" {
			t.Errorf("Expected trx id ledger-1, got %q", u.TrxID)
		}
		if !u.Success {
			t.Error("Expected a successful update")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a transaction update")
	}
}

func TestClient_DispatchesMatchEvents(t *testing.T) {
	frames := []string{
		`{"id":"match_found","data":{"id":"m-1","opponent":"bob"}}`,
		`{"id":"opponent_submit_team","data":{"id":"m-1","opponent_team_hash":"hash-1"}}`,
		`{"id":"battle_result","data":{"id":"m-1"}}`,
	}
	handler := newRecordingHandler()
	srv := pushServer(t, frames)
	defer srv.Close()

	connect(t, srv, handler)

	deadline := time.After(2 * time.Second)
	var got []match.Update
	for len(got) < 3 {
		select {
		case u := <-handler.matchUpdates:
			got = append(got, u)
		case <-deadline:
			t.Fatalf("Expected three match updates, got %d", len(got))
		}
	}

	if got[0].Status == nil || *got[0].Status != match.StatusMatched {
		t.Error("Expected match_found to default to MATCHED")
	}
	if got[0].Opponent != "bob" {
		t.Errorf("Expected opponent bob, got %q", got[0].Opponent)
	}
	if got[1].OpponentTeamHash != "hash-1" {
		t.Errorf("Expected the opponent's commitment, got %q", got[1].OpponentTeamHash)
	}
	if got[2].Status == nil || *got[2].Status != match.StatusResolved {
		t.Error("Expected battle_result to default to RESOLVED")
	}
}

func TestClient_DispatchesMatchNotFound(t *testing.T) {
	frames := []string{
		`{"id":"match_not_found","data":{"id":"m-1"}}`,
	}
	handler := newRecordingHandler()
	srv := pushServer(t, frames)
	defer srv.Close()

	connect(t, srv, handler)

	select {
	case id := <-handler.cancelled:
		if id != "m-1" {
			t.Errorf("Expected match m-1 cancelled, got %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a cancellation")
	}
}

func TestClient_IgnoresUnknownEvents(t *testing.T) {
	frames := []string{
		`{"id":"mystery_event","data":{}}`,
		`{"id":"transaction_complete","data":{"mf_id":"tx-2","success":false,"error":"rejected"}}`,
	}
	handler := newRecordingHandler()
	srv := pushServer(t, frames)
	defer srv.Close()

	connect(t, srv, handler)

	select {
	case u := <-handler.txUpdates:
		if u.Success {
			t.Error("Expected a failed update")
		}
		if u.Error != "rejected" {
			t.Errorf("Expected the rejection detail, got %q", u.Error)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected the known event to still be dispatched")
	}
}

func TestClient_SendsPings(t *testing.T) {
	pings := make(chan struct{}, 8)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var auth authMessage
		if err := conn.ReadJSON(&auth); err != nil {
			return
		}
		conn.SetPingHandler(func(string) error {
			select {
			case pings <- struct{}{}:
			default:
			}
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := NewClient(config.SocketConfig{
		URL:              wsURL(srv),
		PingInterval:     20 * time.Millisecond,
		ReconnectBackoff: 10 * time.Millisecond,
		MaxReconnects:    1,
	}, newRecordingHandler(), zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx, "alice", "tok-1"); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(c.Close)

	select {
	case <-pings:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a keep-alive ping within the interval")
	}
}

func TestTransactionUpdate_Decode(t *testing.T) {
	raw := `{"mf_id":"tx-1","trx_id":"ledger-1","success":true,"trx_info":{"block":12}}`

	var u TransactionUpdate
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		t.Fatalf("Expected the update to decode, got %v", err)
	}
	if u.CorrelationID != "tx-1" {
		t.Errorf("Expected correlation id tx-1, got %q", u.CorrelationID)
	}
	if len(u.Info) == 0 {
		t.Error("Expected the raw transaction info to be carried")
	}
}
