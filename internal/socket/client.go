package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/manaforge/manaforge-client-go/internal/config"
	"github.com/manaforge/manaforge-client-go/internal/match"
	"go.uber.org/zap"
)

// TransactionUpdate is the server push announcing a transaction was observed
// on the ledger (or explicitly rejected by the game server).
type TransactionUpdate struct {
	CorrelationID string          `json:"mf_id"`
	TrxID         string          `json:"trx_id"`
	Success       bool            `json:"success"`
	Error         string          `json:"error,omitempty"`
	Info          json.RawMessage `json:"trx_info,omitempty"`
}

// Handler receives decoded server pushes. Implementations route them into the
// confirmation registry and the match manager.
type Handler interface {
	HandleTransactionUpdate(u TransactionUpdate)
	HandleMatchUpdate(u match.Update)
	HandleMatchCancelled(matchID string)
}

// Server push event ids.
const (
	eventTransactionComplete = "transaction_complete"
	eventMatchFound          = "match_found"
	eventMatchNotFound       = "match_not_found"
	eventOpponentSubmitTeam  = "opponent_submit_team"
	eventBattleResult        = "battle_result"
)

type message struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

type authMessage struct {
	Type   string `json:"type"`
	Player string `json:"player"`
	Token  string `json:"token"`
}

// Client maintains the push-channel WebSocket connection: it authenticates,
// dispatches inbound events to the handler, and reconnects with backoff when
// the connection drops.
type Client struct {
	url     string
	cfg     config.SocketConfig
	handler Handler
	logger  *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	done   chan struct{}
	closed bool
}

// NewClient creates a push-channel client. Connect starts it.
func NewClient(cfg config.SocketConfig, handler Handler, logger *zap.Logger) *Client {
	return &Client{
		url:     cfg.URL,
		cfg:     cfg,
		handler: handler,
		logger:  logger,
	}
}

// Connect dials the push channel, authenticates, and starts the pumps.
func (c *Client) Connect(ctx context.Context, player, token string) error {
	conn, err := c.dial(ctx, player, token)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.done = make(chan struct{})
	c.closed = false
	c.mu.Unlock()

	go c.writePump(conn)
	go c.readPump(conn, player, token)
	return nil
}

func (c *Client) dial(ctx context.Context, player, token string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing push channel: %w", err)
	}

	auth, err := json.Marshal(authMessage{Type: "auth", Player: player, Token: token})
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, auth); err != nil {
		conn.Close()
		return nil, fmt.Errorf("authenticating push channel: %w", err)
	}

	c.logger.Info("push channel connected", zap.String("player", player))
	return conn, nil
}

// Close shuts the connection down and disables reconnection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.done != nil {
		close(c.done)
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump(conn *websocket.Conn, player, token string) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if closed {
				return
			}
			c.logger.Warn("push channel dropped", zap.Error(err))
			c.reconnect(player, token)
			return
		}

		var msg message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Warn("undecodable push message", zap.Error(err))
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Client) reconnect(player, token string) {
	for attempt := 1; attempt <= c.cfg.MaxReconnects; attempt++ {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		time.Sleep(c.cfg.ReconnectBackoff)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		conn, err := c.dial(ctx, player, token)
		cancel()
		if err != nil {
			c.logger.Warn("push channel reconnect failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		go c.writePump(conn)
		go c.readPump(conn, player, token)
		return
	}
	c.logger.Error("push channel reconnect attempts exhausted")
}

func (c *Client) dispatch(msg message) {
	switch msg.ID {
	case eventTransactionComplete:
		var u TransactionUpdate
		if err := json.Unmarshal(msg.Data, &u); err != nil {
			c.logger.Warn("undecodable transaction push", zap.Error(err))
			return
		}
		c.handler.HandleTransactionUpdate(u)

	case eventMatchFound:
		c.dispatchMatch(msg.Data, match.StatusMatched)

	case eventBattleResult:
		c.dispatchMatch(msg.Data, match.StatusResolved)

	case eventOpponentSubmitTeam:
		var u match.Update
		if err := json.Unmarshal(msg.Data, &u); err != nil {
			c.logger.Warn("undecodable match push", zap.Error(err))
			return
		}
		c.handler.HandleMatchUpdate(u)

	case eventMatchNotFound:
		var u match.Update
		if err := json.Unmarshal(msg.Data, &u); err != nil {
			c.logger.Warn("undecodable match push", zap.Error(err))
			return
		}
		c.handler.HandleMatchCancelled(u.ID)

	default:
		c.logger.Debug("unhandled push event", zap.String("event", msg.ID))
	}
}

func (c *Client) dispatchMatch(data json.RawMessage, status match.Status) {
	var u match.Update
	if err := json.Unmarshal(data, &u); err != nil {
		c.logger.Warn("undecodable match push", zap.Error(err))
		return
	}
	if u.Status == nil {
		u.Status = &status
	}
	c.handler.HandleMatchUpdate(u)
}
