package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/manaforge/manaforge-client-go/internal/api"
	"github.com/manaforge/manaforge-client-go/internal/broadcast"
	"github.com/manaforge/manaforge-client-go/internal/chain"
	"github.com/manaforge/manaforge-client-go/internal/config"
	"github.com/manaforge/manaforge-client-go/internal/gametx"
	"github.com/manaforge/manaforge-client-go/internal/match"
	"github.com/manaforge/manaforge-client-go/internal/settings"
	"github.com/manaforge/manaforge-client-go/internal/sign"
	"github.com/manaforge/manaforge-client-go/internal/socket"
	"github.com/manaforge/manaforge-client-go/internal/store"
	"github.com/manaforge/manaforge-client-go/internal/telemetry"
	"go.uber.org/zap"
)

// ErrNotLoggedIn is returned by operations that need an authenticated player.
var ErrNotLoggedIn = errors.New("no player is logged in")

// Player is the authenticated player's identity and account policy.
type Player struct {
	Name            string
	Token           string
	UseRelay        bool
	RequireElevated bool
}

// Session owns all per-login state: the confirmation registry, the current
// match, the push channel, and the player's identity. One session exists per
// logged-in player; everything here is rebuilt from server pushes on
// reconnect.
type Session struct {
	cfg    *config.Config
	logger *zap.Logger

	api       *api.Client
	settings  *settings.Manager
	store     *store.Store
	telemetry *telemetry.Emitter
	ring      *chain.Ring
	registry  *gametx.Registry
	engine    *gametx.Engine
	matches   *match.Manager
	socket    *socket.Client
	signer    sign.Signer

	mu        sync.RWMutex
	player    *Player
	sessionID string
}

// New wires a session from configuration. The signer is the injected signing
// capability; ext may be nil when no external signer application is
// available.
func New(cfg *config.Config, signer sign.Signer, ext broadcast.ExtensionClient, appVersion string, logger *zap.Logger) (*Session, error) {
	st, err := store.Open(cfg.Storage.Path, logger)
	if err != nil {
		return nil, err
	}

	deviceID, err := st.DeviceID()
	if err != nil {
		st.Close()
		return nil, err
	}

	s := &Session{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		signer:    signer,
		sessionID: "msid_" + uuid.NewString(),
	}

	s.api = api.NewClient(cfg.API.URL, cfg.API.Timeout, s.credentials, logger)
	s.settings = settings.NewManager(s.api, logger)
	if cfg.Chain.TestMode {
		// Local default until the first settings refresh arrives.
		s.settings.Set(settings.Settings{TestMode: true, Prefix: cfg.Chain.Prefix})
	}
	s.telemetry = telemetry.NewEmitter(s.api, deviceID, s.sessionID, logger)
	s.ring = chain.NewRing(cfg.Chain.Nodes, logger)
	s.registry = gametx.NewRegistry(logger)
	s.matches = match.NewManager(logger)

	node := chain.NewRPCClient(s.ring, cfg.API.Timeout, logger)
	selector := &broadcast.Selector{
		Local:  broadcast.NewLocalKeySigner(signer, node, logger),
		Relay:  broadcast.NewDelegatedRelay(s.api, logger),
		Server: broadcast.NewServerSideBroadcast(signer, s.api, logger),
	}
	if ext != nil {
		selector.Extension = broadcast.NewExtensionSigner(ext, logger)
	}

	s.engine = gametx.NewEngine(cfg.Tx, gametx.Deps{
		Codec:      gametx.NewCodec(cfg.Tx.MaxPayloadBytes, appVersion),
		Registry:   s.registry,
		Selector:   selector,
		Policy:     s.policy,
		Settings:   s.settings,
		Delegation: s.api,
		Telemetry:  s.telemetry,
		Rotator:    s.ring,
	}, logger)

	if cfg.Socket.URL != "" {
		s.socket = socket.NewClient(cfg.Socket, s, logger)
	}

	return s, nil
}

// Start loads settings and begins the background refresh loop. Call once
// before Login.
func (s *Session) Start(ctx context.Context) error {
	if err := s.settings.Refresh(ctx); err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	if nodes := s.settings.LedgerNodes(); len(nodes) > 0 {
		s.ring.SetNodes(nodes)
	}
	s.settings.OnVersionChange(func(_, _ string) {
		if nodes := s.settings.LedgerNodes(); len(nodes) > 0 {
			s.ring.SetNodes(nodes)
		}
	})
	go s.settings.Poll(ctx, time.Minute)
	return nil
}

// Close releases the session's resources.
func (s *Session) Close() error {
	if s.socket != nil {
		s.socket.Close()
	}
	return s.store.Close()
}

// Login authenticates the player, connects the push channel, and seeds the
// outstanding match if the server reports one.
func (s *Session) Login(ctx context.Context, name string) (Player, error) {
	name = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "@")
	if name == "" {
		return Player{}, fmt.Errorf("player name is required")
	}

	ts := time.Now().UnixMilli()
	sig, err := s.signer.Sign(ctx, []byte(name+strconv.FormatInt(ts, 10)), sign.AuthorityStandard)
	if err != nil {
		return Player{}, fmt.Errorf("signing login request: %w", err)
	}

	ref, _ := s.store.Referral()
	resp, err := s.api.Login(ctx, name, ref, ts, base64.StdEncoding.EncodeToString(sig))
	if err != nil {
		return Player{}, fmt.Errorf("login failed: %w", err)
	}

	player := Player{
		Name:            resp.Name,
		Token:           resp.Token,
		UseRelay:        resp.UseRelay,
		RequireElevated: resp.RequireElevated,
	}

	s.mu.Lock()
	s.player = &player
	s.mu.Unlock()

	if err := s.store.SaveLogin(player.Name); err != nil {
		s.logger.Warn("failed to persist login", zap.Error(err))
	}

	if s.socket != nil {
		if err := s.socket.Connect(ctx, player.Name, player.Token); err != nil {
			s.logger.Warn("push channel unavailable", zap.Error(err))
		}
	}

	if len(resp.OutstandingMatch) > 0 {
		s.seedOutstandingMatch(resp.OutstandingMatch)
	}

	s.telemetry.Emit(telemetry.EventLogin, nil)
	s.logger.Info("player logged in", zap.String("player", player.Name))
	return player, nil
}

// Logout clears the player, the current match, and the push channel. Pending
// confirmations expire on their own deadlines.
func (s *Session) Logout() {
	s.mu.Lock()
	name := ""
	if s.player != nil {
		name = s.player.Name
	}
	s.player = nil
	s.mu.Unlock()

	s.matches.Clear()
	if s.socket != nil {
		s.socket.Close()
	}
	if err := s.store.ClearLogin(); err != nil {
		s.logger.Warn("failed to clear saved login", zap.Error(err))
	}

	if name != "" {
		s.logger.Info("player logged out", zap.String("player", name))
	}
}

// Player returns the logged-in player, or false.
func (s *Session) Player() (Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.player == nil {
		return Player{}, false
	}
	return *s.player, true
}

// SubmitOperation broadcasts one game action through the engine.
func (s *Session) SubmitOperation(ctx context.Context, opID, label string, payload map[string]any) gametx.Result {
	if _, ok := s.Player(); !ok {
		return gametx.Result{Err: ErrNotLoggedIn}
	}
	return s.engine.Submit(ctx, opID, label, payload)
}

// WaitForMatch blocks until the player is matched with an opponent.
func (s *Session) WaitForMatch(ctx context.Context) (match.Match, error) {
	return s.matches.WaitForMatch(ctx)
}

// WaitForResult blocks until the current battle's result is available.
func (s *Session) WaitForResult(ctx context.Context) (match.Match, error) {
	return s.matches.WaitForResult(ctx)
}

// StartMatchmaking submits the find-match operation and seeds the match in
// the searching state. The ledger reference becomes the match id.
func (s *Session) StartMatchmaking(ctx context.Context, matchType string) (match.Match, error) {
	res := s.SubmitOperation(ctx, "find_match", "Find Match", map[string]any{
		"match_type": matchType,
	})
	if res.Err != nil {
		return match.Match{}, res.Err
	}

	status := match.StatusSearching
	return s.matches.Apply(match.Update{ID: res.TrxID, Status: &status}), nil
}

// SubmitTeam publishes the commitment hash for the player's team. The team
// itself is revealed only after both commitments are on the ledger: when the
// opponent already committed the reveal goes out right away, otherwise it is
// deferred until the opponent's commitment push arrives.
func (s *Session) SubmitTeam(ctx context.Context, team []string, secret string) error {
	cur, ok := s.matches.Current()
	if !ok {
		return &match.WaitError{Code: match.CodeNotInMatch, Message: "player is not currently in a match"}
	}

	hash := match.TeamCommitment(team, secret)
	res := s.SubmitOperation(ctx, "submit_team", "Submit Team", map[string]any{
		"match_id":  cur.ID,
		"team_hash": hash,
	})
	if res.Err != nil {
		return res.Err
	}

	s.matches.SetTeamHash(hash)

	if cur, ok := s.matches.Current(); ok && cur.OpponentTeamHash != "" {
		return s.RevealTeam(ctx, cur.ID)
	}
	s.matches.OnOpponentSubmit(func(matchID string) {
		go s.revealDeferred(matchID)
	})
	return nil
}

// RevealTeam publishes the team underlying the player's commitment.
func (s *Session) RevealTeam(ctx context.Context, matchID string) error {
	res := s.SubmitOperation(ctx, "team_reveal", "Reveal Team", map[string]any{
		"match_id": matchID,
	})
	if res.Err != nil {
		return res.Err
	}

	s.matches.MarkTeamRevealed()
	return nil
}

// WalletTransfer is an external wallet capability used for payments the SDK
// does not broadcast itself.
type WalletTransfer interface {
	Transfer(ctx context.Context, to, amount, currency string, memo []byte) error
}

// SendPayment runs a payment through an external wallet and waits for the
// server's confirmation push. Completion is observed solely via the push
// channel: the wallet's own acknowledgement only means the transfer was
// handed off, so the longer payment deadline applies.
func (s *Session) SendPayment(ctx context.Context, wallet WalletTransfer, to, amount, currency, opID string, payload map[string]any) gametx.Result {
	if _, ok := s.Player(); !ok {
		return gametx.Result{Err: ErrNotLoggedIn}
	}

	correlationID := uuid.NewString()
	data := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		data[k] = v
	}
	data[gametx.CorrelationField] = correlationID

	memo, err := json.Marshal([]any{opID, data})
	if err != nil {
		return gametx.Result{Err: fmt.Errorf("encoding payment memo: %w", err)}
	}

	if err := wallet.Transfer(ctx, to, amount, currency, memo); err != nil {
		return gametx.Result{Err: fmt.Errorf("wallet transfer: %w", err)}
	}

	return s.engine.AwaitConfirmation(ctx, correlationID, s.cfg.Tx.PaymentConfirmTimeout)
}

func (s *Session) credentials() api.Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.player == nil {
		return api.Credentials{}
	}
	return api.Credentials{Username: s.player.Name, Token: s.player.Token}
}

func (s *Session) policy() broadcast.PlayerPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.player == nil {
		return broadcast.PlayerPolicy{}
	}
	return broadcast.PlayerPolicy{
		Account:         s.player.Name,
		UseRelay:        s.player.UseRelay,
		RequireElevated: s.player.RequireElevated,
	}
}

// outstandingMatch is the login response's snapshot of a match that was in
// flight when the player last disconnected.
type outstandingMatch struct {
	ID               string `json:"id"`
	Status           int    `json:"status"`
	Opponent         string `json:"opponent,omitempty"`
	TeamHash         string `json:"team_hash,omitempty"`
	OpponentTeamHash string `json:"opponent_team_hash,omitempty"`
	TeamRevealed     bool   `json:"team_revealed,omitempty"`
}

// seedOutstandingMatch restores the in-flight match on login and arranges the
// commit-reveal hand-off: if the player committed but has not revealed, the
// reveal fires now when the opponent already committed, otherwise when the
// opponent's commitment push arrives.
func (s *Session) seedOutstandingMatch(raw json.RawMessage) {
	var om outstandingMatch
	if err := json.Unmarshal(raw, &om); err != nil {
		s.logger.Warn("undecodable outstanding match", zap.Error(err))
		return
	}
	if om.ID == "" {
		return
	}

	status := match.Status(om.Status)
	s.matches.Apply(match.Update{
		ID:               om.ID,
		Status:           &status,
		Opponent:         om.Opponent,
		TeamHash:         om.TeamHash,
		OpponentTeamHash: om.OpponentTeamHash,
	})

	if om.TeamHash == "" || om.TeamRevealed {
		return
	}

	if om.OpponentTeamHash != "" {
		go s.revealDeferred(om.ID)
		return
	}

	s.matches.OnOpponentSubmit(func(matchID string) {
		go s.revealDeferred(matchID)
	})
}

func (s *Session) revealDeferred(matchID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Tx.ConfirmTimeout+s.cfg.API.Timeout)
	defer cancel()

	if err := s.RevealTeam(ctx, matchID); err != nil {
		s.logger.Error("deferred team reveal failed",
			zap.String("match_id", matchID),
			zap.Error(err),
		)
	}
}

// HandleTransactionUpdate resolves the pending confirmation for a pushed
// transaction result.
func (s *Session) HandleTransactionUpdate(u socket.TransactionUpdate) {
	res := gametx.Result{
		Success: u.Success,
		TrxID:   u.TrxID,
		Info:    u.Info,
	}
	if !u.Success {
		res.Err = fmt.Errorf("transaction rejected: %s", u.Error)
	}

	if !s.registry.Resolve(u.CorrelationID, res) {
		s.logger.Debug("confirmation push with no pending entry",
			zap.String("correlation_id", u.CorrelationID),
		)
	}
}

// HandleMatchUpdate merges a pushed match state change.
func (s *Session) HandleMatchUpdate(u match.Update) {
	s.matches.Apply(u)
}

// HandleMatchCancelled clears the current match when the server reports the
// search ended without an opponent.
func (s *Session) HandleMatchCancelled(matchID string) {
	if cur, ok := s.matches.Current(); ok && cur.ID == matchID {
		s.matches.Clear()
	}
}
