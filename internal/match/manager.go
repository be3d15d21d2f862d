package match

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager tracks the session's single in-flight match and lets callers block
// until an opponent is found or a battle result arrives. State is mutated
// only by pushed updates merged into the current match; a different match id
// replaces it wholesale.
type Manager struct {
	mu      sync.Mutex
	current *Match
	changed chan struct{} // closed and replaced on every state change

	onOpponentSubmit func(matchID string) // single-use, cleared once invoked

	logger *zap.Logger
}

// NewManager creates a match manager with no active match.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		changed: make(chan struct{}),
		logger:  logger,
	}
}

// Current returns the current match snapshot, or false when none is live.
func (m *Manager) Current() (Match, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Match{}, false
	}
	return *m.current, true
}

// Apply merges a pushed update into the current match. A new id replaces the
// match wholesale; status never regresses. Returns the updated snapshot.
func (m *Manager) Apply(u Update) Match {
	m.mu.Lock()

	if m.current == nil || m.current.ID != u.ID {
		m.current = &Match{
			ID:        u.ID,
			CreatedAt: time.Now(),
		}
		m.logger.Info("match started", zap.String("match_id", u.ID))
	}

	cur := m.current
	if u.Status != nil && *u.Status > cur.Status {
		cur.Status = *u.Status
	}
	if u.Opponent != "" {
		cur.Opponent = u.Opponent
	}
	if u.TeamHash != "" {
		cur.TeamHash = u.TeamHash
	}

	var hook func(string)
	if u.OpponentTeamHash != "" && cur.OpponentTeamHash == "" {
		cur.OpponentTeamHash = u.OpponentTeamHash
		hook = m.onOpponentSubmit
		m.onOpponentSubmit = nil
	}

	snapshot := *cur
	m.notifyLocked()
	m.mu.Unlock()

	if hook != nil {
		hook(snapshot.ID)
	}
	return snapshot
}

// SetTeamHash records the player's own commitment on the current match.
func (m *Manager) SetTeamHash(hash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.TeamHash = hash
		m.notifyLocked()
	}
}

// MarkTeamRevealed records that the reveal operation went out.
func (m *Manager) MarkTeamRevealed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.TeamRevealed = true
		m.notifyLocked()
	}
}

// OnOpponentSubmit registers a single-use hook fired when the opponent's
// commitment push arrives. A live opponent commitment does not fire it; the
// caller checks that case before registering.
func (m *Manager) OnOpponentSubmit(fn func(matchID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOpponentSubmit = fn
}

// Clear drops the current match, e.g. on logout or matchmaking cancel.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	m.onOpponentSubmit = nil
	m.notifyLocked()
}

// WaitForMatch blocks until the player has been matched with an opponent.
// Resolves immediately when status is already matched or beyond; rejects
// immediately with not_looking_for_match when no match is live.
func (m *Manager) WaitForMatch(ctx context.Context) (Match, error) {
	return m.wait(ctx, StatusMatched, &WaitError{
		Code:    CodeNotLookingForMatch,
		Message: "player is not currently looking for a match",
	})
}

// WaitForResult blocks until the battle result is available. Rejects
// immediately with not_in_match when no match is live.
func (m *Manager) WaitForResult(ctx context.Context) (Match, error) {
	return m.wait(ctx, StatusResolved, &WaitError{
		Code:    CodeNotInMatch,
		Message: "player is not currently in a match",
	})
}

func (m *Manager) wait(ctx context.Context, want Status, noMatch *WaitError) (Match, error) {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return Match{}, noMatch
	}
	id := m.current.ID

	for {
		if m.current.Status >= want {
			snapshot := *m.current
			m.mu.Unlock()
			return snapshot, nil
		}
		ch := m.changed
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return Match{}, ctx.Err()
		case <-ch:
		}

		m.mu.Lock()
		if m.current == nil || m.current.ID != id {
			// The match was cleared or replaced while waiting.
			m.mu.Unlock()
			return Match{}, noMatch
		}
	}
}

func (m *Manager) notifyLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
}
