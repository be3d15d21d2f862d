package match

import (
	"fmt"
	"time"
)

// Status is the match lifecycle state. Progression is monotonic:
// searching → matched → resolved.
type Status int

const (
	StatusSearching Status = iota
	StatusMatched
	StatusResolved
)

func (s Status) String() string {
	switch s {
	case StatusSearching:
		return "SEARCHING"
	case StatusMatched:
		return "MATCHED"
	case StatusResolved:
		return "RESOLVED"
	default:
		return "UNKNOWN"
	}
}

// Wait rejection codes, stable so calling UI can branch on them.
const (
	CodeNotLookingForMatch = "not_looking_for_match"
	CodeNotInMatch         = "not_in_match"
)

// WaitError is a structured matchmaking rejection.
type WaitError struct {
	Code    string
	Message string
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Match is a snapshot of the session's current match.
type Match struct {
	ID               string
	Status           Status
	Opponent         string
	TeamHash         string
	OpponentTeamHash string
	TeamRevealed     bool
	CreatedAt        time.Time
}

// Update is one externally pushed match state change. Empty fields leave the
// current value untouched; Status is only applied forward.
type Update struct {
	ID               string  `json:"id"`
	Status           *Status `json:"status,omitempty"`
	Opponent         string  `json:"opponent,omitempty"`
	TeamHash         string  `json:"team_hash,omitempty"`
	OpponentTeamHash string  `json:"opponent_team_hash,omitempty"`
}
