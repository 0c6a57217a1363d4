package server

import (
	"time"

	"github.com/bixboy/NetLessons/internal/session"
)

// RoundStatus describes the guessing round without revealing the secret.
type RoundStatus struct {
	State      string    `json:"state"`
	Round      int       `json:"round"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	Guesses    int       `json:"guesses"`
	LastWinner string    `json:"last_winner,omitempty"`
}

// LobbyStatus is an immutable snapshot of the lobby, published once per tick.
type LobbyStatus struct {
	Players   []session.PlayerInfo `json:"players"`
	Round     RoundStatus          `json:"round"`
	Tick      uint64               `json:"tick"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// StatusProvider returns the latest published snapshot. It must be safe to
// call from any goroutine.
type StatusProvider interface {
	Status() LobbyStatus
}
