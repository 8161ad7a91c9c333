package profiles

import (
	"context"
	"errors"
	"time"

	"github.com/mcdev12/voyager/go/internal/models"
)

var (
	// ErrStoreUnavailable means the store could not serve the request
	ErrStoreUnavailable = errors.New("profile store unavailable")
	ErrMissingPlayerID  = errors.New("player id is required")
	ErrMissingSessionID = errors.New("session id is required")
)

const (
	// DefaultHighScoreLimit matches the leaderboard size the server broadcasts
	DefaultHighScoreLimit = 5
	// ActiveSessionWindow is how recently a session must have been updated to be listed
	ActiveSessionWindow = 5 * time.Minute
)

// Profile is the persisted state of a player at a session boundary
type Profile struct {
	PlayerID   string           `json:"player_id"`
	Name       string           `json:"name"`
	SessionID  string           `json:"session_id,omitempty"`
	Score      int              `json:"score"`
	ShipDamage int              `json:"ship_damage"`
	Position   *models.Vec3     `json:"position,omitempty"`
	Rotation   *models.Rotation `json:"rotation,omitempty"`
	LastActive time.Time        `json:"last_active"`
}

// HighScore is one row of the persisted leaderboard
type HighScore struct {
	PlayerID   string    `json:"player_id"`
	Name       string    `json:"name"`
	Score      int       `json:"score"`
	LastActive time.Time `json:"last_active"`
}

// Session summarizes a live game session
type Session struct {
	SessionID    string         `json:"session_id"`
	Weather      models.Weather `json:"weather,omitempty"`
	PlayersCount int            `json:"players_count"`
	LastUpdated  time.Time      `json:"last_updated"`
}

// Store persists player profiles outside the live session
type Store interface {
	UpsertProfile(ctx context.Context, p Profile) error
	ListSessionPlayers(ctx context.Context, sessionID string) ([]Profile, error)
	HighScores(ctx context.Context, sessionID string, limit int) ([]HighScore, error)
	ActiveSessions(ctx context.Context) ([]Session, error)
}

func validate(p Profile) error {
	if p.PlayerID == "" {
		return ErrMissingPlayerID
	}
	return nil
}
