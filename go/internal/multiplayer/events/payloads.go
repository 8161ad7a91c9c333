package events

import (
	"github.com/mcdev12/voyager/go/internal/models"
)

// Snapshot is the full session state sent on join and on every resync
type Snapshot struct {
	SessionID string                  `json:"session_id,omitempty"`
	PlayerID  string                  `json:"player_id,omitempty"` // Echo of the joining player
	Players   []models.Player         `json:"players"`
	Resources []models.SharedResource `json:"resources"`
	Weather   models.Weather          `json:"weather"`
}

// PlayerJoined announces a player entering the session
type PlayerJoined struct {
	PlayerID    string          `json:"player_id"`
	DisplayName string          `json:"name"`
	Position    models.Vec3     `json:"position"`
	Rotation    models.Rotation `json:"rotation"`
}

// PlayerLeft announces a player leaving the session
type PlayerLeft struct {
	PlayerID string `json:"player_id"`
}

// PlayerMoved carries a remote player's latest reported transform
type PlayerMoved struct {
	PlayerID string          `json:"player_id"`
	Position models.Vec3     `json:"position"`
	Rotation models.Rotation `json:"rotation"`
	Velocity *models.Vec3    `json:"velocity,omitempty"`
}

// WeatherChanged overwrites the session weather
type WeatherChanged struct {
	Weather models.Weather `json:"weather"`
}

// ResourceUpdate removes and then adds shared resources.
// CollectedBy, when the server sets it, names the player credited for the
// removals in this update.
type ResourceUpdate struct {
	Added       []models.SharedResource `json:"added"`
	Removed     []string                `json:"removed"`
	CollectedBy string                  `json:"collected_by,omitempty"`
}

// Leaderboard is the session high score table
type Leaderboard struct {
	Entries []models.LeaderboardEntry `json:"entries"`
}

// Join requests entry into a session
type Join struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"player_name"`
	SessionID   string `json:"session_id"`
}

// StatusUpdate reports the local player's score and damage
type StatusUpdate struct {
	PlayerID   string `json:"player_id"`
	SessionID  string `json:"session_id"`
	Score      int    `json:"score"`
	ShipDamage int    `json:"ship_damage"`
}

// PositionUpdate reports the local player's transform
type PositionUpdate struct {
	PlayerID  string          `json:"player_id"`
	SessionID string          `json:"session_id"`
	Position  models.Vec3     `json:"position"`
	Rotation  models.Rotation `json:"rotation"`
	Velocity  models.Vec3     `json:"velocity"`
}

// ResourceCollected claims a resource for the local player
type ResourceCollected struct {
	PlayerID   string      `json:"player_id"`
	SessionID  string      `json:"session_id"`
	ResourceID string      `json:"resource_id"`
	Position   models.Vec3 `json:"position"`
}
