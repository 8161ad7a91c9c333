package models

// Identity is the stable identity of this installation's player
type Identity struct {
	PlayerID    string `json:"player_id" yaml:"player_id"`
	DisplayName string `json:"display_name" yaml:"display_name"`
}

// DefaultDisplayName is used until the player picks a name
const DefaultDisplayName = "Player"

// Player represents a player inside a session.
// The local player's record is written by physics; every other record is a
// follower updated only by incoming messages.
type Player struct {
	ID          string   `json:"player_id"`
	DisplayName string   `json:"name"`
	Position    Vec3     `json:"position"`
	Rotation    Rotation `json:"rotation"`
	Velocity    *Vec3    `json:"velocity,omitempty"` // Optional - derived when absent
	Score       int      `json:"score,omitempty"`
}

// Transform returns the player's transform, with a zero velocity when none was reported
func (p Player) Transform() Transform {
	t := Transform{Position: p.Position, Rotation: p.Rotation}
	if p.Velocity != nil {
		t.Velocity = *p.Velocity
	}
	return t
}

// LeaderboardEntry is a single row of the session high score table
type LeaderboardEntry struct {
	PlayerID    string `json:"player_id,omitempty"`
	DisplayName string `json:"name"`
	Score       int    `json:"score"`
}
