package multiplayer

import (
	"github.com/mcdev12/voyager/go/internal/models"
	"github.com/mcdev12/voyager/go/internal/multiplayer/gateway"
)

// Status is a detached copy of client state, safe to hand to other goroutines
type Status struct {
	State          string                    `json:"state"`
	Reconnecting   bool                      `json:"reconnecting"`
	SessionID      string                    `json:"session_id"`
	PlayerID       string                    `json:"player_id"`
	DisplayName    string                    `json:"display_name"`
	RemotePlayers  int                       `json:"remote_players"`
	Resources      int                       `json:"resources"`
	Weather        models.Weather            `json:"weather"`
	Score          int                       `json:"score"`
	ConfirmedScore int                       `json:"confirmed_score"`
	Conflicts      int                       `json:"conflicts"`
	ShipDamage     int                       `json:"ship_damage"`
	PositionsSent  int                       `json:"positions_sent"`
	Leaderboard    []models.LeaderboardEntry `json:"leaderboard"`
	Connection     gateway.Stats             `json:"connection"`
	LastError      string                    `json:"last_error,omitempty"`
}
