package events

import (
	"encoding/json"
)

// Envelope is the wire frame shared by every message
type Envelope struct {
	Type Kind            `json:"type"` // Message kind
	Data json.RawMessage `json:"data"` // Kind-specific payload
}

// Kind represents the type of a wire message
type Kind string

const (
	// Server to client
	KindSnapshot       Kind = "snapshot"
	KindPlayerJoined   Kind = "player_joined"
	KindPlayerLeft     Kind = "player_left"
	KindPlayerMoved    Kind = "player_moved"
	KindWeatherChanged Kind = "weather_changed"
	KindResourceUpdate Kind = "resource_update"
	KindLeaderboard    Kind = "leaderboard"

	// Client to server
	KindJoin              Kind = "join"
	KindStatusUpdate      Kind = "status_update"
	KindPositionUpdate    Kind = "position_update"
	KindResourceCollected Kind = "resource_collected"
)

// Legacy kinds emitted by the Socket.IO era server
const (
	legacyKindGameState      Kind = "game_state"
	legacyKindTreasureUpdate Kind = "treasure_update"
	legacyKindHighScores     Kind = "high_scores"
)

// InboundKinds lists every kind a client may receive, in dispatch-table order
var InboundKinds = []Kind{
	KindSnapshot,
	KindPlayerJoined,
	KindPlayerLeft,
	KindPlayerMoved,
	KindWeatherChanged,
	KindResourceUpdate,
	KindLeaderboard,
}

// Message is a decoded server message. The set of implementations is closed.
type Message interface {
	Kind() Kind
	inbound()
}

// Outbound is a message the client sends. The set of implementations is closed.
type Outbound interface {
	Kind() Kind
	outbound()
}

func (Snapshot) Kind() Kind       { return KindSnapshot }
func (PlayerJoined) Kind() Kind   { return KindPlayerJoined }
func (PlayerLeft) Kind() Kind     { return KindPlayerLeft }
func (PlayerMoved) Kind() Kind    { return KindPlayerMoved }
func (WeatherChanged) Kind() Kind { return KindWeatherChanged }
func (ResourceUpdate) Kind() Kind { return KindResourceUpdate }
func (Leaderboard) Kind() Kind    { return KindLeaderboard }

func (Snapshot) inbound()       {}
func (PlayerJoined) inbound()   {}
func (PlayerLeft) inbound()     {}
func (PlayerMoved) inbound()    {}
func (WeatherChanged) inbound() {}
func (ResourceUpdate) inbound() {}
func (Leaderboard) inbound()    {}

func (Join) Kind() Kind              { return KindJoin }
func (StatusUpdate) Kind() Kind      { return KindStatusUpdate }
func (PositionUpdate) Kind() Kind    { return KindPositionUpdate }
func (ResourceCollected) Kind() Kind { return KindResourceCollected }

func (Join) outbound()              {}
func (StatusUpdate) outbound()      {}
func (PositionUpdate) outbound()    {}
func (ResourceCollected) outbound() {}
