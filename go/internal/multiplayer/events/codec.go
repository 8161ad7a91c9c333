package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/voyager/go/internal/models"
)

var (
	// ErrProtocol marks every decoding or validation failure
	ErrProtocol = errors.New("protocol error")
	// ErrUnknownKind is returned for an envelope type this client does not handle
	ErrUnknownKind = errors.New("unknown message kind")
)

// ProtocolError describes a malformed or unrecognized server message
type ProtocolError struct {
	Kind Kind
	Err  error
}

func (e *ProtocolError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("protocol error: %v", e.Err)
	}
	return fmt.Sprintf("protocol error in %s: %v", e.Kind, e.Err)
}

func (e *ProtocolError) Unwrap() []error { return []error{ErrProtocol, e.Err} }

func protocolErr(kind Kind, format string, args ...any) error {
	return &ProtocolError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// legacySnapshot is the game_state payload of the Socket.IO era server, which kept
// treasures and hazards in separate lists
type legacySnapshot struct {
	Snapshot
	Players   []legacyPlayer          `json:"players"`
	Treasures []models.SharedResource `json:"treasures"`
	Hazards   []models.SharedResource `json:"hazards"`
	Powerups  []models.SharedResource `json:"powerups"`
}

// legacyPlayer accepts the camelCase playerId key of session player lists
type legacyPlayer struct {
	models.Player
	LegacyID string `json:"playerId"`
}

type legacyHighScores struct {
	Scores []models.LeaderboardEntry `json:"scores"`
}

// Decode parses one wire frame into its typed message
func Decode(raw []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &ProtocolError{Err: fmt.Errorf("unmarshal envelope: %w", err)}
	}
	return DecodeEnvelope(env)
}

// DecodeEnvelope parses the payload of an already unwrapped envelope
func DecodeEnvelope(env Envelope) (Message, error) {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		env.Data = json.RawMessage("{}")
	}

	switch env.Type {
	case KindSnapshot, legacyKindGameState:
		var payload legacySnapshot
		if err := unmarshal(env, &payload); err != nil {
			return nil, err
		}
		return payload.normalize()

	case KindPlayerJoined:
		var payload PlayerJoined
		if err := unmarshal(env, &payload); err != nil {
			return nil, err
		}
		if payload.PlayerID == "" {
			return nil, protocolErr(KindPlayerJoined, "missing player_id")
		}
		return payload, nil

	case KindPlayerLeft:
		var payload PlayerLeft
		if err := unmarshal(env, &payload); err != nil {
			return nil, err
		}
		if payload.PlayerID == "" {
			return nil, protocolErr(KindPlayerLeft, "missing player_id")
		}
		return payload, nil

	case KindPlayerMoved:
		var payload PlayerMoved
		if err := unmarshal(env, &payload); err != nil {
			return nil, err
		}
		if payload.PlayerID == "" {
			return nil, protocolErr(KindPlayerMoved, "missing player_id")
		}
		return payload, nil

	case KindWeatherChanged:
		var payload struct {
			Weather string `json:"weather"`
		}
		if err := unmarshal(env, &payload); err != nil {
			return nil, err
		}
		w, err := models.ParseWeather(payload.Weather)
		if err != nil {
			return nil, &ProtocolError{Kind: KindWeatherChanged, Err: err}
		}
		return WeatherChanged{Weather: w}, nil

	case KindResourceUpdate, legacyKindTreasureUpdate:
		var payload ResourceUpdate
		if err := unmarshal(env, &payload); err != nil {
			return nil, err
		}
		added, err := normalizeResources(KindResourceUpdate, payload.Added, models.ResourceKindTreasure)
		if err != nil {
			return nil, err
		}
		payload.Added = added
		for _, id := range payload.Removed {
			if id == "" {
				return nil, protocolErr(KindResourceUpdate, "empty id in removed list")
			}
		}
		return payload, nil

	case KindLeaderboard:
		var payload Leaderboard
		if err := unmarshal(env, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case legacyKindHighScores:
		var payload legacyHighScores
		if err := unmarshal(env, &payload); err != nil {
			return nil, err
		}
		return Leaderboard{Entries: payload.Scores}, nil

	default:
		return nil, &ProtocolError{Kind: env.Type, Err: ErrUnknownKind}
	}
}

// Encode wraps an outbound message in its envelope
func Encode(msg Outbound) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msg.Kind(), err)
	}
	frame, err := json.Marshal(Envelope{Type: msg.Kind(), Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msg.Kind(), err)
	}
	return frame, nil
}

func unmarshal(env Envelope, v any) error {
	if err := json.Unmarshal(env.Data, v); err != nil {
		return &ProtocolError{Kind: env.Type, Err: fmt.Errorf("unmarshal payload: %w", err)}
	}
	return nil
}

func (s legacySnapshot) normalize() (Message, error) {
	out := s.Snapshot
	if out.Weather == "" {
		out.Weather = models.WeatherCalm
	} else if _, err := models.ParseWeather(string(out.Weather)); err != nil {
		return nil, &ProtocolError{Kind: KindSnapshot, Err: err}
	}

	out.Players = make([]models.Player, 0, len(s.Players))
	for _, lp := range s.Players {
		p := lp.Player
		if p.ID == "" {
			p.ID = lp.LegacyID
		}
		if p.ID == "" {
			return nil, protocolErr(KindSnapshot, "player without player_id")
		}
		// The player list includes the joining player, echoed as player_id
		if out.PlayerID != "" && p.ID == out.PlayerID {
			continue
		}
		out.Players = append(out.Players, p)
	}

	resources, err := normalizeResources(KindSnapshot, out.Resources, "")
	if err != nil {
		return nil, err
	}
	for _, legacy := range []struct {
		list []models.SharedResource
		kind models.ResourceKind
	}{
		{s.Treasures, models.ResourceKindTreasure},
		{s.Hazards, models.ResourceKindHazard},
		{s.Powerups, models.ResourceKindPowerup},
	} {
		extra, err := normalizeResources(KindSnapshot, legacy.list, legacy.kind)
		if err != nil {
			return nil, err
		}
		resources = append(resources, extra...)
	}
	out.Resources = resources
	return out, nil
}

// normalizeResources validates ids and kinds. When fallback is set, resources
// without a kind take it; otherwise a missing kind is an error.
func normalizeResources(kind Kind, list []models.SharedResource, fallback models.ResourceKind) ([]models.SharedResource, error) {
	out := make([]models.SharedResource, 0, len(list))
	for _, r := range list {
		if r.ID == "" {
			return nil, protocolErr(kind, "resource without id")
		}
		if r.Kind == "" {
			r.Kind = fallback
		}
		if !r.Kind.Valid() {
			return nil, protocolErr(kind, "resource %s has unknown kind %q", r.ID, r.Kind)
		}
		out = append(out, r)
	}
	return out, nil
}
