package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/mcdev12/voyager/go/internal/models"
)

func TestDecodeKinds(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Kind
	}{
		{"snapshot", `{"type":"snapshot","data":{"players":[],"resources":[],"weather":"windy"}}`, KindSnapshot},
		{"joined", `{"type":"player_joined","data":{"player_id":"p2","name":"Bo","position":{"x":1,"y":0,"z":2},"rotation":{"y":0.5}}}`, KindPlayerJoined},
		{"left", `{"type":"player_left","data":{"player_id":"p2"}}`, KindPlayerLeft},
		{"moved", `{"type":"player_moved","data":{"player_id":"p2","position":{"x":3,"y":0,"z":3},"rotation":{"y":1}}}`, KindPlayerMoved},
		{"weather", `{"type":"weather_changed","data":{"weather":"stormy"}}`, KindWeatherChanged},
		{"resources", `{"type":"resource_update","data":{"added":[{"id":"t2","kind":"treasure"}],"removed":["t1"]}}`, KindResourceUpdate},
		{"leaderboard", `{"type":"leaderboard","data":{"entries":[{"name":"Bo","score":40}]}}`, KindLeaderboard},
		{"legacy treasure update", `{"type":"treasure_update","data":{"added":[{"id":"t2"}],"removed":[]}}`, KindResourceUpdate},
		{"legacy high scores", `{"type":"high_scores","data":{"scores":[{"name":"Bo","score":40}]}}`, KindLeaderboard},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := Decode([]byte(tc.raw))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if msg.Kind() != tc.want {
				t.Fatalf("expected kind %q, got %q", tc.want, msg.Kind())
			}
		})
	}
}

func TestDecodeLegacyGameStateMergesResources(t *testing.T) {
	raw := `{"type":"game_state","data":{
		"players":[{"player_id":"p2","name":"Bo","position":{"x":0,"y":0,"z":0},"rotation":{"y":0}}],
		"treasures":[{"id":"t1","type":"gem","position":{"x":1,"y":0,"z":1}}],
		"hazards":[{"id":"h1","type":"whirlpool","position":{"x":5,"y":0,"z":5}}]}}`

	msg, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	snap, ok := msg.(Snapshot)
	if !ok {
		t.Fatalf("expected Snapshot, got %T", msg)
	}
	if snap.Weather != models.WeatherCalm {
		t.Fatalf("expected default weather calm, got %q", snap.Weather)
	}
	if len(snap.Resources) != 2 {
		t.Fatalf("expected 2 merged resources, got %d", len(snap.Resources))
	}
	kinds := map[string]models.ResourceKind{}
	for _, r := range snap.Resources {
		kinds[r.ID] = r.Kind
	}
	if kinds["t1"] != models.ResourceKindTreasure || kinds["h1"] != models.ResourceKindHazard {
		t.Fatalf("unexpected merged kinds: %v", kinds)
	}
	if got := snap.Resources[0].ScoreValue(); got != 25 {
		t.Fatalf("expected gem value 25, got %d", got)
	}
}

func TestDecodeGameStateFromSessionServer(t *testing.T) {
	// Shape emitted on join: camelCase player ids, the joiner listed too,
	// null scores for players that have not scored
	raw := `{"type":"game_state","data":{
		"session_id":"default",
		"player_id":"me",
		"weather":"foggy",
		"treasures":[{"id":"t1","type":"chest","position":{"x":10,"y":0,"z":-3},"value":50}],
		"hazards":[{"id":"h1","type":"rock","position":{"x":-20,"y":0,"z":4},"size":3.5}],
		"players":[
			{"playerId":"me","name":"Ada","position":{"x":0,"y":0.5,"z":0},"rotation":{"y":0},"score":null},
			{"playerId":"p2","name":"Bo","position":{"x":4,"y":0.5,"z":1},"rotation":{"y":1.5},"score":25}
		]}}`

	msg, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	snap := msg.(Snapshot)
	if snap.Weather != models.WeatherFoggy || snap.SessionID != "default" {
		t.Fatalf("unexpected session fields %+v", snap)
	}
	if len(snap.Players) != 1 {
		t.Fatalf("expected the joiner to be dropped, got %+v", snap.Players)
	}
	if p := snap.Players[0]; p.ID != "p2" || p.DisplayName != "Bo" || p.Score != 25 || p.Rotation.Y != 1.5 {
		t.Fatalf("unexpected player %+v", p)
	}
	if len(snap.Resources) != 2 {
		t.Fatalf("expected 2 resources, got %d", len(snap.Resources))
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		unknown bool
	}{
		{"not json", `{"type":`, false},
		{"unknown kind", `{"type":"fireworks","data":{}}`, true},
		{"joined without id", `{"type":"player_joined","data":{"name":"Bo"}}`, false},
		{"moved without id", `{"type":"player_moved","data":{}}`, false},
		{"left without data", `{"type":"player_left"}`, false},
		{"bad weather", `{"type":"weather_changed","data":{"weather":"sunny"}}`, false},
		{"snapshot bad weather", `{"type":"snapshot","data":{"weather":"hail"}}`, false},
		{"resource without id", `{"type":"resource_update","data":{"added":[{"kind":"treasure"}]}}`, false},
		{"resource bad kind", `{"type":"resource_update","data":{"added":[{"id":"x","kind":"banana"}]}}`, false},
		{"empty removed id", `{"type":"resource_update","data":{"removed":[""]}}`, false},
		{"snapshot resource without kind", `{"type":"snapshot","data":{"resources":[{"id":"r1"}]}}`, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.raw))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.Is(err, ErrProtocol) {
				t.Fatalf("expected ErrProtocol, got %v", err)
			}
			if errors.Is(err, ErrUnknownKind) != tc.unknown {
				t.Fatalf("unexpected ErrUnknownKind match for %v", err)
			}
			var perr *ProtocolError
			if !errors.As(err, &perr) {
				t.Fatalf("expected *ProtocolError, got %T", err)
			}
		})
	}
}

func TestDecodeResourceUpdateCollectedBy(t *testing.T) {
	raw := `{"type":"resource_update","data":{"added":[],"removed":["t1"],"collected_by":"p2"}}`
	msg, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	upd := msg.(ResourceUpdate)
	if upd.CollectedBy != "p2" || len(upd.Removed) != 1 || upd.Removed[0] != "t1" {
		t.Fatalf("unexpected update %+v", upd)
	}
}

func TestEncodeWrapsEnvelope(t *testing.T) {
	frame, err := Encode(PositionUpdate{
		PlayerID:  "p1",
		SessionID: "s1",
		Position:  models.Vec3{X: 1, Y: 2, Z: 3},
		Rotation:  models.Rotation{Y: 0.25},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var env struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(frame, &env); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if env.Type != string(KindPositionUpdate) {
		t.Fatalf("expected type %q, got %q", KindPositionUpdate, env.Type)
	}
	if env.Data["player_id"] != "p1" || env.Data["session_id"] != "s1" {
		t.Fatalf("unexpected data %v", env.Data)
	}
	pos, ok := env.Data["position"].(map[string]any)
	if !ok || pos["z"] != 3.0 {
		t.Fatalf("unexpected position %v", env.Data["position"])
	}
}

func TestEncodeJoinUsesPlayerName(t *testing.T) {
	frame, err := Encode(Join{PlayerID: "p1", DisplayName: "Ada", SessionID: "s1"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"type":"join","data":{"player_id":"p1","player_name":"Ada","session_id":"s1"}}`
	if string(frame) != want {
		t.Fatalf("expected %s, got %s", want, frame)
	}
}
