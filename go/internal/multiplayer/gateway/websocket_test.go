package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcdev12/voyager/go/internal/models"
	"github.com/mcdev12/voyager/go/internal/multiplayer/events"
	"github.com/mcdev12/voyager/go/internal/multiplayer/gateway"
	"github.com/mcdev12/voyager/go/internal/multiplayer/mirror"
	"github.com/mcdev12/voyager/go/internal/multiplayer/router"
)

func writeEnvelope(t *testing.T, conn *websocket.Conn, kind events.Kind, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Errorf("marshal payload: %v", err)
		return
	}
	if err := conn.WriteJSON(events.Envelope{Type: kind, Data: data}); err != nil {
		t.Errorf("write %s: %v", kind, err)
	}
}

func TestWebSocketTransportJoinAndDeltas(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	queries := make(chan map[string]string, 1)
	joins := make(chan events.Join, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		queries <- map[string]string{
			"session_id":  q.Get("session_id"),
			"player_id":   q.Get("player_id"),
			"player_name": q.Get("player_name"),
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var env events.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Errorf("read join: %v", err)
			return
		}
		var join events.Join
		json.Unmarshal(env.Data, &join)
		joins <- join

		writeEnvelope(t, conn, events.KindSnapshot, events.Snapshot{
			Players: []models.Player{{ID: "player-b", DisplayName: "Bo"}},
			Weather: models.WeatherCalm,
		})
		writeEnvelope(t, conn, events.KindPlayerMoved, events.PlayerMoved{
			PlayerID: "player-b",
			Position: models.Vec3{X: 7, Z: 7},
		})

		// Hold the connection open until the client closes it
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	transport := gateway.NewWebSocketTransport(gateway.DefaultWebSocketConfig(wsURL))
	m := mirror.New(localIdentity.PlayerID)
	cm := gateway.NewConnectionManager(transport, m, router.New(), testConfig())
	defer cm.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cm.Connect(ctx, localIdentity, "default"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	q := <-queries
	if q["session_id"] != "default" || q["player_id"] != "player-a" || q["player_name"] != "Ada" {
		t.Fatalf("unexpected query %v", q)
	}
	if join := <-joins; join.SessionID != "default" || join.DisplayName != "Ada" {
		t.Fatalf("unexpected join %+v", join)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		cm.Poll()
		if p, ok := m.Player("player-b"); ok && p.Position.X == 7 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("player_moved never reached the mirror")
}
