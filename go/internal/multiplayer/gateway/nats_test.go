package gateway_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mcdev12/voyager/go/internal/models"
	"github.com/mcdev12/voyager/go/internal/multiplayer/events"
	"github.com/mcdev12/voyager/go/internal/multiplayer/gateway"
	"github.com/mcdev12/voyager/go/internal/multiplayer/mirror"
	"github.com/mcdev12/voyager/go/internal/multiplayer/router"
)

// testBroker speaks enough of the NATS client protocol (INFO, CONNECT,
// PING/PONG, SUB, UNSUB, PUB, HPUB) to route exact subjects in-process.
type testBroker struct {
	ln   net.Listener
	mu   sync.Mutex
	subs map[string][]brokerSub
}

type brokerSub struct {
	conn *brokerConn
	sid  string
}

type brokerConn struct {
	mu sync.Mutex
	nc net.Conn
}

func (c *brokerConn) write(line string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := []byte(line)
	if payload != nil {
		buf = append(buf, payload...)
		buf = append(buf, '\r', '\n')
	}
	_, _ = c.nc.Write(buf)
}

func startBroker(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	b := &testBroker{ln: ln, subs: make(map[string][]brokerSub)}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go b.serve(conn)
		}
	}()
	return "nats://" + ln.Addr().String()
}

func (b *testBroker) serve(conn net.Conn) {
	defer conn.Close()
	c := &brokerConn{nc: conn}
	defer b.drop(c)

	port := b.ln.Addr().(*net.TCPAddr).Port
	c.write(fmt.Sprintf(`INFO {"server_id":"voyager-test","version":"2.10.0","proto":1,"headers":true,"max_payload":1048576,"host":"127.0.0.1","port":%d}`+"\r\n", port), nil)

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch op := strings.ToUpper(fields[0]); op {
		case "PING":
			c.write("PONG\r\n", nil)
		case "SUB":
			b.mu.Lock()
			b.subs[fields[1]] = append(b.subs[fields[1]], brokerSub{conn: c, sid: fields[len(fields)-1]})
			b.mu.Unlock()
		case "UNSUB":
			b.unsubscribe(c, fields[1])
		case "PUB", "HPUB":
			args := fields[1:]
			sizes := 1
			if op == "HPUB" {
				sizes = 2
			}
			total, err := strconv.Atoi(args[len(args)-1])
			if err != nil {
				return
			}
			data := make([]byte, total+2)
			if _, err := io.ReadFull(r, data); err != nil {
				return
			}
			reply := ""
			if len(args) == sizes+2 {
				reply = args[1]
			}
			b.route(args[0], reply, args[len(args)-sizes:], data[:total])
		}
	}
}

func (b *testBroker) route(subject, reply string, sizes []string, data []byte) {
	b.mu.Lock()
	subs := append([]brokerSub(nil), b.subs[subject]...)
	b.mu.Unlock()

	op := "MSG"
	if len(sizes) == 2 {
		op = "HMSG"
	}
	for _, s := range subs {
		parts := []string{op, subject, s.sid}
		if reply != "" {
			parts = append(parts, reply)
		}
		parts = append(parts, sizes...)
		s.conn.write(strings.Join(parts, " ")+"\r\n", data)
	}
}

func (b *testBroker) unsubscribe(c *brokerConn, sid string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for subject, subs := range b.subs {
		kept := subs[:0]
		for _, s := range subs {
			if s.conn != c || s.sid != sid {
				kept = append(kept, s)
			}
		}
		b.subs[subject] = kept
	}
}

func (b *testBroker) drop(c *brokerConn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for subject, subs := range b.subs {
		kept := subs[:0]
		for _, s := range subs {
			if s.conn != c {
				kept = append(kept, s)
			}
		}
		b.subs[subject] = kept
	}
}

func connectNATS(t *testing.T, url string) *nats.Conn {
	t.Helper()
	nc, err := nats.Connect(url, nats.MaxReconnects(0))
	if err != nil {
		t.Fatalf("connect %s: %v", url, err)
	}
	t.Cleanup(nc.Close)
	return nc
}

func TestNATSTransportRoundTripKeepsOrder(t *testing.T) {
	url := startBroker(t)
	client := connectNATS(t, url)
	server := connectNATS(t, url)

	tr := gateway.NewNATSTransportConn(client, gateway.DefaultNATSConfig())
	received := make(chan *nats.Msg, 1)
	if _, err := server.Subscribe(tr.ClientSubject("reef"), func(msg *nats.Msg) { received <- msg }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := server.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	conn, err := tr.Dial(context.Background(), gateway.Target{SessionID: "reef", PlayerID: "me"})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := conn.WriteMessage([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}

	var first *nats.Msg
	select {
	case first = <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the client frame")
	}
	if string(first.Data) != "hello" || first.Header.Get("Player-Id") != "me" || first.Reply == "" {
		t.Fatalf("unexpected client frame %q header=%v reply=%q", first.Data, first.Header, first.Reply)
	}

	const n = 50
	for i := 0; i < n; i++ {
		if err := server.Publish(first.Reply, []byte(strconv.Itoa(i))); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	for i := 0; i < n; i++ {
		data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if string(data) != strconv.Itoa(i) {
			t.Fatalf("frame %d out of order: got %q", i, data)
		}
	}

	if err := conn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := conn.ReadMessage(); !errors.Is(err, gateway.ErrConnClosed) {
		t.Fatalf("expected ErrConnClosed after close, got %v", err)
	}
}

func TestConnectOverNATS(t *testing.T) {
	url := startBroker(t)
	client := connectNATS(t, url)
	server := connectNATS(t, url)

	tr := gateway.NewNATSTransportConn(client, gateway.DefaultNATSConfig())
	frames := make(chan events.Envelope, 8)
	_, err := server.Subscribe(tr.ClientSubject("default"), func(msg *nats.Msg) {
		var env events.Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			return
		}
		if env.Type == events.KindJoin {
			snap, _ := json.Marshal(events.Snapshot{Players: []models.Player{remote("p2", 3, 4)}, Weather: models.WeatherWindy})
			reply, _ := json.Marshal(events.Envelope{Type: events.KindSnapshot, Data: snap})
			_ = server.Publish(msg.Reply, reply)
		}
		frames <- env
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := server.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	m := mirror.New(localIdentity.PlayerID)
	cm := gateway.NewConnectionManager(tr, m, router.New(), testConfig())
	t.Cleanup(cm.Disconnect)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := cm.Connect(ctx, localIdentity, "default"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, ok := m.Player("p2"); !ok || m.Weather() != models.WeatherWindy {
		t.Fatalf("expected the snapshot in the mirror, weather=%q", m.Weather())
	}

	if err := cm.SendPositionUpdate(models.Transform{Position: models.Vec3{X: 7}}); err != nil {
		t.Fatalf("send: %v", err)
	}
	deadline := time.After(2 * time.Second)
	for {
		select {
		case env := <-frames:
			if env.Type == events.KindPositionUpdate {
				return
			}
		case <-deadline:
			t.Fatal("position update never reached the server")
		}
	}
}
