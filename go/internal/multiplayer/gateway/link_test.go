package gateway_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mcdev12/voyager/go/internal/models"
	"github.com/mcdev12/voyager/go/internal/multiplayer/events"
	"github.com/mcdev12/voyager/go/internal/multiplayer/gateway"
	"github.com/mcdev12/voyager/go/internal/multiplayer/gateway/gatewaytest"
	"github.com/mcdev12/voyager/go/internal/multiplayer/mirror"
	"github.com/mcdev12/voyager/go/internal/multiplayer/router"
)

// watchedTransport counts writes that start after their conn was closed
type watchedTransport struct {
	*gatewaytest.Transport
	lateWrites atomic.Int64
}

func (t *watchedTransport) Dial(ctx context.Context, target gateway.Target) (gateway.Conn, error) {
	conn, err := t.Transport.Dial(ctx, target)
	if err != nil {
		return nil, err
	}
	return &watchedConn{Conn: conn, late: &t.lateWrites}, nil
}

type watchedConn struct {
	gateway.Conn
	late *atomic.Int64

	mu     sync.Mutex
	closed bool
}

func (c *watchedConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		c.late.Add(1)
	}
	return c.Conn.WriteMessage(data)
}

func (c *watchedConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.Conn.Close()
}

func TestNoWritesAfterDisconnect(t *testing.T) {
	tr := &watchedTransport{Transport: gatewaytest.NewTransport()}

	for run := 0; run < 50; run++ {
		cm := gateway.NewConnectionManager(tr, mirror.New(localIdentity.PlayerID), router.New(), testConfig())

		errCh := make(chan error, 1)
		go func() { errCh <- cm.Connect(context.Background(), localIdentity, "default") }()
		srv, err := tr.Accept(gatewaytest.DefaultWait)
		if err != nil {
			t.Fatalf("run %d: accept: %v", run, err)
		}
		if _, err := srv.Expect(events.KindJoin, gatewaytest.DefaultWait); err != nil {
			t.Fatalf("run %d: expect join: %v", run, err)
		}
		if err := srv.Send(events.KindSnapshot, events.Snapshot{}); err != nil {
			t.Fatalf("run %d: send snapshot: %v", run, err)
		}
		if err := <-errCh; err != nil {
			t.Fatalf("run %d: connect: %v", run, err)
		}

		for i := 0; i < 100; i++ {
			if err := cm.SendPositionUpdate(models.Transform{Position: models.Vec3{X: float64(i)}}); err != nil {
				t.Fatalf("run %d: send %d: %v", run, i, err)
			}
		}
		cm.Disconnect()
	}

	if n := tr.lateWrites.Load(); n != 0 {
		t.Fatalf("expected no writes after disconnect, got %d", n)
	}
}
