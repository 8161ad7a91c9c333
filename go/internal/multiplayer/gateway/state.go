package gateway

import (
	"time"
)

// State represents the lifecycle of a session connection
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateJoined
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	}
	return "unknown"
}

// ConnectionConfig holds configuration for the session connection
type ConnectionConfig struct {
	JoinTimeout       time.Duration
	PingInterval      time.Duration // Zero disables client pings
	SendBufferSize    int
	InboundBufferSize int
	Reconnect         ReconnectPolicy
}

// DefaultConnectionConfig returns default connection configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		JoinTimeout:       10 * time.Second,
		PingInterval:      30 * time.Second,
		SendBufferSize:    256,
		InboundBufferSize: 1024,
		Reconnect:         DefaultReconnectPolicy(),
	}
}

func (c ConnectionConfig) withDefaults() ConnectionConfig {
	d := DefaultConnectionConfig()
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = d.JoinTimeout
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = d.SendBufferSize
	}
	if c.InboundBufferSize <= 0 {
		c.InboundBufferSize = d.InboundBufferSize
	}
	c.Reconnect = c.Reconnect.withDefaults()
	return c
}

// ReconnectPolicy configures automatic reconnection after an established
// session drops. A failed initial Connect never triggers it.
type ReconnectPolicy struct {
	Enabled     bool
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	MaxAttempts int // Zero means unlimited
}

// DefaultReconnectPolicy returns the default backoff schedule
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		Enabled:     true,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    15 * time.Second,
		Multiplier:  2,
		MaxAttempts: 8,
	}
}

func (p ReconnectPolicy) withDefaults() ReconnectPolicy {
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	return p
}

// Delay returns the wait before the given attempt, counted from 1
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
		if d >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	return time.Duration(d)
}

// Exhausted reports whether attempt is past the configured limit
func (p ReconnectPolicy) Exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt > p.MaxAttempts
}
