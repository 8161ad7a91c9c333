package gateway

import (
	"sync/atomic"
)

// Metrics counts connection activity. Counters are atomic so a debug
// surface may read them from another goroutine.
type Metrics struct {
	MessagesReceived atomic.Int64
	MessagesSent     atomic.Int64
	SendDropped      atomic.Int64
	ProtocolErrors   atomic.Int64
	StaleFrames      atomic.Int64
	EarlyDeltas      atomic.Int64
	JoinFailures     atomic.Int64
	Joins            atomic.Int64
	Reconnects       atomic.Int64
}

// Stats is a point-in-time copy of Metrics
type Stats struct {
	MessagesReceived int64 `json:"messages_received"`
	MessagesSent     int64 `json:"messages_sent"`
	SendDropped      int64 `json:"send_dropped"`
	ProtocolErrors   int64 `json:"protocol_errors"`
	StaleFrames      int64 `json:"stale_frames"`
	EarlyDeltas      int64 `json:"early_deltas"`
	JoinFailures     int64 `json:"join_failures"`
	Joins            int64 `json:"joins"`
	Reconnects       int64 `json:"reconnects"`
}

// Snapshot returns a read-only copy
func (m *Metrics) Snapshot() Stats {
	return Stats{
		MessagesReceived: m.MessagesReceived.Load(),
		MessagesSent:     m.MessagesSent.Load(),
		SendDropped:      m.SendDropped.Load(),
		ProtocolErrors:   m.ProtocolErrors.Load(),
		StaleFrames:      m.StaleFrames.Load(),
		EarlyDeltas:      m.EarlyDeltas.Load(),
		JoinFailures:     m.JoinFailures.Load(),
		Joins:            m.Joins.Load(),
		Reconnects:       m.Reconnects.Load(),
	}
}
