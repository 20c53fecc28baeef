package signaling

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Champion1102/Crossdrop-sub000/internals/metrics"
)

// Run drives the two liveness sweeps until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	heartbeat := time.NewTicker(h.cfg.Heartbeat.Interval)
	cleanup := time.NewTicker(h.cfg.Cleanup.Interval)
	defer heartbeat.Stop()
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			h.heartbeatSweep()
		case <-cleanup.C:
			h.staleSweep()
		}
	}
}

// heartbeatSweep is the mark-and-ping round: peers still unmarked from the
// previous round are evicted, everyone else is unmarked and pinged. A peer
// therefore has exactly one interval to produce some inbound activity.
func (h *Hub) heartbeatSweep() {
	h.mu.Lock()
	defer h.mu.Unlock()

	var dead []*Client
	for _, c := range h.peers {
		if !c.alive {
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		h.logger.Warn("Peer missed heartbeat, evicting",
			zap.String("peerID", c.ID),
			zap.String("roomID", c.roomID),
		)
		h.evictLocked(c, ReasonTimeout)
	}

	ping := heartbeatMessage{Type: MessageTypePing, Timestamp: time.Now().UnixMilli()}
	for _, c := range h.peers {
		c.alive = false
		c.enqueue(ping)
	}
}

// staleSweep evicts peers whose transport stayed open without carrying any
// traffic for longer than the inactivity threshold.
func (h *Hub) staleSweep() {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := time.Now().Add(-h.cfg.Cleanup.PeerTimeout)
	var stale []*Client
	for _, c := range h.peers {
		if c.lastActivity.Before(cutoff) {
			stale = append(stale, c)
		}
	}
	for _, c := range stale {
		h.logger.Warn("Peer inactive, evicting",
			zap.String("peerID", c.ID),
			zap.Duration("inactive", time.Since(c.lastActivity)),
		)
		h.evictLocked(c, ReasonStale)
	}
}

// evictLocked is silent toward the evicted peer itself; roommates get the
// departure with its reason before the record is destroyed.
func (h *Hub) evictLocked(c *Client, reason string) {
	metrics.RecordEviction(reason)
	h.dropLocked(c, reason)
}
