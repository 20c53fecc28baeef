package state

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key and channel layout for the presence mirror.
const (
	roomPeersKeyPrefix = "signaling:room:"
	roomPeersKeySuffix = ":peers"
	eventsChannel      = "signaling:events"
)

func roomPeersKey(roomID string) string {
	return roomPeersKeyPrefix + roomID + roomPeersKeySuffix
}

type presenceEvent struct {
	Event  string `json:"event"`
	RoomID string `json:"roomId"`
	PeerID string `json:"peerId"`
	Name   string `json:"name,omitempty"`
	At     int64  `json:"at"`
}

// Presence mirrors room occupancy into Redis for external dashboards.
// It is write-only and strictly an observer: the in-memory registries stay
// authoritative, and every method is a no-op on a nil receiver, so the
// server runs unchanged when the mirror is disabled or Redis is down.
type Presence struct {
	redis  *redis.Client
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewPresence(addr, password string, db int, logger *zap.Logger) (*Presence, error) {
	ctx, cancel := context.WithCancel(context.Background())

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		cancel()
		return nil, err
	}

	logger.Info("Presence mirror connected",
		zap.String("addr", addr),
		zap.Int("db", db),
	)

	return &Presence{
		redis:  client,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

func (p *Presence) PeerJoined(roomID, peerID, name string) {
	if p == nil {
		return
	}
	go func() {
		if err := p.redis.SAdd(p.ctx, roomPeersKey(roomID), peerID).Err(); err != nil {
			p.logger.Warn("Presence update failed",
				zap.String("roomID", roomID),
				zap.Error(err),
			)
			return
		}
		p.publish(presenceEvent{Event: "peer-joined", RoomID: roomID, PeerID: peerID, Name: name})
	}()
}

func (p *Presence) PeerLeft(roomID, peerID string) {
	if p == nil {
		return
	}
	go func() {
		if err := p.redis.SRem(p.ctx, roomPeersKey(roomID), peerID).Err(); err != nil {
			p.logger.Warn("Presence update failed",
				zap.String("roomID", roomID),
				zap.Error(err),
			)
			return
		}
		p.publish(presenceEvent{Event: "peer-left", RoomID: roomID, PeerID: peerID})
	}()
}

func (p *Presence) publish(ev presenceEvent) {
	ev.At = time.Now().UnixMilli()
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := p.redis.Publish(p.ctx, eventsChannel, data).Err(); err != nil {
		p.logger.Warn("Presence publish failed", zap.Error(err))
	}
}

func (p *Presence) Close() {
	if p == nil {
		return
	}
	p.cancel()
	if err := p.redis.Close(); err != nil {
		p.logger.Warn("Failed to close presence mirror", zap.Error(err))
	}
}
