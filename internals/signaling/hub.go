package signaling

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Champion1102/Crossdrop-sub000/internals/config"
	"github.com/Champion1102/Crossdrop-sub000/internals/metrics"
	"github.com/Champion1102/Crossdrop-sub000/internals/state"
)

const maxNameLength = 50

// Hub owns the peer and room registries. A single coarse lock makes every
// registry read and mutation atomic with respect to concurrent handler
// execution; handlers, the supervisor sweeps, and connection teardown all
// run under it.
type Hub struct {
	cfg      *config.Config
	logger   *zap.Logger
	presence *state.Presence

	mu    sync.RWMutex
	peers map[string]*Client
	rooms map[string]*Room
	conns map[*websocket.Conn]string
}

func NewHub(cfg *config.Config, presence *state.Presence, logger *zap.Logger) *Hub {
	return &Hub{
		cfg:      cfg,
		logger:   logger,
		presence: presence,
		peers:    make(map[string]*Client),
		rooms:    make(map[string]*Room),
		conns:    make(map[*websocket.Conn]string),
	}
}

// Register mints a peer record for a freshly opened connection and emits
// the welcome frame. The caller starts the pumps (or, in tests, reads the
// send channel directly).
func (h *Hub) Register(conn *websocket.Conn, name string) *Client {
	name = truncateName(name)
	if name == "" {
		name = "Anonymous"
	}

	c := &Client{
		ID:           NewPeerID(),
		conn:         conn,
		send:         make(chan []byte, h.cfg.WebSocket.SendBuffer),
		hub:          h,
		logger:       h.logger,
		limiter:      rate.NewLimiter(rate.Limit(h.cfg.WebSocket.RateLimitPerSec), h.cfg.WebSocket.RateLimitBurst),
		name:         name,
		lastActivity: time.Now(),
		alive:        true,
		iceQueue:     make(map[string][]json.RawMessage),
	}

	h.mu.Lock()
	h.peers[c.ID] = c
	if conn != nil {
		h.conns[conn] = c.ID
	}
	c.enqueue(welcomeMessage{Type: MessageTypeWelcome, PeerID: c.ID, Name: c.name})
	h.mu.Unlock()

	metrics.ConnectionsTotal.Inc()
	metrics.ActivePeers.Inc()
	h.logger.Info("Peer connected",
		zap.String("peerID", c.ID),
		zap.String("name", name),
	)
	return c
}

// Attach registers the connection and starts its pumps.
func (h *Hub) Attach(conn *websocket.Conn, name string) *Client {
	c := h.Register(conn, name)
	go c.writePump()
	go c.readPump()
	return c
}

// unregister runs when a transport closes. Evicted or shut-down peers
// were already removed; their close is a no-op here.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id, ok := h.conns[c.conn]
	if !ok || id != c.ID {
		return
	}
	h.logger.Info("Peer disconnected", zap.String("peerID", c.ID))
	h.dropLocked(c, "")
}

// dropLocked broadcasts the departure to the peer's room, removes every
// registry reference, and closes the outbound path. Clearing the conns
// entry here is what breaks the transport<->record reference cycle.
func (h *Hub) dropLocked(c *Client, reason string) {
	if c.roomID != "" {
		h.broadcastLocked(c.roomID, c.ID, peerLeftMessage{Type: MessageTypePeerLeft, PeerID: c.ID, Reason: reason})
		h.leaveRoomLocked(c)
	}
	delete(h.peers, c.ID)
	if c.conn != nil {
		delete(h.conns, c.conn)
	}
	c.closeSend(websocket.CloseNormalClosure)
	metrics.ActivePeers.Dec()
}

// leaveRoomLocked detaches the peer from its room and reaps the room if
// it became empty.
func (h *Hub) leaveRoomLocked(c *Client) {
	room, ok := h.rooms[c.roomID]
	if !ok {
		c.roomID = ""
		return
	}
	room.remove(c.ID)
	h.presence.PeerLeft(room.ID, c.ID)
	if room.empty() {
		delete(h.rooms, room.ID)
		metrics.ActiveRooms.Dec()
		h.logger.Info("Room removed", zap.String("roomID", room.ID))
	}
	c.roomID = ""
}

func (h *Hub) broadcastLocked(roomID, exceptPeerID string, v any) {
	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	for _, member := range room.others(exceptPeerID) {
		if !member.enqueue(v) {
			h.logger.Debug("Broadcast delivery failed",
				zap.String("roomID", roomID),
				zap.String("peerID", member.ID),
			)
		}
	}
}

func (h *Hub) sendErrorLocked(c *Client, text string) {
	metrics.RecordError(errorKind(text))
	c.enqueue(newError(text))
}

// sendError is the unlocked variant used by the read pump for frames
// rejected before routing.
func (h *Hub) sendError(c *Client, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendErrorLocked(c, text)
}

func (h *Hub) markAlive(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.alive = true
}

// flushICELocked drains c's queue of candidates sent by fromPeerID and
// delivers them in arrival order. Draining an empty queue is a no-op, so
// the answer path and an explicit ready-for-candidates may both trigger it.
func (h *Hub) flushICELocked(c *Client, fromPeerID string) {
	queued := c.iceQueue[fromPeerID]
	if len(queued) == 0 {
		return
	}
	delete(c.iceQueue, fromPeerID)
	for _, candidate := range queued {
		c.enqueue(forwardMessage{Type: MessageTypeICECandidate, FromPeerID: fromPeerID, Candidate: candidate})
	}
	metrics.ICEFlushedTotal.Add(float64(len(queued)))
	h.logger.Debug("Flushed queued ICE candidates",
		zap.String("peerID", c.ID),
		zap.String("fromPeerID", fromPeerID),
		zap.Int("count", len(queued)),
	)
}

// Shutdown notifies every connected peer and tears the registries down.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.peers {
		c.enqueue(shutdownMessage{Type: MessageTypeServerShutdown})
		c.closeSend(websocket.CloseGoingAway)
	}

	count := len(h.peers)
	h.peers = make(map[string]*Client)
	h.rooms = make(map[string]*Room)
	h.conns = make(map[*websocket.Conn]string)
	metrics.ActivePeers.Set(0)
	metrics.ActiveRooms.Set(0)

	h.logger.Info("Signaling hub shut down", zap.Int("notifiedPeers", count))
}

// PeerStat is the per-peer view exposed on the stats endpoint.
type PeerStat struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	RoomID       string    `json:"roomId,omitempty"`
	LastActivity time.Time `json:"lastActivity"`
}

type RoomStats struct {
	Count           int `json:"count"`
	MaxRooms        int `json:"maxRooms"`
	MaxPeersPerRoom int `json:"maxPeersPerRoom"`
}

type Snapshot struct {
	PeerCount int
	Peers     []PeerStat
	Rooms     RoomStats
}

func (h *Hub) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	peers := make([]PeerStat, 0, len(h.peers))
	for _, c := range h.peers {
		peers = append(peers, PeerStat{
			ID:           c.ID,
			Name:         c.name,
			RoomID:       c.roomID,
			LastActivity: c.lastActivity,
		})
	}
	return Snapshot{
		PeerCount: len(peers),
		Peers:     peers,
		Rooms: RoomStats{
			Count:           len(h.rooms),
			MaxRooms:        h.cfg.Rooms.MaxRooms,
			MaxPeersPerRoom: h.cfg.Rooms.MaxPeersPerRoom,
		},
	}
}

func (h *Hub) RoomExists(roomID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[roomID]
	return ok
}

func truncateName(name string) string {
	runes := []rune(name)
	if len(runes) > maxNameLength {
		return string(runes[:maxNameLength])
	}
	return name
}

func errorKind(text string) string {
	switch text {
	case errInvalidJSON, errTypeRequired, errTooLarge:
		return "protocol"
	case errTargetRequired, errTargetNotFound:
		return "routing"
	case errRoomFull, errMaxRooms:
		return "capacity"
	case errRoomRequired, errInvalidRoomID:
		return "bad-request"
	case errNotInRoom:
		return "state"
	case errRateLimited:
		return "rate-limit"
	case errInternal:
		return "internal"
	default:
		return "protocol"
	}
}
