package signaling

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/Champion1102/Crossdrop-sub000/internals/metrics"
)

// route decodes one inbound frame and dispatches it. Everything runs under
// the hub lock; a handler panic is masked with a generic error envelope and
// the connection stays open.
func (h *Hub) route(c *Client, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Handler panic",
				zap.String("peerID", c.ID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			h.sendErrorLocked(c, errInternal)
		}
	}()

	// A frame can still be in flight when the supervisor evicts its peer;
	// work for a gone peer is abandoned.
	if current, ok := h.peers[c.ID]; !ok || current != c {
		return
	}

	if !c.limiter.Allow() {
		h.sendErrorLocked(c, errRateLimited)
		return
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		h.sendErrorLocked(c, errInvalidJSON)
		return
	}
	if msg.Type == "" {
		h.sendErrorLocked(c, errTypeRequired)
		return
	}

	metrics.RecordMessage(string(msg.Type))

	// Any inbound frame counts as liveness.
	c.lastActivity = time.Now()
	c.alive = true

	switch msg.Type {
	case MessageTypeJoin:
		h.handleJoin(c, &msg)
	case MessageTypeLeave:
		h.handleLeave(c)
	case MessageTypeOffer:
		h.handleOffer(c, &msg)
	case MessageTypeAnswer:
		h.handleAnswer(c, &msg)
	case MessageTypeICECandidate:
		h.handleICECandidate(c, &msg)
	case MessageTypeReadyForCandidates:
		h.handleReadyForCandidates(c, &msg)
	case MessageTypeFileRequest, MessageTypeFileAccept, MessageTypeFileReject:
		h.handleFileSignal(c, &msg)
	case MessageTypePing:
		c.enqueue(heartbeatMessage{Type: MessageTypePong, Timestamp: time.Now().UnixMilli()})
	case MessageTypePong:
		// alive already marked above
	default:
		h.sendErrorLocked(c, "Unknown message type: "+string(msg.Type))
	}
}

func (h *Hub) handleJoin(c *Client, msg *Message) {
	roomID := msg.RoomID
	if roomID == "" {
		h.sendErrorLocked(c, errRoomRequired)
		return
	}
	if !IsValidRoomID(roomID) {
		h.sendErrorLocked(c, errInvalidRoomID)
		return
	}
	if msg.Name != "" {
		c.name = truncateName(msg.Name)
	}

	// A current member joining its own room gets the roster again without
	// being re-announced and without counting against the limit.
	if c.roomID == roomID {
		c.enqueue(newJoined(roomID, c.ID, h.rooms[roomID].roster(c.ID), false))
		return
	}

	room, ok := h.rooms[roomID]
	if !ok {
		if len(h.rooms) >= h.cfg.Rooms.MaxRooms {
			h.sendErrorLocked(c, errMaxRooms)
			return
		}
	} else if room.size() >= h.cfg.Rooms.MaxPeersPerRoom {
		h.sendErrorLocked(c, errRoomFull)
		return
	}

	// Leave the prior room first; old roommates see the departure.
	if c.roomID != "" {
		h.broadcastLocked(c.roomID, c.ID, peerLeftMessage{Type: MessageTypePeerLeft, PeerID: c.ID})
		h.leaveRoomLocked(c)
	}

	if room == nil {
		room = newRoom(roomID)
		h.rooms[roomID] = room
		metrics.ActiveRooms.Inc()
		h.logger.Info("Room created", zap.String("roomID", roomID))
	}

	reconnection := h.adoptPeerIDLocked(c, room, msg.PeerID)

	roster := room.roster("")
	room.add(c)
	c.roomID = roomID

	c.enqueue(newJoined(roomID, c.ID, roster, reconnection))

	announce := MessageTypePeerJoined
	if reconnection {
		announce = MessageTypePeerReconnected
	}
	h.broadcastLocked(roomID, c.ID, peerJoinedMessage{Type: announce, Peer: PeerInfo{ID: c.ID, Name: c.name}})

	h.presence.PeerJoined(roomID, c.ID, c.name)
	h.logger.Info("Peer joined room",
		zap.String("roomID", roomID),
		zap.String("peerID", c.ID),
		zap.String("name", c.name),
		zap.Int("peerCount", room.size()),
	)
}

// adoptPeerIDLocked lets a returning client reclaim a peer id it held in
// this room before, provided the id is not in use anywhere. The record is
// re-keyed in place so the joined reply already carries the reclaimed id.
func (h *Hub) adoptPeerIDLocked(c *Client, room *Room, suppliedID string) bool {
	if suppliedID == "" || suppliedID == c.ID || !IsValidPeerID(suppliedID) {
		return false
	}
	if !room.seen[suppliedID] || room.has(suppliedID) {
		return false
	}
	if _, taken := h.peers[suppliedID]; taken {
		return false
	}

	mintedID := c.ID
	delete(h.peers, mintedID)
	c.ID = suppliedID
	h.peers[c.ID] = c
	if c.conn != nil {
		h.conns[c.conn] = c.ID
	}
	h.logger.Info("Peer reclaimed previous identity",
		zap.String("peerID", c.ID),
		zap.String("mintedID", mintedID),
		zap.String("roomID", room.ID),
	)
	return true
}

func (h *Hub) handleLeave(c *Client) {
	if c.roomID == "" {
		h.sendErrorLocked(c, errNotInRoom)
		return
	}
	roomID := c.roomID
	h.broadcastLocked(roomID, c.ID, peerLeftMessage{Type: MessageTypePeerLeft, PeerID: c.ID})
	h.leaveRoomLocked(c)
	c.enqueue(leftMessage{Type: MessageTypeLeft, RoomID: roomID})
	h.logger.Info("Peer left room",
		zap.String("roomID", roomID),
		zap.String("peerID", c.ID),
	)
}

// targetLocked resolves targetPeerId, replying with the appropriate error
// envelope when it cannot. Targeted routing is room-scoped: a peer that
// never joined a room, or sits in a different room, is not a valid target.
func (h *Hub) targetLocked(c *Client, targetPeerID string) (*Client, bool) {
	if targetPeerID == "" {
		h.sendErrorLocked(c, errTargetRequired)
		return nil, false
	}
	target, ok := h.peers[targetPeerID]
	if !ok || c.roomID == "" || target.roomID != c.roomID {
		h.sendErrorLocked(c, errTargetNotFound)
		return nil, false
	}
	return target, true
}

func (h *Hub) handleOffer(c *Client, msg *Message) {
	target, ok := h.targetLocked(c, msg.TargetPeerID)
	if !ok {
		return
	}
	sent := target.enqueue(forwardMessage{
		Type:         MessageTypeOffer,
		FromPeerID:   c.ID,
		FromPeerName: c.name,
		SDP:          msg.SDP,
	})
	if !sent {
		h.sendErrorLocked(c, errTargetNotFound)
	}
}

func (h *Hub) handleAnswer(c *Client, msg *Message) {
	target, ok := h.targetLocked(c, msg.TargetPeerID)
	if !ok {
		return
	}
	sent := target.enqueue(forwardMessage{
		Type:       MessageTypeAnswer,
		FromPeerID: c.ID,
		SDP:        msg.SDP,
	})
	if !sent {
		h.sendErrorLocked(c, errTargetNotFound)
		return
	}
	// The answerer has just set its remote description; candidates from
	// the target that arrived early can now be delivered.
	h.flushICELocked(c, target.ID)
}

func (h *Hub) handleICECandidate(c *Client, msg *Message) {
	target, ok := h.targetLocked(c, msg.TargetPeerID)
	if !ok {
		return
	}
	sent := target.enqueue(forwardMessage{
		Type:       MessageTypeICECandidate,
		FromPeerID: c.ID,
		Candidate:  msg.Candidate,
	})
	if !sent {
		// Target exists but cannot take the frame right now; hold the
		// candidate until the target answers or asks for a drain.
		target.iceQueue[c.ID] = append(target.iceQueue[c.ID], msg.Candidate)
		metrics.ICEQueuedTotal.Inc()
		h.logger.Debug("Queued ICE candidate",
			zap.String("fromPeerID", c.ID),
			zap.String("targetPeerID", target.ID),
		)
	}
}

func (h *Hub) handleReadyForCandidates(c *Client, msg *Message) {
	if msg.TargetPeerID == "" {
		h.sendErrorLocked(c, errTargetRequired)
		return
	}
	h.flushICELocked(c, msg.TargetPeerID)
}

// handleFileSignal relays file-request/accept/reject. The server keeps no
// file state; fileInfo and reason pass through verbatim.
func (h *Hub) handleFileSignal(c *Client, msg *Message) {
	target, ok := h.targetLocked(c, msg.TargetPeerID)
	if !ok {
		return
	}
	fwd := forwardMessage{
		Type:       msg.Type,
		FromPeerID: c.ID,
		FileInfo:   msg.FileInfo,
		Reason:     msg.Reason,
	}
	if msg.Type == MessageTypeFileRequest {
		fwd.FromPeerName = c.name
	}
	if !target.enqueue(fwd) {
		h.sendErrorLocked(c, errTargetNotFound)
	}
}
