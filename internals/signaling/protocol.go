package signaling

import "encoding/json"

type MessageType string

const (
	MessageTypeWelcome            MessageType = "welcome"
	MessageTypeJoin               MessageType = "join"
	MessageTypeJoined             MessageType = "joined"
	MessageTypePeerJoined         MessageType = "peer-joined"
	MessageTypePeerReconnected    MessageType = "peer-reconnected"
	MessageTypeLeave              MessageType = "leave"
	MessageTypeLeft               MessageType = "left"
	MessageTypePeerLeft           MessageType = "peer-left"
	MessageTypeOffer              MessageType = "offer"
	MessageTypeAnswer             MessageType = "answer"
	MessageTypeICECandidate       MessageType = "ice-candidate"
	MessageTypeReadyForCandidates MessageType = "ready-for-candidates"
	MessageTypeFileRequest        MessageType = "file-request"
	MessageTypeFileAccept         MessageType = "file-accept"
	MessageTypeFileReject         MessageType = "file-reject"
	MessageTypePing               MessageType = "ping"
	MessageTypePong               MessageType = "pong"
	MessageTypeError              MessageType = "error"
	MessageTypeServerShutdown     MessageType = "server-shutdown"
)

// Eviction reasons carried on peer-left broadcasts.
const (
	ReasonTimeout = "timeout"
	ReasonStale   = "stale"
)

// Wire error strings. Peers only ever see these inside an error envelope;
// the connection stays open for all of them.
const (
	errInvalidJSON    = "Invalid JSON"
	errTypeRequired   = "Message type is required"
	errTooLarge       = "Message too large"
	errInternal       = "Internal server error"
	errTargetRequired = "Target peer ID is required"
	errTargetNotFound = "Target peer not found"
	errRoomRequired   = "Room ID is required"
	errInvalidRoomID  = "Invalid room ID"
	errRoomFull       = "Room is full"
	errMaxRooms       = "Maximum number of rooms reached"
	errNotInRoom      = "Not in a room"
	errRateLimited    = "Rate limit exceeded"
)

// Message is the inbound envelope. Passthrough payloads (sdp, candidate,
// fileInfo) stay raw so unknown fields survive forwarding verbatim.
type Message struct {
	Type         MessageType     `json:"type"`
	RoomID       string          `json:"roomId,omitempty"`
	PeerID       string          `json:"peerId,omitempty"`
	TargetPeerID string          `json:"targetPeerId,omitempty"`
	Name         string          `json:"name,omitempty"`
	SDP          json.RawMessage `json:"sdp,omitempty"`
	Candidate    json.RawMessage `json:"candidate,omitempty"`
	FileInfo     json.RawMessage `json:"fileInfo,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	Timestamp    int64           `json:"timestamp,omitempty"`
}

type PeerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type welcomeMessage struct {
	Type   MessageType `json:"type"`
	PeerID string      `json:"peerId"`
	Name   string      `json:"name"`
}

type joinedMessage struct {
	Type           MessageType `json:"type"`
	RoomID         string      `json:"roomId"`
	PeerID         string      `json:"peerId"`
	Peers          []PeerInfo  `json:"peers"`
	IsReconnection bool        `json:"isReconnection,omitempty"`
}

// peerJoinedMessage doubles as peer-reconnected; the two differ only in type.
type peerJoinedMessage struct {
	Type MessageType `json:"type"`
	Peer PeerInfo    `json:"peer"`
}

type leftMessage struct {
	Type   MessageType `json:"type"`
	RoomID string      `json:"roomId"`
}

type peerLeftMessage struct {
	Type   MessageType `json:"type"`
	PeerID string      `json:"peerId"`
	Reason string      `json:"reason,omitempty"`
}

// forwardMessage carries peer-to-peer relays (offer, answer, ice-candidate,
// file-request, file-accept, file-reject) with the sender stamped on.
type forwardMessage struct {
	Type         MessageType     `json:"type"`
	FromPeerID   string          `json:"fromPeerId"`
	FromPeerName string          `json:"fromPeerName,omitempty"`
	SDP          json.RawMessage `json:"sdp,omitempty"`
	Candidate    json.RawMessage `json:"candidate,omitempty"`
	FileInfo     json.RawMessage `json:"fileInfo,omitempty"`
	Reason       string          `json:"reason,omitempty"`
}

type errorMessage struct {
	Type  MessageType `json:"type"`
	Error string      `json:"error"`
}

type heartbeatMessage struct {
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp"`
}

type shutdownMessage struct {
	Type MessageType `json:"type"`
}

func newJoined(roomID, peerID string, others []PeerInfo, reconnection bool) joinedMessage {
	if others == nil {
		others = []PeerInfo{}
	}
	return joinedMessage{
		Type:           MessageTypeJoined,
		RoomID:         roomID,
		PeerID:         peerID,
		Peers:          others,
		IsReconnection: reconnection,
	}
}

func newError(text string) errorMessage {
	return errorMessage{Type: MessageTypeError, Error: text}
}
