package signaling

import "time"

// Room is a membership set. The hub lock guards all access; an empty room
// is removed before the mutating operation returns, so empty rooms are
// never observable.
type Room struct {
	ID        string
	CreatedAt time.Time

	members map[string]*Client

	// seen remembers every peer id ever admitted, so a returning client
	// can reclaim its previous identity.
	seen map[string]bool
}

func newRoom(id string) *Room {
	return &Room{
		ID:        id,
		CreatedAt: time.Now(),
		members:   make(map[string]*Client),
		seen:      make(map[string]bool),
	}
}

func (r *Room) add(c *Client) {
	r.members[c.ID] = c
	r.seen[c.ID] = true
}

func (r *Room) remove(peerID string) {
	delete(r.members, peerID)
}

func (r *Room) has(peerID string) bool {
	_, ok := r.members[peerID]
	return ok
}

func (r *Room) empty() bool {
	return len(r.members) == 0
}

func (r *Room) size() int {
	return len(r.members)
}

func (r *Room) others(exceptPeerID string) []*Client {
	out := make([]*Client, 0, len(r.members))
	for id, c := range r.members {
		if id != exceptPeerID {
			out = append(out, c)
		}
	}
	return out
}

func (r *Room) roster(exceptPeerID string) []PeerInfo {
	out := make([]PeerInfo, 0, len(r.members))
	for id, c := range r.members {
		if id != exceptPeerID {
			out = append(out, PeerInfo{ID: id, Name: c.name})
		}
	}
	return out
}
