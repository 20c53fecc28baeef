package state

import "testing"

// A disabled mirror is represented as a nil *Presence throughout the
// server; every operation must be a safe no-op.
func TestNilPresenceIsNoOp(t *testing.T) {
	var p *Presence
	p.PeerJoined("ROOM01", "peer_0123456789ab", "Alice")
	p.PeerLeft("ROOM01", "peer_0123456789ab")
	p.Close()
}

func TestRoomPeersKey(t *testing.T) {
	got := roomPeersKey("ROOM01")
	want := "signaling:room:ROOM01:peers"
	if got != want {
		t.Errorf("roomPeersKey() = %q, want %q", got, want)
	}
}
