package signaling

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

const idHexLength = 12

var peerIDPattern = regexp.MustCompile(`^peer_[0-9a-f]{12}$`)

// newID builds a prefixed identifier from the hex digits of a v4 UUID.
func newID(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + hex[:idHexLength]
}

func NewPeerID() string {
	return newID("peer_")
}

func NewRoomID() string {
	return newID("room_")
}

func IsValidPeerID(id string) bool {
	return peerIDPattern.MatchString(id)
}

// IsValidRoomID accepts both server-minted room ids and client-supplied
// short codes: any printable string of 3-64 characters without control
// characters or whitespace.
func IsValidRoomID(id string) bool {
	if len(id) < 3 || len(id) > 64 {
		return false
	}
	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
