package signaling

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinedMarshalsEmptyRoster(t *testing.T) {
	data, err := json.Marshal(newJoined("ROOM01", "peer_0123456789ab", nil, false))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"peers":[]`)
	assert.NotContains(t, string(data), "isReconnection")
}

func TestJoinedMarshalsReconnection(t *testing.T) {
	data, err := json.Marshal(newJoined("ROOM01", "peer_0123456789ab", nil, true))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"isReconnection":true`)
}

func TestEnvelopePreservesPassthroughPayloads(t *testing.T) {
	in := []byte(`{"type":"offer","targetPeerId":"peer_0123456789ab","sdp":{"type":"offer","sdp":"v=0...","futureField":42}}`)

	var msg Message
	require.NoError(t, json.Unmarshal(in, &msg))
	assert.Equal(t, MessageTypeOffer, msg.Type)

	out, err := json.Marshal(forwardMessage{
		Type:       MessageTypeOffer,
		FromPeerID: "peer_ba9876543210",
		SDP:        msg.SDP,
	})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"futureField":42`, "unknown fields must survive forwarding")
}

func TestForwardMessageOmitsAbsentFields(t *testing.T) {
	out, err := json.Marshal(forwardMessage{
		Type:       MessageTypeFileReject,
		FromPeerID: "peer_0123456789ab",
		Reason:     "busy",
	})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "sdp")
	assert.NotContains(t, string(out), "candidate")
	assert.NotContains(t, string(out), "fileInfo")
	assert.Contains(t, string(out), `"reason":"busy"`)
}

func TestEnvelopeMissingType(t *testing.T) {
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(`{"roomId":"ROOM01"}`), &msg))
	assert.Empty(t, msg.Type)
}
