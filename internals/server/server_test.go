package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Champion1102/Crossdrop-sub000/internals/config"
	"github.com/Champion1102/Crossdrop-sub000/internals/utils"
)

func TestMain(m *testing.M) {
	utils.InitLogger("error", "console")
	os.Exit(m.Run())
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.LoadConfig()
	cfg.WebSocket.SendBuffer = 32
	for _, m := range mutate {
		m(cfg)
	}
	srv := New(cfg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func readType(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()
	m := readMsg(t, conn)
	require.Equal(t, want, m["type"])
	return m
}

func writeMsg(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func TestWelcomeAndJoinFlow(t *testing.T) {
	_, ts := newTestServer(t)

	x := dial(t, ts, "/ws?name=Alice")
	welcome := readType(t, x, "welcome")
	require.Equal(t, "Alice", welcome["name"])
	xID := welcome["peerId"].(string)

	writeMsg(t, x, `{"type":"join","roomId":"ROOM01"}`)
	joined := readType(t, x, "joined")
	require.Equal(t, "ROOM01", joined["roomId"])
	require.Empty(t, joined["peers"])

	y := dial(t, ts, "/ws?name=Bob")
	welcome = readType(t, y, "welcome")
	yID := welcome["peerId"].(string)

	writeMsg(t, y, `{"type":"join","roomId":"ROOM01"}`)
	joined = readType(t, y, "joined")
	roster := joined["peers"].([]any)
	require.Len(t, roster, 1)
	require.Equal(t, xID, roster[0].(map[string]any)["id"])

	announce := readType(t, x, "peer-joined")
	require.Equal(t, yID, announce["peer"].(map[string]any)["id"])

	// Relay an offer end to end.
	writeMsg(t, y, fmt.Sprintf(`{"type":"offer","targetPeerId":%q,"sdp":{"type":"offer","sdp":"v=0..."}}`, xID))
	offer := readType(t, x, "offer")
	require.Equal(t, yID, offer["fromPeerId"])
	require.Equal(t, "Bob", offer["fromPeerName"])
}

func TestAnonymousDefaultName(t *testing.T) {
	_, ts := newTestServer(t)

	conn := dial(t, ts, "/ws")
	welcome := readType(t, conn, "welcome")
	require.Equal(t, "Anonymous", welcome["name"])
}

func TestTransportCloseBroadcastsDeparture(t *testing.T) {
	_, ts := newTestServer(t)

	x := dial(t, ts, "/ws?name=Alice")
	welcome := readType(t, x, "welcome")
	xID := welcome["peerId"].(string)
	writeMsg(t, x, `{"type":"join","roomId":"ROOM01"}`)
	readType(t, x, "joined")

	y := dial(t, ts, "/ws?name=Bob")
	readType(t, y, "welcome")
	writeMsg(t, y, `{"type":"join","roomId":"ROOM01"}`)
	readType(t, y, "joined")
	readType(t, x, "peer-joined")

	require.NoError(t, x.Close())

	left := readType(t, y, "peer-left")
	require.Equal(t, xID, left["peerId"])
}

func TestOversizeFrameRejectedWithoutDisconnect(t *testing.T) {
	_, ts := newTestServer(t, func(cfg *config.Config) {
		cfg.WebSocket.MaxPayloadSize = 256
	})

	conn := dial(t, ts, "/ws")
	readType(t, conn, "welcome")

	// One byte over the ceiling: rejected, connection kept.
	frame := `{"type":"ping","pad":"` + strings.Repeat("x", 257) + `"}`
	writeMsg(t, conn, frame)
	errMsg := readType(t, conn, "error")
	require.Equal(t, "Message too large", errMsg["error"])

	writeMsg(t, conn, `{"type":"ping"}`)
	readType(t, conn, "pong")
}

func TestFrameAtExactLimitAccepted(t *testing.T) {
	const limit = 256
	_, ts := newTestServer(t, func(cfg *config.Config) {
		cfg.WebSocket.MaxPayloadSize = limit
	})

	conn := dial(t, ts, "/ws")
	readType(t, conn, "welcome")

	skeleton := `{"type":"ping","pad":""}`
	frame := `{"type":"ping","pad":"` + strings.Repeat("x", limit-len(skeleton)) + `"}`
	require.Len(t, frame, limit)

	writeMsg(t, conn, frame)
	readType(t, conn, "pong")
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	for _, path := range []string{"/health", "/"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "ok", body["status"])
		assert.NotNil(t, body["uptime"])
		assert.NotNil(t, body["peers"])
		assert.NotNil(t, body["rooms"])
	}
}

func TestStatsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	conn := dial(t, ts, "/ws?name=Alice")
	readType(t, conn, "welcome")
	writeMsg(t, conn, `{"type":"join","roomId":"ROOM01"}`)
	readType(t, conn, "joined")

	resp, err := http.Get(ts.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	peers := body["peers"].([]any)
	require.Len(t, peers, 1)
	peer := peers[0].(map[string]any)
	assert.Equal(t, "Alice", peer["name"])
	assert.Equal(t, "ROOM01", peer["roomId"])
	assert.NotNil(t, body["memory"])
}

func TestRoomProbe(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/room/ROOM01")
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	require.Equal(t, false, body["exists"])
	require.Equal(t, "ROOM01", body["roomId"])

	conn := dial(t, ts, "/ws")
	readType(t, conn, "welcome")
	writeMsg(t, conn, `{"type":"join","roomId":"ROOM01"}`)
	readType(t, conn, "joined")

	resp, err = http.Get(ts.URL + "/room/ROOM01")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	require.Equal(t, true, body["exists"])
}

func TestCORSPreflight(t *testing.T) {
	_, ts := newTestServer(t, func(cfg *config.Config) {
		cfg.CORS.Origin = "https://app.example.com"
	})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/health", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", resp.Header.Get("Access-Control-Allow-Headers"))
}

func TestUnknownPathReturnsJSON404(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "Not found", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGracefulShutdown(t *testing.T) {
	srv, ts := newTestServer(t)

	conn := dial(t, ts, "/ws")
	readType(t, conn, "welcome")

	srv.Stop()

	readType(t, conn, "server-shutdown")

	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	require.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway),
		"expected close code 1001, got %v", err)
}
