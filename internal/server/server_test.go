package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/threadrook/internal/config"
	"github.com/palemoky/threadrook/internal/protocol"
	"github.com/palemoky/threadrook/internal/protocol/codec"
)

func dial(t *testing.T, ts *httptest.Server, query string, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, msgType protocol.MessageType, pred func(*protocol.Message) bool) *protocol.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		msg, err := codec.Decode(data)
		require.NoError(t, err)
		if msg.Type == msgType && (pred == nil || pred(msg)) {
			return msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msg *protocol.Message) {
	t.Helper()
	data, err := codec.Encode(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestServer_WebSocketMatch(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	alice := dial(t, ts, "group=guild-7&name=alice", nil)
	connected := readUntil(t, alice, protocol.MsgConnected, nil)
	info, err := codec.ParsePayload[protocol.ConnectedPayload](connected)
	require.NoError(t, err)
	assert.Equal(t, "alice", info.PlayerName)
	assert.Equal(t, "guild-7", info.Group)

	bob := dial(t, ts, "group=guild-7&name=bob", nil)
	readUntil(t, bob, protocol.MsgConnected, nil)
	assert.Eventually(t, func() bool { return s.GetOnlineCount() == 2 }, time.Second, 10*time.Millisecond)

	send(t, alice, codec.MustNewMessage(protocol.MsgCreateMatch, nil))
	readUntil(t, bob, protocol.MsgSurfaceOpen, nil)
	readUntil(t, alice, protocol.MsgNotice, textContains("Creating match..."))

	send(t, bob, codec.MustNewMessage(protocol.MsgJoinMatch, protocol.JoinMatchPayload{TargetID: info.PlayerID}))
	readUntil(t, alice, protocol.MsgAnnounce, textContains("bob just joined"))
	readUntil(t, bob, protocol.MsgPanel, textContains("legal moves in the current position:\ne2e4 e7e5"))

	send(t, bob, codec.MustNewMessage(protocol.MsgResign, nil))
	readUntil(t, alice, protocol.MsgAnnounce, textContains("bob ("))
	readUntil(t, alice, protocol.MsgSurfaceClose, nil)
}

func TestServer_DefaultsGroupAndNickname(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	conn := dial(t, ts, "", nil)
	info, err := codec.ParsePayload[protocol.ConnectedPayload](readUntil(t, conn, protocol.MsgConnected, nil))
	require.NoError(t, err)
	assert.Equal(t, string(defaultGroup), info.Group)
	assert.NotEmpty(t, info.PlayerName)
	assert.NotEmpty(t, info.PlayerID)
}

func TestServer_RejectsDisallowedOrigin(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Security.AllowedOrigins = []string{"https://ok.example"}
	s, _ := newTestServer(t, cfg)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, len(s.semaphore), "rejected connection releases its slot")
}

func TestServer_RejectsInMaintenance(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil)
	s.EnterMaintenanceMode()
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_RejectsWhenFull(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Server.MaxConnections = 1
	s, _ := newTestServer(t, cfg)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	first := dial(t, ts, "name=first", nil)
	readUntil(t, first, protocol.MsgConnected, nil)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_GracefulShutdownClosesClients(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	conn := dial(t, ts, "name=alice", nil)
	readUntil(t, conn, protocol.MsgConnected, nil)

	s.GracefulShutdown(time.Second)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
	assert.True(t, s.IsMaintenanceMode())
}
