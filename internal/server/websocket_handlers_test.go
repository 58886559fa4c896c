package server

import (
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"chainhire/internal/notifications"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listen serves the env's app on a loopback port and returns its address.
func (e *testEnv) listen(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = e.app.Listener(ln) }()
	t.Cleanup(func() { _ = e.app.Shutdown() })
	return ln.Addr().String()
}

func dialFeed(t *testing.T, addr, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	u := url.URL{Scheme: "ws", Host: addr, Path: "/api/ws", RawQuery: "token=" + url.QueryEscape(token)}
	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

func TestWebsocket_ReceivesFeedEvents(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	addr := env.listen(t)
	token, userID := env.signup(t, "listener@example.com")

	conn, _, err := dialFeed(t, addr, token)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return env.server.hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	post := env.createPost(t, token, "live update")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev notifications.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, notifications.EventPostCreated, ev.Type)
	assert.EqualValues(t, post.ID, ev.Payload["post_id"])
	assert.EqualValues(t, userID, ev.Payload["user_id"])

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return env.server.hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebsocket_RejectsAnonymous(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	addr := env.listen(t)

	_, resp, err := dialFeed(t, addr, "not.a.jwt")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, env.server.hub.Count())
}
