package providers

import (
	"net"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/orchestra-mcp/expense/src/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

// serve runs s on an in-memory listener and returns a dialer bound to it.
func serve(t *testing.T, s *Server) *websocket.Dialer {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = (&fasthttp.Server{Handler: s.Handler()}).Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	return &websocket.Dialer{
		NetDial:          func(_, _ string) (net.Conn, error) { return ln.Dial() },
		HandshakeTimeout: 2 * time.Second,
	}
}

func dialSocket(t *testing.T, d *websocket.Dialer) *websocket.Conn {
	t.Helper()
	conn, _, err := d.Dial("ws://expense.test/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) types.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg types.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestSocketMalformedFrameThenHandshake(t *testing.T) {
	s := newTestServer(t, Deps{})
	conn := dialSocket(t, serve(t, s))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	msg := readMessage(t, conn)
	require.Equal(t, types.EventError, msg.Event)
	var body map[string]string
	require.NoError(t, msg.Decode(&body))
	assert.Equal(t, "bad_payload", body["error"])

	hello, err := types.NewMessage(types.EventAuthenticate, map[string]string{"token": s.tokenFor(t, userClaims)})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(hello))

	// The ack and the broadcast share one queue; either may come first.
	events := []string{readMessage(t, conn).Event, readMessage(t, conn).Event}
	assert.ElementsMatch(t, []string{types.EventAuthenticated, types.EventOnlineUsersUpdate}, events)
	assert.Equal(t, 1, s.registry.Count())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return s.registry.Count() == 0 && s.hub.ClientCount() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestSocketConnectionCap(t *testing.T) {
	cfg := testConfig()
	cfg.Socket.MaxConnections = 1
	s := newTestServerWith(t, cfg, Deps{})
	d := serve(t, s)

	dialSocket(t, d)
	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, resp, err := d.Dial("ws://expense.test/ws", nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, fasthttp.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, 1, s.hub.ClientCount())
}
