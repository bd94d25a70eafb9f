package hub

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PixelBoard/internal/state"
	"PixelBoard/internal/wire"
)

// nopConn satisfies Conn without a network.
type nopConn struct {
	mu     sync.Mutex
	closed bool
}

func (c *nopConn) ReadMessage() (int, []byte, error)         { return 0, nil, errors.New("eof") }
func (c *nopConn) WriteMessage(int, []byte) error            { return nil }
func (c *nopConn) WriteControl(int, []byte, time.Time) error { return nil }
func (c *nopConn) SetReadLimit(int64)                        {}
func (c *nopConn) SetReadDeadline(time.Time) error           { return nil }
func (c *nopConn) SetWriteDeadline(time.Time) error          { return nil }
func (c *nopConn) SetPongHandler(func(string) error)         {}

func (c *nopConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *nopConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestSessionStates(t *testing.T) {
	conn := &nopConn{}
	s := NewSession(conn, SessionConfig{}, quietLogger())
	assert.Equal(t, Connecting, s.State())
	assert.NotEmpty(t, s.ID())

	s.Close()
	s.Close()
	assert.Equal(t, Closed, s.State())
	assert.Equal(t, "closed", s.State().String())
	assert.Eventually(t, conn.isClosed, time.Second, 5*time.Millisecond)

	err := s.Deliver([]byte("{}"))
	assert.ErrorIs(t, err, state.ErrChannel)

	// A closed session can never be served again.
	h := New(quietLogger())
	s.Serve(h)
	assert.Equal(t, 0, h.Count())
}

func TestSessionSendBufferFull(t *testing.T) {
	s := NewSession(&nopConn{}, SessionConfig{SendBuffer: 1}, quietLogger())
	require.NoError(t, s.Deliver([]byte("1")))
	err := s.Deliver([]byte("2"))
	assert.ErrorIs(t, err, state.ErrChannel)
}

// serveHub upgrades every request into a Session served by h.
func serveHub(t *testing.T, h *Hub, cfg SessionConfig) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewSession(conn, cfg, quietLogger()).Serve(h)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wire.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	m, err := wire.Decode(data)
	require.NoError(t, err)
	return m
}

func TestSessionOverWebsocket(t *testing.T) {
	h := New(quietLogger())
	srv := serveHub(t, h, SessionConfig{})

	a := dial(t, srv)
	first := readMessage(t, a)
	assert.Equal(t, wire.KindUserCount, first.Type)
	assert.Equal(t, 1, first.Count)

	b := dial(t, srv)
	assert.Equal(t, 2, readMessage(t, a).Count)
	assert.Equal(t, 2, readMessage(t, b).Count)

	h.Publish(wire.PixelUpdate(state.Cell{X: 5, Y: 5, Color: "#FF0000", InsertedBy: "Alice"}))
	for _, c := range []*websocket.Conn{a, b} {
		m := readMessage(t, c)
		assert.Equal(t, wire.KindPixelUpdate, m.Type)
		assert.Equal(t, 5, m.X)
		assert.Equal(t, "Alice", m.InsertedBy)
	}

	require.NoError(t, b.Close())
	m := readMessage(t, a)
	assert.Equal(t, wire.KindUserCount, m.Type)
	assert.Equal(t, 1, m.Count)
	assert.Eventually(t, func() bool { return h.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	h := New(quietLogger())
	srv := serveHub(t, h, SessionConfig{})
	c := dial(t, srv)
	readMessage(t, c)

	h.Close()

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := c.ReadMessage()
	assert.Error(t, err)
}
