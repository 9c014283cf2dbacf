package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kirito034/DataVita/testutil"
	"github.com/Kirito034/DataVita/testutil/fixtures"
)

type connCounter struct {
	open atomic.Int64
}

func (c *connCounter) WebSocketOpened() { c.open.Add(1) }
func (c *connCounter) WebSocketClosed() { c.open.Add(-1) }

func newSocketServer(t *testing.T) (*httptest.Server, *connCounter) {
	t.Helper()
	env := newNotebookEnv(t)
	counter := &connCounter{}
	nb := NewNotebookHandler(env.script.store, nil, zap.NewNop())
	NewNotebookSocket(env.script.exec, nb, nil, counter, zap.NewNop()).Register(env.mux)

	srv := httptest.NewServer(env.mux)
	t.Cleanup(srv.Close)
	return srv, counter
}

func dialSocket(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/notebook"
	conn, _, err := websocket.Dial(testutil.TestContext(t), url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, msg SocketMessage) SocketReply {
	t.Helper()
	ctx := testutil.TestContext(t)
	require.NoError(t, wsjson.Write(ctx, conn, msg))
	var reply SocketReply
	require.NoError(t, wsjson.Read(ctx, conn, &reply))
	return reply
}

func TestNotebookSocket_ExecuteAndState(t *testing.T) {
	srv, counter := newSocketServer(t)
	conn := dialSocket(t, srv)

	reply := roundTrip(t, conn, SocketMessage{Type: SocketExecute, CellID: "1", Code: fixtures.DefineX})
	assert.Equal(t, SocketResult, reply.Type)
	require.NotNil(t, reply.Output)
	assert.Empty(t, reply.Output.Stderr)

	reply = roundTrip(t, conn, SocketMessage{Type: SocketExecute, CellID: "2", Code: fixtures.PrintX})
	assert.Equal(t, "5\n", reply.Output.Stdout)

	reply = roundTrip(t, conn, SocketMessage{Type: SocketState})
	require.NotNil(t, reply.State)
	assert.EqualValues(t, 5, reply.State.Variables["x"])
	assert.Len(t, reply.State.Cells, 2)

	assert.Equal(t, int64(1), counter.open.Load())

	reply = roundTrip(t, conn, SocketMessage{Type: SocketReset})
	assert.Equal(t, SocketReset, reply.Type)
	reply = roundTrip(t, conn, SocketMessage{Type: SocketState})
	assert.Empty(t, reply.State.Variables)
}

func TestNotebookSocket_ValidateAndUnknown(t *testing.T) {
	srv, _ := newSocketServer(t)
	conn := dialSocket(t, srv)

	reply := roundTrip(t, conn, SocketMessage{Type: SocketValidate, Code: fixtures.ForbiddenOS})
	require.NotNil(t, reply.Validation)
	assert.False(t, reply.Validation.Safe)

	reply = roundTrip(t, conn, SocketMessage{Type: "compile"})
	assert.Equal(t, SocketError, reply.Type)
	assert.Equal(t, "unknown message type: compile", reply.Error)
}

func TestNotebookSocket_CloseReleasesConnection(t *testing.T) {
	srv, counter := newSocketServer(t)
	conn := dialSocket(t, srv)
	roundTrip(t, conn, SocketMessage{Type: SocketState})

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))

	testutil.AssertEventuallyTrue(t, func() bool { return counter.open.Load() == 0 }, 2*time.Second)
}

func TestNotebookSocket_RejectsPlainHTTP(t *testing.T) {
	srv, counter := newSocketServer(t)

	resp, err := http.Get(srv.URL + "/ws/notebook")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
	assert.Zero(t, counter.open.Load())
}
