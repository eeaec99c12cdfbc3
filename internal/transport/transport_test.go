package transport

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phaseline/lightcycle/internal/dispatcher"
	"github.com/phaseline/lightcycle/internal/match"
	"github.com/phaseline/lightcycle/internal/worker"
	"github.com/phaseline/lightcycle/pkg/core"
	"github.com/phaseline/lightcycle/pkg/streaming"
)

// Compile-time interface checks.
var (
	_ Dispatcher   = (*dispatcher.Dispatcher)(nil)
	_ Disconnector = (*worker.Manager)(nil)
	_ match.Outbox = (*Hub)(nil)
	_ match.Sender = (*Client)(nil)
)

// fakeDispatcher welcomes every join with a fresh vehicle and records the rest.
type fakeDispatcher struct {
	mu     sync.Mutex
	nextID core.VehicleID
	events []dispatcher.Event
}

func (d *fakeDispatcher) Dispatch(e dispatcher.Event) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
	if e.Type == streaming.TypeJoin {
		d.nextID++
		return streaming.WelcomePayload{VehicleID: d.nextID, TickRate: 60}, nil
	}
	return nil, nil
}

func (d *fakeDispatcher) types() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.events))
	for i, e := range d.events {
		out[i] = e.Type
	}
	return out
}

type fakeDisconnector struct {
	mu      sync.Mutex
	sources []string
}

func (f *fakeDisconnector) Disconnect(source string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, source)
}

func (f *fakeDisconnector) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sources)
}

// inbox collects envelopes delivered to a client handler.
type inbox struct {
	mu   sync.Mutex
	envs []streaming.Envelope
}

func (i *inbox) handle(env streaming.Envelope) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.envs = append(i.envs, env)
	return nil
}

func (i *inbox) has(msgType string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, e := range i.envs {
		if e.Type == msgType {
			return true
		}
	}
	return false
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestHub(t *testing.T) (*Hub, *fakeDispatcher, *fakeDisconnector, *httptest.Server) {
	t.Helper()
	d := &fakeDispatcher{}
	dc := &fakeDisconnector{}
	hub := NewHub(streaming.MsgpackCodec{}, d, dc)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, d, dc, srv
}

func dialTest(t *testing.T, srv *httptest.Server, opts ...ClientOption) (*Client, *inbox) {
	t.Helper()
	c, err := Dial(context.Background(), wsURL(srv), streaming.MsgpackCodec{}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	in := &inbox{}
	c.SetHandler(in.handle)
	return c, in
}

func kickAll(h *Hub) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, p := range h.peers {
		p.stop()
	}
}

func TestHub_BroadcastReachesPeers(t *testing.T) {
	hub, _, _, srv := newTestHub(t)
	_, a := dialTest(t, srv)
	_, b := dialTest(t, srv)
	require.Eventually(t, func() bool { return hub.Peers() == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.Broadcast(streaming.TypeSnapshot, streaming.SnapshotPayload{Tick: 3})

	assert.Eventually(t, func() bool { return a.has(streaming.TypeSnapshot) && b.has(streaming.TypeSnapshot) },
		2*time.Second, 10*time.Millisecond)
}

func TestHub_WelcomeBindsPeer(t *testing.T) {
	hub, d, _, srv := newTestHub(t)
	c, in := dialTest(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	welcome, err := c.Join(ctx, "alice", false)
	require.NoError(t, err)
	assert.Equal(t, core.VehicleID(1), welcome.VehicleID)
	assert.Equal(t, []string{streaming.TypeJoin}, d.types())

	hub.Send(2, streaming.TypeRevive, core.ReviveEvent{VehicleID: 2})
	hub.Send(1, streaming.TypeDeath, core.DeathEvent{VehicleID: 1, Cause: core.CauseWall})

	require.Eventually(t, func() bool { return in.has(streaming.TypeDeath) }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, in.has(streaming.TypeRevive))
}

func TestHub_ClientMessagesReachDispatcher(t *testing.T) {
	_, d, _, srv := newTestHub(t)
	c, _ := dialTest(t, srv)

	require.NoError(t, c.Send(streaming.TypeInput, streaming.InputPayload{VehicleID: 1}))

	assert.Eventually(t, func() bool {
		types := d.types()
		return len(types) == 1 && types[0] == streaming.TypeInput
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_DropsUndecodableFrames(t *testing.T) {
	_, d, _, srv := newTestHub(t)
	conn, _, err := ws.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(ws.BinaryMessage, []byte{0xc1}))
	valid, err := streaming.MsgpackCodec{}.Encode(streaming.TypeLeave, streaming.VehiclePayload{})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(ws.BinaryMessage, valid))

	assert.Eventually(t, func() bool {
		types := d.types()
		return len(types) == 1 && types[0] == streaming.TypeLeave
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_DisconnectNotifies(t *testing.T) {
	hub, _, dc, srv := newTestHub(t)
	c, _ := dialTest(t, srv)
	require.Eventually(t, func() bool { return hub.Peers() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Close())

	assert.Eventually(t, func() bool { return hub.Peers() == 0 && dc.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_CloseRefusesPeers(t *testing.T) {
	hub, _, _, srv := newTestHub(t)
	hub.Close()

	c, err := Dial(context.Background(), wsURL(srv), streaming.MsgpackCodec{}, WithBackoff(time.Hour))
	require.NoError(t, err, "the upgrade succeeds before the hub drops the peer")
	defer c.Close()
	assert.Never(t, func() bool { return hub.Peers() > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestClient_ReconnectReplaysJoin(t *testing.T) {
	hub, d, _, srv := newTestHub(t)
	c, _ := dialTest(t, srv, WithBackoff(10*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	first, err := c.Join(ctx, "bob", false)
	require.NoError(t, err)

	kickAll(hub)

	select {
	case again := <-c.Welcomes():
		assert.NotEqual(t, first.VehicleID, again.VehicleID)
	case <-time.After(3 * time.Second):
		t.Fatal("no welcome after reconnect")
	}
	assert.Equal(t, []string{streaming.TypeJoin, streaming.TypeJoin}, d.types())
}

func TestClient_SendAfterClose(t *testing.T) {
	_, _, _, srv := newTestHub(t)
	c, _ := dialTest(t, srv)
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Send(streaming.TypeInput, streaming.InputPayload{}), ErrClosed)
	_, err := c.Join(context.Background(), "late", false)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDial_InvalidURL(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/none", streaming.MsgpackCodec{})
	assert.Error(t, err)
}
