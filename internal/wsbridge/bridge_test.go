package wsbridge

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"city-viewer/bus"
	"city-viewer/core"
	"city-viewer/editor"
)

type fakeInput struct {
	mu     sync.Mutex
	clicks []core.PointerEvent
	sizes  []core.Size
}

func (f *fakeInput) HandleClick(evt *core.PointerEvent) editor.HitResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, *evt)
	return editor.HitResult{}
}

func (f *fakeInput) NotifyResize(size core.Size) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sizes = append(f.sizes, size)
}

func dial(t *testing.T, br *Bridge) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(br)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return br.Clients() == 1 }, time.Second, 5*time.Millisecond)
	return conn
}

func TestInboundPublishes(t *testing.T) {
	b := bus.New()
	got := make(chan bus.Event, 4)
	for _, k := range []bus.Kind{bus.KindLoadScene, bus.KindUploadFile, bus.KindDeleteObject} {
		b.Subscribe(k, func(_ context.Context, ev bus.Event) { got <- ev })
	}
	br := New(b, nil, zaptest.NewLogger(t))
	defer br.Close()
	conn := dial(t, br)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"no-such-thing"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"loadScene","modelId":"delft"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"uploadFile","modelId":"m","content":{"type":"CityJSON"}}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"deleteObject","uid":"b1"}`)))

	want := []bus.Event{
		bus.LoadScene{ModelID: "delft"},
		bus.UploadFile{ModelID: "m", Content: []byte(`{"type":"CityJSON"}`)},
		bus.DeleteObject{UID: "b1"},
	}
	for _, w := range want {
		select {
		case ev := <-got:
			assert.Equal(t, w, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %v", w.Kind())
		}
	}
}

func TestOutboundFanOut(t *testing.T) {
	b := bus.New()
	br := New(b, nil, zaptest.NewLogger(t))
	defer br.Close()
	conn := dial(t, br)

	b.Publish(context.Background(), bus.Info{Message: "Now loading it into the scene."})
	b.Publish(context.Background(), bus.ObjectSelected{UID: "b1"})

	var msg map[string]any
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, map[string]any{"type": "info", "message": "Now loading it into the scene."}, msg)

	msg = nil
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, map[string]any{"type": "objectSelected", "uid": "b1"}, msg)
}

func TestInputMessages(t *testing.T) {
	in := &fakeInput{}
	br := New(bus.New(), in, zaptest.NewLogger(t))
	defer br.Close()
	conn := dial(t, br)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"resize","width":640,"height":480}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"click","x":10,"y":20,"button":0}`)))

	require.Eventually(t, func() bool {
		in.mu.Lock()
		defer in.mu.Unlock()
		return len(in.clicks) == 1 && len(in.sizes) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, core.Size{Width: 640, Height: 480}, in.sizes[0])
	assert.Equal(t, core.PointerEvent{X: 10, Y: 20, Button: core.MouseLeft}, in.clicks[0])
}

func TestSlowClientDropped(t *testing.T) {
	br := New(bus.New(), nil, zaptest.NewLogger(t))
	c := &client{send: make(chan []byte, 1)}
	require.True(t, br.add(c))

	br.broadcast([]byte("a"))
	assert.Equal(t, 1, br.Clients())
	br.broadcast([]byte("b"))
	assert.Zero(t, br.Clients())

	assert.Equal(t, []byte("a"), <-c.send)
	_, open := <-c.send
	assert.False(t, open)
}

func TestCloseDisconnects(t *testing.T) {
	b := bus.New()
	br := New(b, nil, zaptest.NewLogger(t))
	conn := dial(t, br)

	br.Close()
	br.Close()
	assert.Zero(t, b.Subscribers(bus.KindInfo))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestEncode(t *testing.T) {
	data, err := encode(bus.CityModelLoaded{ModelID: "m"})
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, map[string]any{"type": "cityModelLoaded", "modelId": "m"}, got)
}
