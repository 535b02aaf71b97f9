package gateway

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drorm/vmpilot/pkg/orchestrator"
	"github.com/drorm/vmpilot/pkg/stream"
)

type fakeRunner struct {
	units    []stream.Unit
	lastReq  orchestrator.Request
	received chan struct{}
}

func (f *fakeRunner) Run(_ context.Context, req orchestrator.Request) <-chan stream.Unit {
	f.lastReq = req
	if f.received != nil {
		close(f.received)
	}
	out := make(chan stream.Unit, len(f.units))
	for _, u := range f.units {
		out <- u
	}
	close(out)
	return out
}

func dialTestServer(t *testing.T, runner Runner) (*websocket.Conn, func()) {
	t.Helper()

	s, err := NewServer(Config{Port: 9944, Runner: runner, Logger: zerolog.Nop()})
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	return conn, func() {
		_ = conn.Close()
		srv.Close()
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) EventMessage {
	t.Helper()
	var msg EventMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestServer_TurnOverWebSocket(t *testing.T) {
	runner := &fakeRunner{
		units: []stream.Unit{
			stream.TextUnit("Chat id :ab12cd34"),
			stream.TextUnit("Listing now."),
			stream.ToolOutputUnit("ls", "bash", "main.go\ngo.mod"),
		},
	}
	conn, cleanup := dialTestServer(t, runner)
	defer cleanup()

	require.NoError(t, conn.WriteJSON(TurnRequest{ID: "turn-1", Content: "list the files"}))

	first := readEvent(t, conn)
	second := readEvent(t, conn)
	third := readEvent(t, conn)
	last := readEvent(t, conn)

	require.NotNil(t, first.Unit)
	assert.Equal(t, "Chat id :ab12cd34", first.Unit.Text)
	assert.Equal(t, "Listing now.", second.Unit.Text)
	assert.Equal(t, stream.UnitToolOutput, third.Unit.Type)
	assert.Equal(t, EventDone, last.Type)
	assert.Equal(t, "turn-1", last.RequestID)

	assert.Less(t, first.Seq, second.Seq)
	assert.Less(t, second.Seq, third.Seq)
	assert.Less(t, third.Seq, last.Seq)
}

func TestServer_ForwardsChatID(t *testing.T) {
	runner := &fakeRunner{received: make(chan struct{})}
	conn, cleanup := dialTestServer(t, runner)
	defer cleanup()

	require.NoError(t, conn.WriteJSON(TurnRequest{ID: "turn-2", ChatID: "pinned01", Content: "hi"}))

	select {
	case <-runner.received:
	case <-time.After(2 * time.Second):
		t.Fatal("runner was never invoked")
	}
	assert.Equal(t, "pinned01", runner.lastReq.ChatID)
}

func TestServer_RejectsEmptyContent(t *testing.T) {
	runner := &fakeRunner{}
	conn, cleanup := dialTestServer(t, runner)
	defer cleanup()

	require.NoError(t, conn.WriteJSON(TurnRequest{ID: "turn-3"}))

	msg := readEvent(t, conn)
	assert.Equal(t, EventError, msg.Type)
	assert.Contains(t, msg.Message, "content is required")
}

func TestNewServer_Validation(t *testing.T) {
	t.Run("rejects missing runner", func(t *testing.T) {
		_, err := NewServer(Config{Port: 9944})
		assert.Error(t, err)
	})

	t.Run("rejects invalid port", func(t *testing.T) {
		_, err := NewServer(Config{Port: 0, Runner: &fakeRunner{}})
		assert.Error(t, err)
	})
}
