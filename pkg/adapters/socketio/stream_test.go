package socketio

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_DeliverThenCleanDisconnect(t *testing.T) {
	s := newStream(DefaultRunEvent, logging.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	s.deliver(map[string]any{"status": "running"})
	s.deliver(`{"node_id":"a_0","status":"success"}`)
	s.disconnected("io server disconnect")

	first, err := s.Receive(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"running"}`, string(first))

	second, err := s.Receive(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"node_id":"a_0","status":"success"}`, string(second))

	_, err = s.Receive(ctx)
	assert.ErrorIs(t, err, domain.ErrStreamClosed)
}

func TestStream_TransportError(t *testing.T) {
	s := newStream(DefaultRunEvent, logging.NewNop())
	s.disconnected("transport close")

	_, err := s.Receive(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrStreamClosed)
	assert.Contains(t, err.Error(), "transport close")
}

func TestStream_ReceiveWaitsForDelivery(t *testing.T) {
	s := newStream(DefaultRunEvent, logging.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.deliver()
	}()
	got, err := s.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(got))
}

func TestStream_CloseStopsReceive(t *testing.T) {
	s := newStream(DefaultRunEvent, logging.NewNop())
	s.deliver("{}")
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Receive(context.Background())
	assert.ErrorIs(t, err, domain.ErrStreamClosed)
	assert.ErrorIs(t, s.Send(context.Background(), "x"), domain.ErrStreamClosed)
}

func TestStream_ReceiveHonoursContext(t *testing.T) {
	s := newStream(DefaultRunEvent, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Receive(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDialer_Namespace(t *testing.T) {
	d := New("http://engine:8000/socket.io/", WithNamespace("/workflows/{workflow}"))
	assert.Equal(t, "/workflows/wf%201", d.Namespace("wf 1"))
	assert.Equal(t, "/", New("http://engine").Namespace("wf"))
}
