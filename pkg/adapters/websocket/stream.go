// Package websocket implements ports.Dialer over a WebSocket connection
// to the execution engine.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
	"github.com/gorilla/websocket"
)

// WorkflowPlaceholder is replaced by the (escaped) workflow id in URL templates.
const WorkflowPlaceholder = "{workflow}"

// DefaultHandshakeTimeout bounds the opening handshake.
const DefaultHandshakeTimeout = 10 * time.Second

// Dialer opens one WebSocket connection per run.
type Dialer struct {
	urlTemplate string
	header      http.Header
	dialer      *websocket.Dialer
	logger      *slog.Logger
}

// Option configures the Dialer.
type Option func(*Dialer)

// WithHeader sets request headers sent with the handshake (e.g. Authorization).
func WithHeader(h http.Header) Option {
	return func(d *Dialer) {
		d.header = h.Clone()
	}
}

// WithHandshakeTimeout overrides DefaultHandshakeTimeout.
func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(d *Dialer) {
		d.dialer.HandshakeTimeout = timeout
	}
}

// WithLogger configures a logger for the Dialer and its streams.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dialer) {
		d.logger = logger
	}
}

// New creates a Dialer for urlTemplate, e.g. "ws://engine:8000/ws/{workflow}".
func New(urlTemplate string, opts ...Option) *Dialer {
	d := &Dialer{
		urlTemplate: urlTemplate,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: DefaultHandshakeTimeout,
		},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// URL returns the connection URL for workflowID.
func (d *Dialer) URL(workflowID string) string {
	return strings.ReplaceAll(d.urlTemplate, WorkflowPlaceholder, url.PathEscape(workflowID))
}

// Dial implements ports.Dialer.
func (d *Dialer) Dial(ctx context.Context, workflowID string) (ports.Stream, error) {
	target := d.URL(workflowID)
	conn, resp, err := d.dialer.DialContext(ctx, target, d.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w (status %d)", target, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}
	d.logger.Debug("Engine connection opened", "url", target, "workflow_id", workflowID)

	s := &Stream{
		conn:   conn,
		msgs:   make(chan []byte),
		done:   make(chan struct{}),
		logger: d.logger.With("workflow_id", workflowID),
	}
	go s.readLoop()
	return s, nil
}

// Stream is a single engine connection.
type Stream struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	msgs    chan []byte
	readErr error
	done    chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once
	logger    *slog.Logger
}

func (s *Stream) readLoop() {
	defer close(s.msgs)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.readErr = s.translate(err)
			return
		}
		select {
		case s.msgs <- data:
		case <-s.done:
			s.readErr = domain.ErrStreamClosed
			return
		}
	}
}

// translate maps a normal close (either side) to domain.ErrStreamClosed.
func (s *Stream) translate(err error) error {
	if s.closed.Load() {
		return domain.ErrStreamClosed
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return domain.ErrStreamClosed
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return fmt.Errorf("engine closed the connection (%d): %w", ce.Code, err)
	}
	return fmt.Errorf("failed to read from engine: %w", err)
}

// Send writes v as a JSON text frame.
func (s *Stream) Send(ctx context.Context, v any) error {
	if s.closed.Load() {
		return domain.ErrStreamClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetWriteDeadline(deadline)
		defer func() { _ = s.conn.SetWriteDeadline(time.Time{}) }()
	}
	if err := s.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("failed to send to engine: %w", err)
	}
	return nil
}

// Receive returns the next frame.
func (s *Stream) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case data, ok := <-s.msgs:
		if !ok {
			return nil, s.readErr
		}
		return data, nil
	}
}

// Close sends a normal close frame and releases the connection.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		s.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = s.conn.Close()
		s.logger.Debug("Engine connection closed")
	})
	return err
}

var (
	_ ports.Dialer = (*Dialer)(nil)
	_ ports.Stream = (*Stream)(nil)
)
