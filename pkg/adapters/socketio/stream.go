// Package socketio implements ports.Dialer for engines that speak socket.io.
//
// The run request is emitted as the "run_workflow" event and execution
// events are expected on the "execution_event" event (both configurable).
package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

const (
	DefaultRunEvent       = "run_workflow"
	DefaultEventName      = "execution_event"
	DefaultConnectTimeout = 15 * time.Second

	// WorkflowPlaceholder is replaced by the workflow id in the namespace template.
	WorkflowPlaceholder = "{workflow}"
)

// Dialer connects to a socket.io server, one socket per run.
type Dialer struct {
	rawURL            string
	namespaceTemplate string
	runEvent          string
	eventName         string
	connectTimeout    time.Duration
	logger            *slog.Logger
}

// Option configures the Dialer.
type Option func(*Dialer)

// WithNamespace sets the namespace template, e.g. "/workflows/{workflow}".
func WithNamespace(tpl string) Option {
	return func(d *Dialer) {
		d.namespaceTemplate = tpl
	}
}

// WithEvents overrides the outbound run event and the inbound execution event names.
func WithEvents(run, event string) Option {
	return func(d *Dialer) {
		if run != "" {
			d.runEvent = run
		}
		if event != "" {
			d.eventName = event
		}
	}
}

// WithConnectTimeout overrides DefaultConnectTimeout.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(d *Dialer) {
		d.connectTimeout = timeout
	}
}

// WithLogger configures a logger for the Dialer and its streams.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dialer) {
		d.logger = logger
	}
}

// New creates a Dialer for rawURL (e.g. "http://engine:8000/socket.io/").
func New(rawURL string, opts ...Option) *Dialer {
	d := &Dialer{
		rawURL:            rawURL,
		namespaceTemplate: "/",
		runEvent:          DefaultRunEvent,
		eventName:         DefaultEventName,
		connectTimeout:    DefaultConnectTimeout,
		logger:            logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Namespace returns the namespace used for workflowID.
func (d *Dialer) Namespace(workflowID string) string {
	return strings.ReplaceAll(d.namespaceTemplate, WorkflowPlaceholder, url.PathEscape(workflowID))
}

// Dial implements ports.Dialer.
func (d *Dialer) Dial(ctx context.Context, workflowID string) (ports.Stream, error) {
	parsed, err := url.Parse(d.rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	ns := d.Namespace(workflowID)
	logger := d.logger.With("url", d.rawURL, "namespace", ns, "workflow_id", workflowID)

	opts := socket.DefaultOptions()
	if parsed.Path != "" {
		opts.SetPath(parsed.Path)
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))
	opts.SetReconnection(false)

	baseURL := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(ns, opts)

	s := newStream(d.runEvent, logger)
	s.io = io

	connected := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		logger.Debug("Engine socket connected", "sid", io.Id())
		connected <- nil
	})
	io.Once(types.EventName("connect_error"), func(args ...any) {
		err := errors.New("connect_error")
		if len(args) > 0 {
			if e, ok := args[0].(error); ok {
				err = e
			}
		}
		connected <- err
	})
	io.On(types.EventName(d.eventName), func(args ...any) {
		s.deliver(args...)
	})
	io.On(types.EventName("disconnect"), func(args ...any) {
		reason := ""
		if len(args) > 0 {
			reason, _ = args[0].(string)
		}
		s.disconnected(reason)
	})

	io.Connect()

	timer := time.NewTimer(d.connectTimeout)
	defer timer.Stop()
	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return s, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("socket.io connection cancelled: %w", ctx.Err())
	case <-timer.C:
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", d.connectTimeout)
	}
}

// Stream is one socket.io connection. Inbound events are buffered until
// received.
type Stream struct {
	io       *socket.Socket
	runEvent string

	mu     sync.Mutex
	queue  [][]byte
	err    error
	notify chan struct{}
	closed bool

	logger *slog.Logger
}

func newStream(runEvent string, logger *slog.Logger) *Stream {
	return &Stream{
		runEvent: runEvent,
		notify:   make(chan struct{}, 1),
		logger:   logger,
	}
}

func (s *Stream) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// deliver queues the first argument of an execution event as JSON.
func (s *Stream) deliver(args ...any) {
	var payload []byte
	switch {
	case len(args) == 0:
		payload = []byte("{}")
	default:
		switch v := args[0].(type) {
		case string:
			payload = []byte(v)
		case []byte:
			payload = v
		default:
			b, err := json.Marshal(v)
			if err != nil {
				s.logger.Warn("Dropping unencodable engine event", "error", err)
				return
			}
			payload = b
		}
	}
	s.mu.Lock()
	if s.err == nil {
		s.queue = append(s.queue, payload)
	}
	s.mu.Unlock()
	s.signal()
}

// disconnected records why the socket went away. A disconnect requested by
// either side is a clean close; anything else is a transport error.
func (s *Stream) disconnected(reason string) {
	s.mu.Lock()
	if s.err == nil {
		switch reason {
		case "io client disconnect", "io server disconnect":
			s.err = domain.ErrStreamClosed
		default:
			s.err = fmt.Errorf("engine connection lost: %s", reason)
		}
	}
	s.mu.Unlock()
	s.logger.Debug("Engine socket disconnected", "reason", reason)
	s.signal()
}

// Send emits v as the run event.
func (s *Stream) Send(ctx context.Context, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	closed := s.closed || s.err != nil
	s.mu.Unlock()
	if closed {
		return domain.ErrStreamClosed
	}
	if err := s.io.Emit(s.runEvent, v); err != nil {
		return fmt.Errorf("failed to send to engine: %w", err)
	}
	return nil
}

// Receive returns the next buffered event. Once the queue is drained the
// disconnect reason is returned.
func (s *Stream) Receive(ctx context.Context) ([]byte, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			next := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return next, nil
		}
		if s.err != nil {
			err := s.err
			s.mu.Unlock()
			return nil, err
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.notify:
		}
	}
}

// Close disconnects the socket. Buffered events are discarded.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.queue = nil
	if s.err == nil {
		s.err = domain.ErrStreamClosed
	}
	s.mu.Unlock()
	s.signal()
	if s.io != nil {
		s.io.Disconnect()
	}
	return nil
}

var (
	_ ports.Dialer = (*Dialer)(nil)
	_ ports.Stream = (*Stream)(nil)
)
