package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
)

type frame struct {
	data []byte
	err  error
}

// Pipe is an in-process ports.Stream. The "remote" side is driven through
// Push, Fail and CloseRemote; messages sent by the client are kept for
// inspection.
type Pipe struct {
	WorkflowID string

	inbound chan frame
	closed  chan struct{}
	once    sync.Once

	mu   sync.Mutex
	sent [][]byte
}

// NewPipe creates a pipe buffering up to buffer inbound messages.
func NewPipe(buffer int) *Pipe {
	return &Pipe{
		inbound: make(chan frame, buffer),
		closed:  make(chan struct{}),
	}
}

// Send records v as a JSON message.
func (p *Pipe) Send(ctx context.Context, v any) error {
	select {
	case <-p.closed:
		return domain.ErrStreamClosed
	default:
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	p.mu.Lock()
	p.sent = append(p.sent, data)
	p.mu.Unlock()
	return nil
}

// Receive returns the next pushed message.
func (p *Pipe) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.closed:
		return nil, domain.ErrStreamClosed
	case f := <-p.inbound:
		return f.data, f.err
	}
}

// Close closes the local side. Pending and future Receive calls return ErrStreamClosed.
func (p *Pipe) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

// Closed reports whether Close was called.
func (p *Pipe) Closed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

// Push enqueues v (encoded as JSON unless it is already []byte or string).
func (p *Pipe) Push(v any) error {
	var data []byte
	switch t := v.(type) {
	case []byte:
		data = t
	case string:
		data = []byte(t)
	default:
		var err error
		if data, err = json.Marshal(v); err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
	}
	return p.enqueue(frame{data: data})
}

// Fail makes the next Receive, after queued messages, return err.
func (p *Pipe) Fail(err error) error {
	return p.enqueue(frame{err: err})
}

// CloseRemote ends the stream cleanly after queued messages.
func (p *Pipe) CloseRemote() error {
	return p.enqueue(frame{err: domain.ErrStreamClosed})
}

func (p *Pipe) enqueue(f frame) error {
	select {
	case <-p.closed:
		return domain.ErrStreamClosed
	case p.inbound <- f:
		return nil
	}
}

// Sent returns the messages sent by the client so far.
func (p *Pipe) Sent() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.sent))
	copy(out, p.sent)
	return out
}

// Dialer hands out a fresh Pipe per Dial.
type Dialer struct {
	Buffer int

	mu    sync.Mutex
	pipes []*Pipe
	err   error
}

// NewDialer creates a Dialer whose pipes buffer 64 messages.
func NewDialer() *Dialer {
	return &Dialer{Buffer: 64}
}

// FailNext makes subsequent Dial calls return err (nil restores dialing).
func (d *Dialer) FailNext(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

// Dial implements ports.Dialer.
func (d *Dialer) Dial(ctx context.Context, workflowID string) (ports.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	p := NewPipe(d.Buffer)
	p.WorkflowID = workflowID
	d.pipes = append(d.pipes, p)
	return p, nil
}

// Last returns the most recently dialed pipe, or nil.
func (d *Dialer) Last() *Pipe {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pipes) == 0 {
		return nil
	}
	return d.pipes[len(d.pipes)-1]
}

// Pipes returns every pipe dialed so far.
func (d *Dialer) Pipes() []*Pipe {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Pipe(nil), d.pipes...)
}

var (
	_ ports.Stream = (*Pipe)(nil)
	_ ports.Dialer = (*Dialer)(nil)
)
