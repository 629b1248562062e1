package ports

import "context"

// Stream is one open connection to the execution engine.
// Send and Receive may be called from different goroutines; Close may be
// called concurrently with both and unblocks a pending Receive.
type Stream interface {
	// Send encodes v as a single JSON message.
	Send(ctx context.Context, v any) error

	// Receive blocks until the next inbound message arrives.
	// It returns domain.ErrStreamClosed (or io.EOF) once the remote side
	// closed the connection cleanly, and any other error on transport failure.
	Receive(ctx context.Context) ([]byte, error)

	// Close releases the connection. It is safe to call more than once.
	Close() error
}

// Dialer opens streams scoped to a workflow.
type Dialer interface {
	Dial(ctx context.Context, workflowID string) (Stream, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, workflowID string) (Stream, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, workflowID string) (Stream, error) {
	return f(ctx, workflowID)
}
