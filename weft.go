package weft

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/weft/pkg/adapters/memory"
	"github.com/aretw0/weft/pkg/document"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/editor"
	"github.com/aretw0/weft/pkg/schema"
)

// Version is the release of the module, set at build time with
// -ldflags "-X github.com/aretw0/weft.Version=...".
var Version = "dev"

// maxEventSize bounds a single line of a recorded event stream.
const maxEventSize = 4 << 20

// ReadDocument reads and validates the workflow document at path. The
// format follows the file extension.
func ReadDocument(path string, schemas *schema.Registry) (*document.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workflow: %w", err)
	}
	defer f.Close()

	doc, err := document.Read(f, document.FormatFromPath(path), document.WithSchemas(schemas))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// WorkflowID derives a workflow id from a document path: the file name
// without its extension.
func WorkflowID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Open reads the document at path into a new editing session. The
// workflow id is derived from the file name.
func Open(ctx context.Context, path string, schemas *schema.Registry, opts ...editor.Option) (*editor.Session, error) {
	doc, err := ReadDocument(path, schemas)
	if err != nil {
		return nil, err
	}
	s := editor.New(append(opts, editor.WithSchemas(schemas))...)
	if err := s.LoadWorkflow(ctx, WorkflowID(path), doc); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Replay runs doc against a recorded event stream instead of a live
// engine: every non-blank line of events is delivered as one inbound
// message, then the stream closes. It returns the resulting record.
// Options may add a sink, a record manager or a clean-close policy; the
// dialer is always the recorded stream.
func Replay(ctx context.Context, workflowID string, doc *document.Document, events io.Reader, opts ...editor.Option) (*domain.ExecutionRecord, error) {
	dialer := memory.NewDialer()
	s := editor.New(append(opts, editor.WithDialer(dialer))...)
	defer s.Close()

	if err := s.LoadWorkflow(ctx, workflowID, doc); err != nil {
		return nil, err
	}
	if _, err := s.Run(ctx, nil); err != nil {
		return nil, err
	}
	pipe := dialer.Last()

	scanner := bufio.NewScanner(events)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := pipe.Push(append([]byte(nil), line...)); err != nil {
			if errors.Is(err, domain.ErrStreamClosed) {
				break
			}
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	_ = pipe.CloseRemote()

	if err := s.WaitRun(ctx); err != nil {
		return nil, err
	}
	execs := s.Executions()
	if len(execs) == 0 {
		return nil, domain.ErrRecordNotFound
	}
	return execs[0], nil
}
