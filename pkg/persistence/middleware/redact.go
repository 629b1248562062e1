package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

// DefaultSecretPatterns match the keys commonly holding credentials in node payloads.
var DefaultSecretPatterns = []string{`(?i)password`, `(?i)secret`, `(?i)token`, `(?i)api[_-]?key`, `(?i)^authorization$`}

type redactMiddleware struct {
	next     ports.RecordStore
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware masks, before saving, every value in node runtime
// payloads whose key matches one of the patterns. The caller's record is not modified.
func NewRedactionMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		patterns[i] = re
	}
	return func(next ports.RecordStore) ports.RecordStore {
		return &redactMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *redactMiddleware) Save(ctx context.Context, rec *domain.ExecutionRecord) error {
	cloned := rec.Clone()
	for i := range cloned.Nodes {
		rt := cloned.Nodes[i].Runtime
		if rt == nil {
			continue
		}
		rt.Inputs = m.mask(rt.Inputs)
		rt.Outputs = m.mask(rt.Outputs)
		rt.Messages = m.mask(rt.Messages)
		rt.Raw = m.mask(rt.Raw)
	}
	return m.next.Save(ctx, cloned)
}

func (m *redactMiddleware) Load(ctx context.Context, workflowID, recordID string) (*domain.ExecutionRecord, error) {
	return m.next.Load(ctx, workflowID, recordID)
}

func (m *redactMiddleware) List(ctx context.Context, workflowID string) ([]*domain.ExecutionRecord, error) {
	return m.next.List(ctx, workflowID)
}

func (m *redactMiddleware) Delete(ctx context.Context, workflowID, recordID string) error {
	return m.next.Delete(ctx, workflowID, recordID)
}

// mask walks JSON values in place; v is already a private copy.
func (m *redactMiddleware) mask(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if m.matches(k) {
				t[k] = Mask
				continue
			}
			t[k] = m.mask(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = m.mask(val)
		}
		return t
	default:
		return v
	}
}

func (m *redactMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
