package schema

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Field is a declared extension-data key.
type Field struct {
	Type     Type
	Required bool
}

// Required declares a mandatory field.
func Required(t Type) Field { return Field{Type: t, Required: true} }

// Optional declares a field that may be absent.
func Optional(t Type) Field { return Field{Type: t} }

// String renders the field as a type string ("int?" when optional).
func (f Field) String() string {
	if f.Required {
		return f.Type.Name()
	}
	return f.Type.Name() + "?"
}

// ParseField parses a declaration such as "string", "[int]" or "object?".
func ParseField(decl string) (Field, error) {
	decl = strings.TrimSpace(decl)
	optional := strings.HasSuffix(decl, "?")
	t, err := ParseType(strings.TrimSuffix(decl, "?"))
	if err != nil {
		return Field{}, err
	}
	return Field{Type: t, Required: !optional}, nil
}

// Schema maps extension-data keys to their declaration.
// Keys not declared in the schema are allowed.
type Schema map[string]Field

// Parse builds a Schema from type strings.
func Parse(decls map[string]string) (Schema, error) {
	out := make(Schema, len(decls))
	for key, decl := range decls {
		f, err := ParseField(decl)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		out[key] = f
	}
	return out, nil
}

// Validate checks data against the schema and reports every failure.
func (s Schema) Validate(kind string, data map[string]any) error {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		field := s[key]
		value, ok := data[key]
		if !ok {
			if field.Required {
				errs = append(errs, &ValidationError{Kind: kind, Key: key, Reason: "required"})
			}
			continue
		}
		if err := field.Type.Validate(value); err != nil {
			errs = append(errs, &ValidationError{Kind: kind, Key: key, Reason: err.Error(), Value: value})
		}
	}
	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// Registry holds the schema of each node kind. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]Schema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]Schema)}
}

// Register sets the schema for kind, replacing any previous one.
func (r *Registry) Register(kind string, s Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[kind] = s
}

// Lookup returns the schema for kind.
func (r *Registry) Lookup(kind string) (Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[kind]
	return s, ok
}

// Validate checks data against the schema of kind.
// Kinds without a schema always pass.
func (r *Registry) Validate(kind string, data map[string]any) error {
	if r == nil {
		return nil
	}
	s, ok := r.Lookup(kind)
	if !ok {
		return nil
	}
	return s.Validate(kind, data)
}
