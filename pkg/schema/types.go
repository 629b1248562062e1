package schema

import (
	"fmt"
	"strings"
)

// Type checks a single JSON value.
type Type interface {
	// Name returns the type string used in declarations (e.g. "string", "[int]").
	Name() string
	// Validate checks if a value conforms to this type.
	Validate(value any) error
}

type primitive struct {
	name  string
	check func(any) bool
}

func (p primitive) Name() string { return p.name }

func (p primitive) Validate(value any) error {
	if !p.check(value) {
		return fmt.Errorf("expected %s, got %T", p.name, value)
	}
	return nil
}

// String accepts strings.
func String() Type {
	return primitive{name: "string", check: func(v any) bool { _, ok := v.(string); return ok }}
}

// Number accepts any numeric value.
func Number() Type {
	return primitive{name: "number", check: func(v any) bool {
		switch v.(type) {
		case float32, float64, int, int8, int16, int32, int64:
			return true
		}
		return false
	}}
}

// Int accepts integers, including whole floats produced by JSON decoding.
func Int() Type {
	return primitive{name: "int", check: func(v any) bool {
		switch n := v.(type) {
		case int, int8, int16, int32, int64:
			return true
		case float64:
			return n == float64(int64(n))
		}
		return false
	}}
}

// Bool accepts booleans.
func Bool() Type {
	return primitive{name: "bool", check: func(v any) bool { _, ok := v.(bool); return ok }}
}

// Object accepts JSON objects.
func Object() Type {
	return primitive{name: "object", check: func(v any) bool { _, ok := v.(map[string]any); return ok }}
}

// Any accepts every value, including null.
func Any() Type {
	return primitive{name: "any", check: func(any) bool { return true }}
}

type list struct {
	elem Type
}

// List accepts JSON arrays whose elements all satisfy elem.
func List(elem Type) Type {
	return list{elem: elem}
}

func (l list) Name() string { return "[" + l.elem.Name() + "]" }

func (l list) Validate(value any) error {
	items, ok := value.([]any)
	if !ok {
		if strs, isStrs := value.([]string); isStrs {
			items = make([]any, len(strs))
			for i, s := range strs {
				items[i] = s
			}
		} else {
			return fmt.Errorf("expected %s, got %T", l.Name(), value)
		}
	}
	for i, item := range items {
		if err := l.elem.Validate(item); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// ParseType converts a type string into a Type.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	if len(s) > 2 && strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		elem, err := ParseType(s[1 : len(s)-1])
		if err != nil {
			return nil, err
		}
		return List(elem), nil
	}
	switch s {
	case "string":
		return String(), nil
	case "number", "float":
		return Number(), nil
	case "int":
		return Int(), nil
	case "bool":
		return Bool(), nil
	case "object":
		return Object(), nil
	case "any":
		return Any(), nil
	}
	return nil, fmt.Errorf("unsupported type: %s", s)
}
