package editor

import "errors"

// ErrNoDialer is returned by Run when the session has no engine dialer.
var ErrNoDialer = errors.New("no engine dialer configured")

// ErrInvalidChange is returned for a change the graph cannot apply.
var ErrInvalidChange = errors.New("invalid change")

// ErrEmptyTemplate is returned when inserting a template with no nodes.
var ErrEmptyTemplate = errors.New("template has no nodes")

// ErrUnknownTemplate is returned by InsertTemplate for a name the library lacks.
var ErrUnknownTemplate = errors.New("unknown template")
