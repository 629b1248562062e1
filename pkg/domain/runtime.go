package domain

import (
	"time"

	"github.com/mohae/deepcopy"
)

// RuntimeSnapshot is the last reconciled payload of a node during a run.
type RuntimeSnapshot struct {
	Inputs    any       `json:"inputs,omitempty"`
	Outputs   any       `json:"outputs,omitempty"`
	Messages  any       `json:"messages,omitempty"`
	Raw       any       `json:"raw,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Merge folds next into s. Fields set in next overwrite those in s,
// fields omitted from next keep their previous value. Raw and UpdatedAt
// always come from next.
func (s *RuntimeSnapshot) Merge(next RuntimeSnapshot) RuntimeSnapshot {
	if s == nil {
		return next
	}
	out := *s
	if next.Inputs != nil {
		out.Inputs = next.Inputs
	}
	if next.Outputs != nil {
		out.Outputs = next.Outputs
	}
	if next.Messages != nil {
		out.Messages = next.Messages
	}
	out.Raw = next.Raw
	out.UpdatedAt = next.UpdatedAt
	return out
}

// Clone returns a deep copy of the snapshot.
func (s RuntimeSnapshot) Clone() RuntimeSnapshot {
	return RuntimeSnapshot{
		Inputs:    deepcopy.Copy(s.Inputs),
		Outputs:   deepcopy.Copy(s.Outputs),
		Messages:  deepcopy.Copy(s.Messages),
		Raw:       deepcopy.Copy(s.Raw),
		UpdatedAt: s.UpdatedAt,
	}
}
