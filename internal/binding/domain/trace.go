package domain

import "fmt"

// Trace collects human-readable pipeline steps for debug responses. It is
// created per request and passed explicitly to every stage. A nil or
// disabled Trace discards entries.
type Trace struct {
	enabled bool
	entries []string
}

// NewTrace returns a trace that records entries only when enabled is true.
func NewTrace(enabled bool) *Trace {
	return &Trace{enabled: enabled}
}

// Addf appends a formatted entry.
func (t *Trace) Addf(format string, args ...any) {
	if t == nil || !t.enabled {
		return
	}
	t.entries = append(t.entries, fmt.Sprintf(format, args...))
}

// Enabled reports whether entries are being recorded.
func (t *Trace) Enabled() bool {
	return t != nil && t.enabled
}

// Entries returns a copy of the recorded entries in order.
func (t *Trace) Entries() []string {
	if t == nil || len(t.entries) == 0 {
		return nil
	}
	out := make([]string, len(t.entries))
	copy(out, t.entries)
	return out
}
