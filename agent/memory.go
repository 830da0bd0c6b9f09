package agent

import (
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"
)

// EntryType classifies a memory entry.
type EntryType string

const (
	EntryUser         EntryType = "user"
	EntryAssistant    EntryType = "assistant"
	EntryActionResult EntryType = "action_result"
	EntrySystem       EntryType = "system"
)

// MemoryEntry is one record in a run's history.
type MemoryEntry struct {
	Type      EntryType        `json:"type" yaml:"type"`
	Content   string           `json:"content" yaml:"content"`
	Decision  *Decision        `json:"decision,omitempty" yaml:"decision,omitempty"`
	Result    *ExecutionResult `json:"result,omitempty" yaml:"result,omitempty"`
	Iteration int              `json:"iteration" yaml:"iteration"`
	Timestamp time.Time        `json:"timestamp" yaml:"timestamp"`
}

// Memory is an append-only log of entries. Entries are never modified or
// removed once appended: Append stores a copy and readers get copies, so the
// decision arguments and result values a caller holds are not shared with the
// log.
type Memory struct {
	entries []MemoryEntry
	mu      sync.RWMutex
}

// NewMemory creates an empty Memory.
func NewMemory() *Memory {
	return &Memory{}
}

// Append adds an entry, stamping it with the current time if unset.
func (m *Memory) Append(entry MemoryEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry = cloneEntry(entry)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
}

// Entries returns a copy of all entries in order.
func (m *Memory) Entries() []MemoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MemoryEntry, len(m.entries))
	for i, e := range m.entries {
		out[i] = cloneEntry(e)
	}
	return out
}

// Len returns the number of entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Last returns the most recent entry.
func (m *Memory) Last() (MemoryEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.entries) == 0 {
		return MemoryEntry{}, false
	}
	return cloneEntry(m.entries[len(m.entries)-1]), true
}

// MarshalJSON encodes the memory as its ordered list of entries.
func (m *Memory) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Entries())
}

// UnmarshalJSON decodes a list of entries into an empty memory. Decoding into
// a memory that already holds entries is an error.
func (m *Memory) UnmarshalJSON(data []byte) error {
	var entries []MemoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) > 0 {
		return errors.New("agent: cannot decode into a non-empty memory")
	}
	m.entries = entries
	return nil
}

// cloneEntry copies the decision and result behind an entry. JSON-shaped
// values (maps, slices) are copied recursively; other values are shared.
func cloneEntry(e MemoryEntry) MemoryEntry {
	if e.Decision != nil {
		d := *e.Decision
		d.Args = cloneArgs(d.Args)
		e.Decision = &d
	}
	if e.Result != nil {
		r := *e.Result
		r.Value = cloneValue(r.Value)
		e.Result = &r
	}
	return e
}

func cloneArgs(a Args) Args {
	if a == nil {
		return nil
	}
	out := make(Args, len(a))
	for k, v := range a {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Args:
		return cloneArgs(t)
	case map[string]any:
		return map[string]any(cloneArgs(Args(t)))
	case map[string]string:
		return maps.Clone(t)
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return slices.Clone(t)
	case []int:
		return slices.Clone(t)
	case []byte:
		return slices.Clone(t)
	default:
		return v
	}
}
