package edgedata

import "strings"

type metaEntry struct {
	key   string // original case, as first set
	value string
}

// Metadata is an insertion-ordered, case-insensitive key/value list.
// Setting an existing key (case-insensitively) updates its value in
// place and preserves the key's original casing and position; setting a
// new key appends it. The zero value is an empty Metadata.
type Metadata struct {
	entries []metaEntry
	index   map[string]int // lowercased key -> index into entries
}

// Set records key=value, overwriting any existing value for key
// case-insensitively.
func (m *Metadata) Set(key, value string) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	lower := strings.ToLower(key)
	if idx, ok := m.index[lower]; ok {
		m.entries[idx].value = value
		return
	}
	m.index[lower] = len(m.entries)
	m.entries = append(m.entries, metaEntry{key: key, value: value})
}

// Get returns the value for key, matched case-insensitively.
func (m *Metadata) Get(key string) (string, bool) {
	idx, ok := m.index[strings.ToLower(key)]
	if !ok {
		return "", false
	}
	return m.entries[idx].value, true
}

// Clear removes all entries.
func (m *Metadata) Clear() {
	m.entries = nil
	m.index = nil
}

// Len returns the number of entries.
func (m *Metadata) Len() int {
	return len(m.entries)
}

// Each calls fn for every entry in insertion order.
func (m *Metadata) Each(fn func(key, value string)) {
	for _, e := range m.entries {
		fn(e.key, e.value)
	}
}

// Equal reports whether m and other hold the same (key, value) pairs as
// multisets, ignoring key case and insertion order.
func (m *Metadata) Equal(other *Metadata) bool {
	if m.Len() != other.Len() {
		return false
	}
	for _, e := range m.entries {
		v, ok := other.Get(e.key)
		if !ok || v != e.value {
			return false
		}
	}
	return true
}

func (m *Metadata) clone() Metadata {
	out := Metadata{
		entries: append([]metaEntry(nil), m.entries...),
	}
	if m.index != nil {
		out.index = make(map[string]int, len(m.index))
		for k, v := range m.index {
			out.index[k] = v
		}
	}
	return out
}
