package models

import (
	"encoding/json"
	"sort"
)

// Snapshot is the comparable form of an entity: scalar fields rendered as strings
// and set-valued relations as sorted member keys.
// The snapshot taken at the last successful sync is the merge base.
type Snapshot struct {
	Fields map[string]string   `json:"fields"`
	Sets   map[string][]string `json:"sets,omitempty"`
}

// Encode returns the JSON form stored in Entity.Synced.
func (s Snapshot) Encode() string {
	b, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(b)
}

// DecodeSnapshot parses Entity.Synced. ok is false when no base was recorded.
func DecodeSnapshot(raw string) (snap Snapshot, ok bool) {
	if raw == "" {
		return Snapshot{}, false
	}
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return Snapshot{}, false
	}
	return snap, true
}

// Equal compares fields by value and sets by membership.
func (s Snapshot) Equal(o Snapshot) bool {
	if len(s.Fields) != len(o.Fields) {
		return false
	}
	for k, v := range s.Fields {
		if ov, ok := o.Fields[k]; !ok || ov != v {
			return false
		}
	}
	names := make(map[string]struct{})
	for k := range s.Sets {
		names[k] = struct{}{}
	}
	for k := range o.Sets {
		names[k] = struct{}{}
	}
	for k := range names {
		if !SameMembers(s.Sets[k], o.Sets[k]) {
			return false
		}
	}
	return true
}

// SameMembers reports whether a and b hold the same keys, ignoring order and duplicates.
func SameMembers(a, b []string) bool {
	return equalStrings(SortedSet(a), SortedSet(b))
}

// SortedSet returns the distinct members of keys in ascending order.
func SortedSet(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
