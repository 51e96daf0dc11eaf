package permissions

import "sort"

// Set is an unordered set of permission keys
type Set map[Key]struct{}

// NewSet creates a set from the given keys
func NewSet(keys ...Key) Set {
	s := make(Set, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Has reports whether the set contains the key
func (s Set) Has(k Key) bool {
	_, ok := s[k]
	return ok
}

// HasAll reports whether the set contains every given key
func (s Set) HasAll(keys ...Key) bool {
	for _, k := range keys {
		if !s.Has(k) {
			return false
		}
	}
	return true
}

// HasAny reports whether the set contains at least one given key
func (s Set) HasAny(keys ...Key) bool {
	for _, k := range keys {
		if s.Has(k) {
			return true
		}
	}
	return false
}

// Add inserts keys into the set
func (s Set) Add(keys ...Key) {
	for _, k := range keys {
		s[k] = struct{}{}
	}
}

// Union returns a new set holding the keys of s and every other set
func (s Set) Union(others ...Set) Set {
	out := make(Set, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	for _, o := range others {
		for k := range o {
			out[k] = struct{}{}
		}
	}
	return out
}

// Equal reports whether both sets hold the same keys
func (s Set) Equal(o Set) bool {
	if len(s) != len(o) {
		return false
	}
	for k := range s {
		if !o.Has(k) {
			return false
		}
	}
	return true
}

// Sorted returns the keys in lexical order
func (s Set) Sorted() []Key {
	keys := make([]Key, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Strings returns the keys in lexical order as strings
func (s Set) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, k := range sorted {
		out[i] = string(k)
	}
	return out
}
