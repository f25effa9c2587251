package models

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/hyperjump/ragindex/internal/apperr"
)

// Value kinds understood by filters. Metadata values of any other type are stored but never matched.
const (
	KindBool   = "bool"
	KindNumber = "number"
	KindString = "string"
)

// Filter restricts a search to entries whose metadata matches every term.
// A nil Filter means no restriction.
type Filter struct {
	Permissions Permissions
	Extra       map[string]any
}

// FilterTerm is one key/value equality constraint.
type FilterTerm struct {
	Key   string
	Value any
}

// PermissionFilter matches entries whose flag p equals v.
func PermissionFilter(p Permission, v bool) *Filter {
	return &Filter{Permissions: Permissions{p: v}}
}

// Terms flattens the filter into equality terms sorted by key.
func (f *Filter) Terms() []FilterTerm {
	if f == nil {
		return nil
	}
	terms := make([]FilterTerm, 0, len(f.Permissions)+len(f.Extra))
	seen := make(map[string]bool, len(f.Permissions))
	for _, perm := range f.Permissions.Sorted() {
		terms = append(terms, FilterTerm{Key: perm.Key(), Value: f.Permissions[perm]})
		seen[perm.Key()] = true
	}
	// Typed permissions win over a raw key of the same name.
	for k, v := range f.Extra {
		if seen[k] {
			continue
		}
		terms = append(terms, FilterTerm{Key: k, Value: v})
	}
	sort.SliceStable(terms, func(i, j int) bool { return terms[i].Key < terms[j].Key })
	return terms
}

// Validate rejects terms whose value cannot be compared.
func (f *Filter) Validate() error {
	for _, t := range f.Terms() {
		if t.Key == "" {
			return apperr.InvalidArgument("filter key must not be empty")
		}
		if _, _, ok := CanonicalValue(t.Value); !ok {
			return apperr.InvalidArgument("filter value for %q has unsupported type %T", t.Key, t.Value)
		}
	}
	return nil
}

// Matches reports whether m satisfies every term.
func (f *Filter) Matches(m Metadata) bool {
	for _, t := range f.Terms() {
		v, ok := m[t.Key]
		if !ok || !ValuesEqual(v, t.Value) {
			return false
		}
	}
	return true
}

// ValuesEqual compares two metadata values by kind and canonical text, so 3 and 3.0 are equal.
func ValuesEqual(a, b any) bool {
	ka, ta, okA := CanonicalValue(a)
	kb, tb, okB := CanonicalValue(b)
	return okA && okB && ka == kb && ta == tb
}

// CanonicalValue returns the kind and canonical text of a scalar metadata value.
func CanonicalValue(v any) (kind, text string, ok bool) {
	switch x := v.(type) {
	case bool:
		return KindBool, strconv.FormatBool(x), true
	case string:
		return KindString, x, true
	case int:
		return KindNumber, strconv.FormatInt(int64(x), 10), true
	case int32:
		return KindNumber, strconv.FormatInt(int64(x), 10), true
	case int64:
		return KindNumber, strconv.FormatInt(x, 10), true
	case uint:
		return KindNumber, strconv.FormatUint(uint64(x), 10), true
	case uint32:
		return KindNumber, strconv.FormatUint(uint64(x), 10), true
	case uint64:
		return KindNumber, strconv.FormatUint(x, 10), true
	case float32:
		return KindNumber, strconv.FormatFloat(float64(x), 'g', -1, 64), true
	case float64:
		return KindNumber, strconv.FormatFloat(x, 'g', -1, 64), true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return "", "", false
		}
		return KindNumber, strconv.FormatFloat(f, 'g', -1, 64), true
	default:
		return "", "", false
	}
}
