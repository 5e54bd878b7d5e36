// Package changelog turns client writes into human-readable audit text.
//
// A Registry is the ordered, immutable list of loggable fields. Extract takes
// a Snapshot of an entity before a write, Diff compares it with the submitted
// values and ComposeAction folds the result into one activity entry.
// Everything here is pure: no I/O, safe for concurrent use.
//
// Import Path: supportportal.io/portal/internal/changelog
package changelog

import (
	"fmt"
)

// Kind selects how a field's raw value is rendered.
type Kind string

const (
	KindPlain     Kind = "plain"
	KindEnum      Kind = "enum"
	KindBoolean   Kind = "boolean"
	KindTruncated Kind = "truncated"
	KindReference Kind = "reference"
)

// FieldSpec describes one loggable field.
type FieldSpec struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Kind  Kind   `json:"kind"`

	// EnumLabels maps raw values to display text (KindEnum).
	EnumLabels map[string]string `json:"enum_labels,omitempty"`
	// TruncateAt caps rendered length in runes (KindTruncated).
	TruncateAt int `json:"truncate_at,omitempty"`
	// SubmitKey is the request key carrying a reference's new id (KindReference),
	// e.g. "provider" for "provider_id".
	SubmitKey string `json:"-"`
	// RefSet names the id->name map in RefNames that resolves this reference.
	RefSet string `json:"-"`
}

// newValueKey is the key the submitted value is read from.
func (s FieldSpec) newValueKey() string {
	if s.Kind == KindReference && s.SubmitKey != "" {
		return s.SubmitKey
	}
	return s.Key
}

// UnknownFieldError reports a key that is not in the registry. It signals a
// programming error, not bad input.
type UnknownFieldError struct {
	Key string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("changelog: unknown field %q", e.Key)
}

// Registry is an ordered set of FieldSpecs with unique keys. It is never
// mutated after construction.
type Registry struct {
	specs []FieldSpec
	index map[string]int
}

// NewRegistry builds a registry in the given order.
func NewRegistry(specs ...FieldSpec) (*Registry, error) {
	r := &Registry{
		specs: make([]FieldSpec, 0, len(specs)),
		index: make(map[string]int, len(specs)),
	}
	for _, s := range specs {
		if s.Key == "" {
			return nil, fmt.Errorf("changelog: field with empty key (label %q)", s.Label)
		}
		if _, dup := r.index[s.Key]; dup {
			return nil, fmt.Errorf("changelog: duplicate field key %q", s.Key)
		}
		switch s.Kind {
		case KindPlain, KindEnum, KindBoolean:
		case KindTruncated:
			if s.TruncateAt <= 0 {
				return nil, fmt.Errorf("changelog: field %q: truncate_at must be positive", s.Key)
			}
		case KindReference:
			if s.RefSet == "" {
				return nil, fmt.Errorf("changelog: reference field %q has no ref set", s.Key)
			}
		default:
			return nil, fmt.Errorf("changelog: field %q: unknown kind %q", s.Key, s.Kind)
		}
		r.index[s.Key] = len(r.specs)
		r.specs = append(r.specs, s)
	}
	return r, nil
}

// MustRegistry is NewRegistry for package-level registries; it panics on error.
func MustRegistry(specs ...FieldSpec) *Registry {
	r, err := NewRegistry(specs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Len returns the number of fields.
func (r *Registry) Len() int {
	return len(r.specs)
}

// Fields returns a copy of the specs in registry order.
func (r *Registry) Fields() []FieldSpec {
	out := make([]FieldSpec, len(r.specs))
	copy(out, r.specs)
	return out
}

// Keys returns the field keys in registry order.
func (r *Registry) Keys() []string {
	out := make([]string, len(r.specs))
	for i, s := range r.specs {
		out[i] = s.Key
	}
	return out
}

// Spec returns the spec for key.
func (r *Registry) Spec(key string) (FieldSpec, error) {
	i, ok := r.index[key]
	if !ok {
		return FieldSpec{}, &UnknownFieldError{Key: key}
	}
	return r.specs[i], nil
}

// Has reports whether key is registered.
func (r *Registry) Has(key string) bool {
	_, ok := r.index[key]
	return ok
}

// ResolveLabel returns the display label for key.
func (r *Registry) ResolveLabel(key string) (string, error) {
	s, err := r.Spec(key)
	if err != nil {
		return "", err
	}
	return s.Label, nil
}

// Subset returns a registry holding only keys, in the receiver's order.
func (r *Registry) Subset(keys ...string) (*Registry, error) {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !r.Has(k) {
			return nil, &UnknownFieldError{Key: k}
		}
		want[k] = true
	}
	specs := make([]FieldSpec, 0, len(keys))
	for _, s := range r.specs {
		if want[s.Key] {
			specs = append(specs, s)
		}
	}
	return NewRegistry(specs...)
}

// With returns a new registry with extra appended after the receiver's fields.
func (r *Registry) With(extra ...FieldSpec) (*Registry, error) {
	specs := make([]FieldSpec, 0, len(r.specs)+len(extra))
	specs = append(specs, r.specs...)
	specs = append(specs, extra...)
	return NewRegistry(specs...)
}

// Format renders the raw value of key, resolving references through refs.
func (r *Registry) Format(key string, raw any, refs RefNames) (string, error) {
	s, err := r.Spec(key)
	if err != nil {
		return "", err
	}
	return formatValue(s, raw, refs), nil
}
