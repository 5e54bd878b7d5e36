package changelog

// FieldSource exposes an entity's raw field values by key.
type FieldSource interface {
	FieldValue(key string) (any, bool)
}

// Snapshot maps field keys to raw values at one point in time.
type Snapshot map[string]any

// Extract reads every registry field from src. Missing values become "" and
// unset references nil; Extract never fails.
func Extract(src FieldSource, reg *Registry) Snapshot {
	snap := make(Snapshot, reg.Len())
	for _, s := range reg.specs {
		v, ok := src.FieldValue(s.Key)
		switch {
		case s.Kind == KindReference:
			if !ok || refID(v) == "" {
				v = nil
			}
		case !ok || v == nil:
			v = ""
		}
		snap[s.Key] = v
	}
	return snap
}

// MapSource adapts a plain map (custom field values, test fixtures) to FieldSource.
type MapSource map[string]any

// FieldValue implements FieldSource.
func (m MapSource) FieldValue(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

// Merge returns a snapshot holding the entries of both; other wins on conflicts.
func (s Snapshot) Merge(other Snapshot) Snapshot {
	out := make(Snapshot, len(s)+len(other))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
