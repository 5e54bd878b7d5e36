package changelog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"supportportal.io/portal/internal/domain"
)

const (
	// Placeholder renders an empty or missing value.
	Placeholder = "—"
	// Ellipsis marks truncated text.
	Ellipsis = "..."

	labelYes = "Yes"
	labelNo  = "No"
)

// RefNames resolves reference ids to display names, keyed by ref set
// ("providers", "ofd_companies").
type RefNames map[string]map[int64]string

// Lookup returns the name of id in set.
func (r RefNames) Lookup(set string, id int64) (string, bool) {
	names, ok := r[set]
	if !ok {
		return "", false
	}
	name, ok := names[id]
	return name, ok
}

// FormatValue renders raw for display. It never fails: empty values render as
// Placeholder and unresolvable references as "#<id>".
func FormatValue(spec FieldSpec, raw any) string {
	return formatValue(spec, raw, nil)
}

func formatValue(spec FieldSpec, raw any, refs RefNames) string {
	switch spec.Kind {
	case KindBoolean:
		if domain.Truthy(raw) {
			return labelYes
		}
		return labelNo
	case KindReference:
		id := refID(raw)
		if id == "" {
			return Placeholder
		}
		n, err := strconv.ParseInt(id, 10, 64)
		if err == nil {
			if name, ok := refs.Lookup(spec.RefSet, n); ok && name != "" {
				return name
			}
		}
		return "#" + id
	}

	s := rawString(raw)
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	switch spec.Kind {
	case KindEnum:
		if label, ok := spec.EnumLabels[s]; ok {
			return label
		}
	case KindTruncated:
		return Truncate(s, spec.TruncateAt)
	}
	return s
}

// FormatCell renders raw for tabular output. Empty values stay empty and
// truncated kinds keep their full text.
func FormatCell(spec FieldSpec, raw any, refs RefNames) string {
	switch spec.Kind {
	case KindReference:
		if refID(raw) == "" {
			return ""
		}
	case KindBoolean:
	default:
		if strings.TrimSpace(rawString(raw)) == "" {
			return ""
		}
	}
	if spec.Kind == KindTruncated {
		spec.Kind = KindPlain
	}
	return formatValue(spec, raw, refs)
}

// Truncate caps s at limit runes, appending Ellipsis when it had to cut.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i] + Ellipsis
		}
		n++
	}
	return s
}

// rawString is the comparison form of a raw value.
func rawString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case *int64:
		if t == nil {
			return ""
		}
		return strconv.FormatInt(*t, 10)
	case *string:
		if t == nil {
			return ""
		}
		return *t
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}

// refID is the comparison form of a reference: the decimal id, or "" when unset.
func refID(v any) string {
	s := strings.TrimSpace(rawString(v))
	if s == "0" {
		return ""
	}
	return s
}
