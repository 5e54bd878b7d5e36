package changelog

import "fmt"

// ChangeDescription is one field's formatted before/after pair.
type ChangeDescription struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// String renders "Label: «old» → «new»".
func (c ChangeDescription) String() string {
	return fmt.Sprintf("%s: «%s» → «%s»", c.Label, c.Old, c.New)
}

// Diff compares old with the submitted values in newRaw and returns one
// description per changed field, in registry order.
//
// Fields whose submitted key is absent from newRaw are not compared, so a
// partial update never reports untouched fields. References are read from
// their SubmitKey and skipped before any name lookup when the ids match.
// A field is reported only when both its raw values and its rendered values
// differ, so null → "" and false → "no" are not changes.
func Diff(old Snapshot, newRaw map[string]any, reg *Registry, refs RefNames) []ChangeDescription {
	var out []ChangeDescription
	for _, s := range reg.specs {
		newVal, submitted := newRaw[s.newValueKey()]
		if !submitted {
			continue
		}
		oldVal := old[s.Key]

		if s.Kind == KindReference {
			if refID(oldVal) == refID(newVal) {
				continue
			}
		} else if rawString(oldVal) == rawString(newVal) {
			continue
		}

		oldText := formatValue(s, oldVal, refs)
		newText := formatValue(s, newVal, refs)
		if oldText == newText {
			continue
		}
		out = append(out, ChangeDescription{
			Key:   s.Key,
			Label: s.Label,
			Old:   oldText,
			New:   newText,
		})
	}
	return out
}
