package changelog

import "strings"

const (
	// ChangedPrefix starts a composed change entry.
	ChangedPrefix = "Changed: "
	// ChangeSeparator joins descriptions inside one entry.
	ChangeSeparator = " | "
	// NoChangesAction is recorded when an update changed no logged field.
	NoChangesAction = "Card updated (no field changes)"
	// MaxActionLen is the rune ceiling of an action before the ellipsis.
	// The activity column holds 500.
	MaxActionLen = 490
)

// ComposeAction folds descriptions into a single activity text. An empty
// list yields NoChangesAction so every update leaves a trace.
func ComposeAction(changes []ChangeDescription) string {
	if len(changes) == 0 {
		return NoChangesAction
	}
	parts := make([]string, len(changes))
	for i, c := range changes {
		parts[i] = c.String()
	}
	return ClampAction(ChangedPrefix + strings.Join(parts, ChangeSeparator))
}

// ClampAction caps s at MaxActionLen runes plus Ellipsis.
func ClampAction(s string) string {
	return Truncate(s, MaxActionLen)
}
