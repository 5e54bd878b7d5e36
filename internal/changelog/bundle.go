package changelog

import (
	"fmt"
	"strings"

	"supportportal.io/portal/internal/domain"
)

// TransferBundle is a group of uplink members that move between clients together.
type TransferBundle struct {
	Name    string
	Members []domain.UplinkField
}

// UplinkBundle moves a complete uplink.
var UplinkBundle = TransferBundle{
	Name:    "uplink",
	Members: domain.UplinkFields[:],
}

// Keys returns the member field keys for slot.
func (b TransferBundle) Keys(slot int) []string {
	keys := make([]string, len(b.Members))
	for i, m := range b.Members {
		keys[i] = domain.UplinkKey(slot, m)
	}
	return keys
}

// Summary renders the members held in snap at slot as "Label: value" lines,
// labelled with slot-1 labels so both sides of a transfer read the same.
func (b TransferBundle) Summary(reg *Registry, snap Snapshot, slot int, refs RefNames) (string, error) {
	lines := make([]string, 0, len(b.Members))
	for _, m := range b.Members {
		key := domain.UplinkKey(slot, m)
		spec, err := reg.Spec(key)
		if err != nil {
			return "", err
		}
		base, err := reg.Spec(domain.UplinkKey(domain.SlotPrimary, m))
		if err != nil {
			return "", err
		}
		lines = append(lines, fmt.Sprintf("%s: %s", base.Label, formatValue(spec, snap[key], refs)))
	}
	return strings.Join(lines, "\n"), nil
}

// ReceivedAction is the destination's activity text for a transfer.
func ReceivedAction(b TransferBundle, sourceName string, destSlot int, summary string) string {
	return ClampAction(fmt.Sprintf("Received %s from %s into slot %d:\n%s", b.Name, sourceName, destSlot, summary))
}

// SentAction is the source's activity text for a transfer.
func SentAction(b TransferBundle, destName string, destSlot int, summary string) string {
	return ClampAction(fmt.Sprintf("Sent %s to %s, slot %d:\n%s", b.Name, destName, destSlot, summary))
}

// ReplacedAction is the destination's activity text for the uplink a
// transfer overwrote.
func ReplacedAction(b TransferBundle, destSlot int, summary string) string {
	return ClampAction(fmt.Sprintf("Replaced %s in slot %d:\n%s", b.Name, destSlot, summary))
}
