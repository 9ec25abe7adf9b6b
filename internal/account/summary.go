package account

import (
	"fmt"
	"sort"
	"strings"
)

// Summarize renders a validated or committed record as a bullet list. The
// order is a total order (descending quantity, then category name) so the
// same record always renders the same text. When a declared total exists and
// is not numerically identical to the derived sum, both are shown so that
// tolerance-absorbed gaps stay visible.
func Summarize(r *DistributionRecord) string {
	entries := append([]Entry(nil), r.Entries...)
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Quantity.Equal(entries[j].Quantity) {
			return entries[i].Quantity.GreaterThan(entries[j].Quantity)
		}
		return entries[i].Category < entries[j].Category
	})

	var b strings.Builder
	for _, e := range entries {
		if e.Recipient != "" {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", e.Category, e.Quantity, e.Recipient)
		} else {
			fmt.Fprintf(&b, "- %s: %s\n", e.Category, e.Quantity)
		}
	}

	derived := r.DerivedTotal()
	switch {
	case r.DeclaredTotal == nil:
		fmt.Fprintf(&b, "Total: %s energy", derived)
	case r.DeclaredTotal.Equal(derived):
		fmt.Fprintf(&b, "Total: %s energy", derived)
	default:
		fmt.Fprintf(&b, "Declared total: %s energy / allocated: %s energy", r.DeclaredTotal, derived)
	}
	return b.String()
}
