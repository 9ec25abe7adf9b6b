package account

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type FailureKind string

const (
	StructuralError      FailureKind = "structural_error"
	ConservationMismatch FailureKind = "conservation_mismatch"
)

// ValidationFailure is recoverable by conversation; Difference carries the
// signed gap (derived − declared) so a clarification prompt can state it.
type ValidationFailure struct {
	Kind       FailureKind
	Difference decimal.Decimal
	Detail     string
}

func (f *ValidationFailure) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", f.Kind, f.Detail)
}

// Validate checks structural and conservation invariants. tolerance is a
// fraction of the declared total; with no declared total the derived sum
// stands as the implicit total and only structural checks apply. A nil
// return means the record may move to Validated.
func Validate(r *DistributionRecord, tolerance decimal.Decimal) *ValidationFailure {
	seen := make(map[string]bool, len(r.Entries))
	for _, e := range r.Entries {
		if e.Category == "" {
			return &ValidationFailure{Kind: StructuralError, Detail: "entry with empty category"}
		}
		if !e.Quantity.IsPositive() {
			return &ValidationFailure{
				Kind:   StructuralError,
				Detail: fmt.Sprintf("quantity for %q must be positive, got %s", e.Category, e.Quantity),
			}
		}
		if seen[e.Category] {
			// builder guarantees uniqueness, assert it anyway
			return &ValidationFailure{
				Kind:   StructuralError,
				Detail: fmt.Sprintf("duplicate category %q", e.Category),
			}
		}
		seen[e.Category] = true
	}
	if len(r.Entries) == 0 {
		return &ValidationFailure{Kind: StructuralError, Detail: "no allocations recorded yet"}
	}

	if r.DeclaredTotal == nil {
		return nil
	}

	derived := r.DerivedTotal()
	diff := derived.Sub(*r.DeclaredTotal)
	allowed := r.DeclaredTotal.Abs().Mul(tolerance)
	if diff.Abs().GreaterThan(allowed) {
		return &ValidationFailure{
			Kind:       ConservationMismatch,
			Difference: diff,
			Detail:     fmt.Sprintf("allocations sum to %s against a declared total of %s", derived, r.DeclaredTotal),
		}
	}
	return nil
}
