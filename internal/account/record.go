// Package account holds the distribution record model and the pure
// build/validate/summarize steps of the accounting pipeline.
package account

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusValidated Status = "validated"
	StatusCommitted Status = "committed"
)

// Entry is one allocation line. Category is unique within a record; a
// re-mention merges by summation in the builder.
type Entry struct {
	Category  string
	Recipient string
	Quantity  decimal.Decimal
}

// DistributionRecord is the unit of work a session builds up and commits.
type DistributionRecord struct {
	VoyagerID   string
	VoyagerName string
	GuildID     string
	SessionID   string
	Entries     []Entry
	// DeclaredTotal is the total the voyager stated, kept apart from the
	// derived sum so the conservation check can compare them.
	DeclaredTotal *decimal.Decimal
	Status        Status
	CreatedAt     time.Time
}

// DerivedTotal is the sum actually computed from the entries.
func (r *DistributionRecord) DerivedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, e := range r.Entries {
		total = total.Add(e.Quantity)
	}
	return total
}

// Clone returns a deep copy so builder passes never alias a prior draft.
func (r *DistributionRecord) Clone() *DistributionRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Entries = append([]Entry(nil), r.Entries...)
	if r.DeclaredTotal != nil {
		d := *r.DeclaredTotal
		out.DeclaredTotal = &d
	}
	return &out
}
