package account

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tolerance(t *testing.T) decimal.Decimal { return dec(t, "0.01") }

func record(t *testing.T, declared string, entries ...Entry) *DistributionRecord {
	t.Helper()
	r := &DistributionRecord{Entries: entries, Status: StatusDraft}
	if declared != "" {
		d := dec(t, declared)
		r.DeclaredTotal = &d
	}
	return r
}

func TestValidateConservation(t *testing.T) {
	tests := []struct {
		name     string
		declared string
		entries  []Entry
		wantKind FailureKind
		wantDiff string
	}{
		{
			name:     "exact match",
			declared: "100",
			entries:  []Entry{{Category: "medical", Quantity: decimal.NewFromInt(40)}, {Category: "navigation", Quantity: decimal.NewFromInt(60)}},
		},
		{
			name:     "within tolerance",
			declared: "100",
			entries:  []Entry{{Category: "medical", Quantity: decimal.NewFromInt(40)}, {Category: "navigation", Quantity: decimal.RequireFromString("60.5")}},
		},
		{
			name:     "under-allocated",
			declared: "100",
			entries:  []Entry{{Category: "medical", Quantity: decimal.NewFromInt(40)}, {Category: "navigation", Quantity: decimal.NewFromInt(50)}},
			wantKind: ConservationMismatch,
			wantDiff: "-10",
		},
		{
			name:     "over-allocated",
			declared: "100",
			entries:  []Entry{{Category: "medical", Quantity: decimal.NewFromInt(70)}, {Category: "navigation", Quantity: decimal.NewFromInt(42)}},
			wantKind: ConservationMismatch,
			wantDiff: "12",
		},
		{
			name:    "no declared total stands on its own",
			entries: []Entry{{Category: "medical", Quantity: decimal.NewFromInt(3)}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fail := Validate(record(t, tt.declared, tt.entries...), tolerance(t))
			if tt.wantKind == "" {
				assert.Nil(t, fail)
				return
			}
			require.NotNil(t, fail)
			assert.Equal(t, tt.wantKind, fail.Kind)
			assert.True(t, fail.Difference.Equal(dec(t, tt.wantDiff)),
				"difference = %s", fail.Difference)
		})
	}
}

func TestValidateStructural(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
	}{
		{name: "zero quantity", entries: []Entry{{Category: "medical", Quantity: decimal.Zero}}},
		{name: "negative quantity", entries: []Entry{{Category: "medical", Quantity: decimal.NewFromInt(-4)}}},
		{name: "empty category", entries: []Entry{{Category: "", Quantity: decimal.NewFromInt(4)}}},
		{name: "duplicate category", entries: []Entry{
			{Category: "medical", Quantity: decimal.NewFromInt(4)},
			{Category: "medical", Quantity: decimal.NewFromInt(2)},
		}},
		{name: "no entries", entries: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fail := Validate(record(t, "", tt.entries...), tolerance(t))
			require.NotNil(t, fail)
			assert.Equal(t, StructuralError, fail.Kind)
		})
	}
}
