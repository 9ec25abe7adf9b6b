package account

import (
	"github.com/astralship/energybot/internal/extract"
	"github.com/shopspring/decimal"
)

// Build merges extracted tokens into a draft record. A nil draft starts a
// fresh one. Re-mention of a category is additive unless the token carries
// the replace flag, in which case the prior entry is overwritten. A declared
// total stated later overrides an earlier one. Deterministic: the same
// tokens against the same draft always yield the same result.
func Build(tokens []extract.Token, declaredTotal *decimal.Decimal, draft *DistributionRecord) *DistributionRecord {
	out := draft.Clone()
	if out == nil {
		out = &DistributionRecord{}
	}
	out.Status = StatusDraft

	for _, tok := range tokens {
		idx := entryIndex(out.Entries, tok.Category)
		switch {
		case idx < 0:
			out.Entries = append(out.Entries, Entry{
				Category:  tok.Category,
				Recipient: tok.Recipient,
				Quantity:  tok.Quantity,
			})
		case tok.Replace:
			out.Entries[idx].Quantity = tok.Quantity
			if tok.Recipient != "" {
				out.Entries[idx].Recipient = tok.Recipient
			}
		default:
			out.Entries[idx].Quantity = out.Entries[idx].Quantity.Add(tok.Quantity)
			if out.Entries[idx].Recipient == "" {
				out.Entries[idx].Recipient = tok.Recipient
			}
		}
	}

	if declaredTotal != nil {
		d := *declaredTotal
		out.DeclaredTotal = &d
	}
	return out
}

func entryIndex(entries []Entry, category string) int {
	for i, e := range entries {
		if e.Category == category {
			return i
		}
	}
	return -1
}
