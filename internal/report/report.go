// Package report rolls committed ledger entries up into the weekly crew
// report posted to each guild.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/astralship/energybot/internal/account"
	"github.com/astralship/energybot/internal/ledger"
)

// Contributor is one voyager's aggregate over the reporting window:
// allocations merged per category and the grand total of energy accounted.
type Contributor struct {
	VoyagerID   string
	Name        string
	Allocations []account.Entry
	Total       decimal.Decimal
}

// Build groups ledger entries by voyager and merges allocations per
// category. Contributors are ordered by name so the rendered report is
// stable; allocations keep descending quantity order.
func Build(entries []ledger.Entry) []Contributor {
	type agg struct {
		name    string
		byCat   map[string]decimal.Decimal
		catSeen []string
		total   decimal.Decimal
	}
	byVoyager := make(map[string]*agg)
	var order []string

	for _, e := range entries {
		a, ok := byVoyager[e.VoyagerID]
		if !ok {
			a = &agg{name: e.VoyagerName, byCat: make(map[string]decimal.Decimal)}
			byVoyager[e.VoyagerID] = a
			order = append(order, e.VoyagerID)
		}
		for _, alloc := range e.Allocations {
			if _, seen := a.byCat[alloc.Category]; !seen {
				a.catSeen = append(a.catSeen, alloc.Category)
			}
			a.byCat[alloc.Category] = a.byCat[alloc.Category].Add(alloc.Quantity)
			a.total = a.total.Add(alloc.Quantity)
		}
	}

	contributors := make([]Contributor, 0, len(order))
	for _, id := range order {
		a := byVoyager[id]
		allocs := make([]account.Entry, 0, len(a.catSeen))
		for _, cat := range a.catSeen {
			allocs = append(allocs, account.Entry{Category: cat, Quantity: a.byCat[cat]})
		}
		sort.SliceStable(allocs, func(i, j int) bool {
			if !allocs[i].Quantity.Equal(allocs[j].Quantity) {
				return allocs[i].Quantity.GreaterThan(allocs[j].Quantity)
			}
			return allocs[i].Category < allocs[j].Category
		})
		contributors = append(contributors, Contributor{
			VoyagerID:   id,
			Name:        a.name,
			Allocations: allocs,
			Total:       a.total,
		})
	}

	sort.SliceStable(contributors, func(i, j int) bool {
		if contributors[i].Name != contributors[j].Name {
			return contributors[i].Name < contributors[j].Name
		}
		return contributors[i].VoyagerID < contributors[j].VoyagerID
	})
	return contributors
}

// Render formats the weekly report for a guild channel. With no
// contributors it returns an encouragement instead of an empty table.
func Render(contributors []Contributor) string {
	if len(contributors) == 0 {
		return "It's been another week, but nobody accounted their energy. Let's do better next week!"
	}

	rows := make([]string, 0, len(contributors))
	for _, c := range contributors {
		lines := make([]string, 0, len(c.Allocations))
		for _, alloc := range c.Allocations {
			lines = append(lines, fmt.Sprintf("- %s: %s", alloc.Category, alloc.Quantity))
		}
		rows = append(rows, fmt.Sprintf("**Contributor**: %s\n**Contributions**\n%s\n**Energy**: %s energy",
			c.Name, strings.Join(lines, "\n"), c.Total))
	}

	return "It's been another week! Here's what all of us managed to get done:\n\n" +
		strings.Join(rows, "\n\n") +
		"\n\nCongratulations on the good work all around!"
}
