package service

import (
	"github.com/oficinapro/api/internal/enum"
	"github.com/oficinapro/api/internal/pricing"
	"github.com/shopspring/decimal"
)

// Summary holds the monetary rollup of one order's budget lines.
// Pending is derived by subtraction, so the three buckets always add up to
// the quoted total even if an item carries an unexpected status value.
type Summary struct {
	TotalQuoted   decimal.Decimal `json:"total_quoted"`
	TotalApproved decimal.Decimal `json:"total_approved"`
	TotalRefused  decimal.Decimal `json:"total_refused"`
	TotalPending  decimal.Decimal `json:"total_pending"`
}

// Summarize computes the budget totals over the given items.
func Summarize(items []Item) Summary {
	s := Summary{
		TotalQuoted:   decimal.Zero,
		TotalApproved: decimal.Zero,
		TotalRefused:  decimal.Zero,
	}
	for _, it := range items {
		s.TotalQuoted = s.TotalQuoted.Add(it.TotalPrice)
		switch it.Status {
		case enum.ItemStatusApproved:
			s.TotalApproved = s.TotalApproved.Add(it.TotalPrice)
		case enum.ItemStatusRefused:
			s.TotalRefused = s.TotalRefused.Add(it.TotalPrice)
		}
	}
	s.TotalPending = s.TotalQuoted.Sub(s.TotalApproved).Sub(s.TotalRefused)
	return s
}

// GroupByStatus partitions items by approval status.
func GroupByStatus(items []Item) map[string][]Item {
	return groupBy(items, func(it Item) string { return it.Status })
}

// GroupByPriority partitions items by traffic-light priority.
func GroupByPriority(items []Item) map[string][]Item {
	return groupBy(items, func(it Item) string { return it.Priority })
}

// GroupByTier partitions items by budget tier.
func GroupByTier(items []Item) map[string][]Item {
	return groupBy(items, func(it Item) string { return it.BudgetTier })
}

func groupBy(items []Item, key func(Item) string) map[string][]Item {
	out := make(map[string][]Item)
	for _, it := range items {
		k := key(it)
		out[k] = append(out[k], it)
	}
	return out
}

// LowMarginItems returns the items priced below the default margin that
// carry no discount justification. These are the lines a manager reviews
// before the budget goes out.
func LowMarginItems(items []Item) []Item {
	threshold := pricing.DefaultMargin()
	var out []Item
	for _, it := range items {
		if it.MarginPercent.LessThan(threshold) && it.DiscountJustification == "" {
			out = append(out, it)
		}
	}
	return out
}
