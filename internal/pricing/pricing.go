// Package pricing computes the credit value of BTC/EUR reconciliation
// differences. Overpaid months are settled in prepaid API-call credits at a
// gross per-credit price that changes by calendar month.
package pricing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Tier is a per-credit net price effective from a given month onward.
// EffectiveFrom is "YYYY-MM" inclusive; empty means from the beginning.
type Tier struct {
	EffectiveFrom string
	NetPriceEur   decimal.Decimal
}

// Table holds the effective-dated credit price tiers plus the VAT rate
// applied on top of the net price.
type Table struct {
	tiers      []Tier
	taxPercent decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// DefaultTable returns the standard tiers: 0.19 EUR net per credit, raised to
// 0.21 EUR net from November 2025, both plus 25% VAT.
func DefaultTable() Table {
	table, _ := NewTable([]Tier{
		{EffectiveFrom: "", NetPriceEur: decimal.RequireFromString("0.19")},
		{EffectiveFrom: "2025-11", NetPriceEur: decimal.RequireFromString("0.21")},
	}, decimal.NewFromInt(25))
	return table
}

// NewTable builds a price table from tiers and a VAT percentage. Tiers are
// sorted by effective month; at least one tier must cover the earliest months.
func NewTable(tiers []Tier, taxPercent decimal.Decimal) (Table, error) {
	if len(tiers) == 0 {
		return Table{}, fmt.Errorf("at least one price tier is required")
	}

	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].EffectiveFrom < sorted[j].EffectiveFrom
	})

	if sorted[0].EffectiveFrom != "" {
		return Table{}, fmt.Errorf("first tier must have an open effective month")
	}
	for _, tier := range sorted {
		if tier.NetPriceEur.Sign() <= 0 {
			return Table{}, fmt.Errorf("tier price must be positive, got %s", tier.NetPriceEur)
		}
	}

	return Table{tiers: sorted, taxPercent: taxPercent}, nil
}

// ParseTiers parses a tier list of the form "=0.19,2025-11=0.21" where the
// key is the effective month (empty for the open-ended first tier) and the
// value is the net per-credit price in EUR.
func ParseTiers(s string) ([]Tier, error) {
	var tiers []Tier
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid tier entry %q", entry)
		}

		price, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid tier price in %q: %w", entry, err)
		}

		tiers = append(tiers, Tier{
			EffectiveFrom: strings.TrimSpace(parts[0]),
			NetPriceEur:   price,
		})
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("no tiers in %q", s)
	}
	return tiers, nil
}

// GrossCreditPrice returns the per-credit price including VAT for a month.
// Months compare as "YYYY-MM" strings; the latest tier at or before the month
// applies.
func (t Table) GrossCreditPrice(month string) decimal.Decimal {
	net := t.tiers[0].NetPriceEur
	for _, tier := range t.tiers {
		if tier.EffectiveFrom <= month {
			net = tier.NetPriceEur
		}
	}
	return net.Mul(hundred.Add(t.taxPercent)).Div(hundred)
}

// CreditsForDifference converts an overpaid reconciliation difference into
// credits: the difference divided by the month's gross credit price, rounded
// down. Zero or negative differences yield zero credits.
func (t Table) CreditsForDifference(differenceEur decimal.Decimal, month string) int64 {
	if differenceEur.Sign() <= 0 {
		return 0
	}
	return differenceEur.Div(t.GrossCreditPrice(month)).Floor().IntPart()
}

// AmountDue returns the EUR amount the customer still owes for an underpaid
// month: the absolute value of a negative difference, zero otherwise.
func (t Table) AmountDue(differenceEur decimal.Decimal) decimal.Decimal {
	if differenceEur.Sign() >= 0 {
		return decimal.Zero
	}
	return differenceEur.Abs()
}
