package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// MonthTypeTotal is the ledger total of one transaction type within a month.
type MonthTypeTotal struct {
	Month  string // "2006-01"
	Type   TransactionType
	Amount Money
}

// TypeTotals sums the ledger by transaction type. Every type is present, zero when unused.
type TypeTotals map[TransactionType]Money

// NewTypeTotals returns totals with every known type set to zero.
func NewTypeTotals() TypeTotals {
	t := make(TypeTotals, len(TransactionTypes()))
	for _, typ := range TransactionTypes() {
		t[typ] = Money{}
	}
	return t
}
