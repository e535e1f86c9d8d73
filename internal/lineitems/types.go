package lineitems

import (
	"github.com/shopspring/decimal"

	"github.com/avollmer/propsync-backend/pkg/enums"
)

// LineItem is one canonical product row derived from a proposal. It is a
// value object; two items with equal fields are the same item.
type LineItem struct {
	Name             string
	UnitPrice        decimal.Decimal
	Quantity         int
	TaxRate          decimal.Decimal
	Discount         decimal.Decimal
	BillingFrequency enums.BillingFrequency
	Optional         bool
}

// Amount returns the item's contribution to the proposal total, quantity
// times unit price, ignoring discount and tax.
func (li LineItem) Amount() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// ExcludedItem is an optional proposal row the customer did not select. It
// is never synced to the deal; it only appears in the audit note.
type ExcludedItem struct {
	Name             string
	Price            decimal.Decimal
	BillingFrequency enums.BillingFrequency
}

// Extraction is the complete outcome of parsing one proposal document.
// Items preserves the proposal's order of appearance: tables in document
// order, rows in table order.
type Extraction struct {
	Items    []LineItem
	Excluded []ExcludedItem
	Currency string
}

// Total sums quantity times unit price over the included items.
func (e Extraction) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range e.Items {
		total = total.Add(item.Amount())
	}
	return total
}
