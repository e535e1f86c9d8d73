package lineitems

import (
	"html"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/avollmer/propsync-backend/pkg/enums"
	pkgerrors "github.com/avollmer/propsync-backend/pkg/errors"
	"github.com/avollmer/propsync-backend/pkg/proposals"
)

// DefaultCurrency applies when the proposal does not carry a currency code.
const DefaultCurrency = "EUR"

// billingByRecurringType maps the proposal service's recurrence labels onto
// billing frequencies. Unmapped labels leave the frequency unset.
var billingByRecurringType = map[string]enums.BillingFrequency{
	"One Time Payment":  enums.BillingOneTime,
	"Monthly Payment":   enums.BillingMonthly,
	"Quarterly Payment": enums.BillingQuarterly,
	"Annual Payment":    enums.BillingAnnually,
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// Extractor turns a raw proposal document into the canonical line item set.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract walks the proposal's price tables in order and builds the
// canonical set. Included rows are the non-optional ones plus the optional
// ones the customer selected; optional unselected rows land in Excluded.
// Extraction is all or nothing: the first invalid included row rejects the
// whole document and the error names its position in the canonical set.
func (e *Extractor) Extract(doc proposals.Proposal) (Extraction, error) {
	currency := strings.TrimSpace(doc.CurrencyCode)
	if currency == "" {
		currency = DefaultCurrency
	}

	out := Extraction{Currency: currency}
	for _, table := range doc.PriceTables {
		if stripHTML(table.Title) == "" {
			continue
		}

		for _, row := range table.Items {
			if row.Optional && !row.Selected {
				out.Excluded = append(out.Excluded, ExcludedItem{
					Name:             stripHTML(row.Label),
					Price:            row.Cost,
					BillingFrequency: billingByRecurringType[row.RecurringType],
				})
				continue
			}

			index := len(out.Items)
			name := stripHTML(row.Label)
			if name == "" {
				return Extraction{}, extractionError("item name is empty", index)
			}
			if row.UnitCost.IsNegative() {
				return Extraction{}, extractionError("unit price is negative", index)
			}

			quantity := 1
			if row.Quantity != nil {
				quantity = *row.Quantity
			}
			if quantity < 1 {
				return Extraction{}, extractionError("quantity below one", index)
			}

			discount := decimal.Zero
			if row.Discount {
				if row.DiscountAmount.IsNegative() {
					return Extraction{}, extractionError("discount is negative", index)
				}
				discount = row.DiscountAmount
			}

			out.Items = append(out.Items, LineItem{
				Name:             name,
				UnitPrice:        row.UnitCost,
				Quantity:         quantity,
				TaxRate:          doc.TaxAmount,
				Discount:         discount,
				BillingFrequency: billingByRecurringType[row.RecurringType],
				Optional:         row.Optional,
			})
		}
	}

	return out, nil
}

// stripHTML decodes entities, removes tags, and trims the result.
func stripHTML(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(tagPattern.ReplaceAllString(html.UnescapeString(raw), ""))
}

func extractionError(reason string, index int) error {
	return pkgerrors.New(pkgerrors.CodeExtraction, "invalid line item").
		WithDetails(map[string]any{"reason": reason, "item_index": index})
}
