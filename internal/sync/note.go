package sync

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/avollmer/propsync-backend/internal/lineitems"
	"github.com/avollmer/propsync-backend/pkg/enums"
)

var recurringSuffixes = map[enums.BillingFrequency]string{
	enums.BillingMonthly:   "/month",
	enums.BillingQuarterly: "/quarter",
	enums.BillingAnnually:  "/year",
}

// BuildNote renders the audit note attached to the deal after a sync. The
// first line names the proposal event, one line follows per synced item, and
// optional rows the customer skipped are listed at the end.
func BuildNote(eventType enums.EventType, extraction lineitems.Extraction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Proposal %s\n\n", eventType)

	for _, item := range extraction.Items {
		fmt.Fprintf(&b, "%s — %dx %s", item.Name, item.Quantity, formatAmount(item.UnitPrice, extraction.Currency))
		b.WriteString(recurringSuffixes[item.BillingFrequency])
		if item.Optional {
			b.WriteString(" (optional)")
		}
		if item.Discount.IsPositive() {
			fmt.Fprintf(&b, " (%s%% discount)", item.Discount)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nTotal: %s", formatAmount(extraction.Total(), extraction.Currency))

	if len(extraction.Excluded) > 0 {
		b.WriteString("\n\nOptional (not selected):")
		for _, item := range extraction.Excluded {
			fmt.Fprintf(&b, "\n    %s — %s", item.Name, formatAmount(item.Price, extraction.Currency))
			b.WriteString(recurringSuffixes[item.BillingFrequency])
		}
	}

	return b.String()
}

// EmptyNote is attached when a proposal carries no included items; the deal's
// existing products are left alone.
func EmptyNote(eventType enums.EventType) string {
	return fmt.Sprintf("Proposal %s: No products found.", eventType)
}

func formatAmount(amount decimal.Decimal, currency string) string {
	value := groupThousands(amount.StringFixed(2))
	if strings.EqualFold(currency, "EUR") {
		return "€" + value
	}
	return value + " " + currency
}

func groupThousands(fixed string) string {
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	return sign + b.String() + "." + frac
}
