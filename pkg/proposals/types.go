package proposals

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// ID is a proposal identifier. The upstream API encodes identifiers as
// numbers in some payloads and strings in others, so unmarshalling accepts
// both and keeps the textual form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// Proposal is the full proposal document. Field names follow the upstream
// JSON schema, which is PascalCase.
type Proposal struct {
	ID           ID              `json:"ID"`
	QuoteID      ID              `json:"QuoteID"`
	CurrencyCode string          `json:"CurrencyCode"`
	TaxAmount    decimal.Decimal `json:"TaxAmount"`
	PriceTables  []PriceTable    `json:"PriceTables"`
}

// PriceTable is one pricing block of a proposal.
type PriceTable struct {
	Title string `json:"Title"`
	Items []Item `json:"Items"`
}

// Item is one row of a price table. Quantity is a pointer because the
// upstream omits it for single-quantity rows.
type Item struct {
	Label          string          `json:"Label"`
	UnitCost       decimal.Decimal `json:"UnitCost"`
	Cost           decimal.Decimal `json:"Cost"`
	Quantity       *int            `json:"Quantity"`
	Optional       bool            `json:"Optional"`
	Selected       bool            `json:"Selected"`
	Discount       bool            `json:"Discount"`
	DiscountAmount decimal.Decimal `json:"DiscountAmount"`
	RecurringType  string          `json:"RecurringType"`
}

// listEntry is the subset of a proposal listing row needed to resolve a
// quote id to a proposal id.
type listEntry struct {
	ID      ID `json:"ID"`
	QuoteID ID `json:"QuoteID"`
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e envelope) errored() bool {
	return strings.EqualFold(strings.TrimSpace(e.Status), "error")
}
