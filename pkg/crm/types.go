package crm

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Product is a CRM product identity row. Only the fields the sync pipeline
// reads are decoded.
type Product struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// DealProduct is one product attachment row on a deal.
type DealProduct struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	ItemPrice decimal.Decimal `json:"item_price"`
	Quantity  int             `json:"quantity"`
}

// AddProductInput describes one deal-product row to attach. Discount and tax
// are percentages; zero values are omitted from the wire payload.
type AddProductInput struct {
	ProductID        int64
	ItemPrice        decimal.Decimal
	Quantity         int
	Discount         decimal.Decimal
	DiscountType     string
	Tax              decimal.Decimal
	BillingFrequency string
}

type envelope struct {
	Success   bool            `json:"success"`
	Error     string          `json:"error"`
	ErrorInfo string          `json:"error_info"`
	Data      json.RawMessage `json:"data"`
}

// searchData is the nested shape of the product search endpoint.
type searchData struct {
	Items []struct {
		Item Product `json:"item"`
	} `json:"items"`
}
