package proposals

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestIDAcceptsStringAndNumber(t *testing.T) {
	var parsed struct {
		A ID
		B ID
		C ID
	}
	payload := `{"A":"abc-123","B":42,"C":null}`
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		t.Fatalf("unmarshal ids: %v", err)
	}
	if parsed.A != "abc-123" {
		t.Fatalf("expected string id preserved, got %q", parsed.A)
	}
	if parsed.B != "42" {
		t.Fatalf("expected numeric id as text, got %q", parsed.B)
	}
	if parsed.C != "" {
		t.Fatalf("expected null id empty, got %q", parsed.C)
	}
}

func TestItemAcceptsQuotedAndBareAmounts(t *testing.T) {
	var item Item
	payload := `{"Label":"Consulting","UnitCost":"1500.50","Cost":3001,"Quantity":2}`
	if err := json.Unmarshal([]byte(payload), &item); err != nil {
		t.Fatalf("unmarshal item: %v", err)
	}
	if !item.UnitCost.Equal(decimal.RequireFromString("1500.50")) {
		t.Fatalf("unexpected unit cost %s", item.UnitCost)
	}
	if !item.Cost.Equal(decimal.NewFromInt(3001)) {
		t.Fatalf("unexpected cost %s", item.Cost)
	}
	if item.Quantity == nil || *item.Quantity != 2 {
		t.Fatalf("unexpected quantity %v", item.Quantity)
	}
}

func TestItemQuantityOmittedStaysNil(t *testing.T) {
	var item Item
	if err := json.Unmarshal([]byte(`{"Label":"Support"}`), &item); err != nil {
		t.Fatalf("unmarshal item: %v", err)
	}
	if item.Quantity != nil {
		t.Fatalf("expected nil quantity for omitted field, got %d", *item.Quantity)
	}
}
