package products

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/avollmer/propsync-backend/pkg/crm"
	pkgerrors "github.com/avollmer/propsync-backend/pkg/errors"
	"github.com/avollmer/propsync-backend/pkg/logger"
)

type createCall struct {
	name     string
	price    decimal.Decimal
	currency string
}

type stubProductAPI struct {
	searchResults []crm.Product
	searchErr     error
	searchCalls   int

	createResult crm.Product
	createErr    error
	createCalls  []createCall
}

func (s *stubProductAPI) SearchProducts(ctx context.Context, name string) ([]crm.Product, error) {
	s.searchCalls++
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.searchResults, nil
}

func (s *stubProductAPI) CreateProduct(ctx context.Context, name string, price decimal.Decimal, currency string) (crm.Product, error) {
	s.createCalls = append(s.createCalls, createCall{name: name, price: price, currency: currency})
	if s.createErr != nil {
		return crm.Product{}, s.createErr
	}
	return s.createResult, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
}

func newService(t *testing.T, api *stubProductAPI) Service {
	t.Helper()
	svc, err := NewService(api, testLogger())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestResolveSingleMatch(t *testing.T) {
	api := &stubProductAPI{searchResults: []crm.Product{{ID: 31, Name: "Consulting"}}}
	svc := newService(t, api)

	res, err := svc.Resolve(context.Background(), "Consulting", decimal.NewFromInt(1500), "EUR")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Identity.ID != 31 || res.Identity.Name != "Consulting" {
		t.Fatalf("unexpected identity %+v", res.Identity)
	}
	if res.Warning != "" {
		t.Fatalf("expected no warning, got %q", res.Warning)
	}
	if len(api.createCalls) != 0 {
		t.Fatalf("expected no creation for existing product")
	}
}

func TestResolveCreatesWhenMissing(t *testing.T) {
	api := &stubProductAPI{createResult: crm.Product{ID: 91, Name: "Support Plan"}}
	svc := newService(t, api)

	res, err := svc.Resolve(context.Background(), "Support Plan", decimal.NewFromInt(750), "EUR")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Identity.ID != 91 {
		t.Fatalf("unexpected identity %+v", res.Identity)
	}
	if len(api.createCalls) != 1 {
		t.Fatalf("expected one creation, got %d", len(api.createCalls))
	}
	call := api.createCalls[0]
	if call.name != "Support Plan" || !call.price.Equal(decimal.NewFromInt(750)) || call.currency != "EUR" {
		t.Fatalf("unexpected create call %+v", call)
	}
}

func TestResolveAmbiguousPicksFirstWithWarning(t *testing.T) {
	api := &stubProductAPI{searchResults: []crm.Product{{ID: 31, Name: "Consulting"}, {ID: 44, Name: "Consulting"}}}
	svc := newService(t, api)

	res, err := svc.Resolve(context.Background(), "Consulting", decimal.NewFromInt(1500), "EUR")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Identity.ID != 31 {
		t.Fatalf("expected first match, got %+v", res.Identity)
	}
	if !strings.Contains(res.Warning, "matched 2") {
		t.Fatalf("expected ambiguity warning, got %q", res.Warning)
	}
	if len(api.createCalls) != 0 {
		t.Fatalf("expected no creation on ambiguous match")
	}
}

func TestResolveSearchFailure(t *testing.T) {
	cause := errors.New("boom")
	api := &stubProductAPI{searchErr: cause}
	svc := newService(t, api)

	_, err := svc.Resolve(context.Background(), "Consulting", decimal.NewFromInt(1500), "EUR")
	if err == nil {
		t.Fatalf("expected resolve error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeResolve {
		t.Fatalf("expected %s, got %v", pkgerrors.CodeResolve, err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause preserved")
	}
	details, ok := typed.Details().(map[string]any)
	if !ok || details["name"] != "Consulting" {
		t.Fatalf("expected name detail, got %v", typed.Details())
	}
}

func TestResolveCreateFailure(t *testing.T) {
	api := &stubProductAPI{createErr: errors.New("rejected")}
	svc := newService(t, api)

	_, err := svc.Resolve(context.Background(), "New Product", decimal.NewFromInt(10), "EUR")
	if err == nil {
		t.Fatalf("expected resolve error")
	}
	if typed := pkgerrors.As(err); typed.Code() != pkgerrors.CodeResolve {
		t.Fatalf("expected %s, got %v", pkgerrors.CodeResolve, err)
	}
}

func TestResolveRejectsEmptyName(t *testing.T) {
	svc := newService(t, &stubProductAPI{})
	_, err := svc.Resolve(context.Background(), "  ", decimal.Zero, "EUR")
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if typed := pkgerrors.As(err); typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected %s, got %v", pkgerrors.CodeValidation, err)
	}
}

func TestNewServiceValidation(t *testing.T) {
	if _, err := NewService(nil, testLogger()); err == nil {
		t.Fatalf("expected error for missing api")
	}
	if _, err := NewService(&stubProductAPI{}, nil); err == nil {
		t.Fatalf("expected error for missing logger")
	}
}
