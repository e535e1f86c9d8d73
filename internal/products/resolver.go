package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/avollmer/propsync-backend/pkg/crm"
	pkgerrors "github.com/avollmer/propsync-backend/pkg/errors"
	"github.com/avollmer/propsync-backend/pkg/logger"
)

// productAPI is the slice of the CRM client the resolver needs.
type productAPI interface {
	SearchProducts(ctx context.Context, name string) ([]crm.Product, error)
	CreateProduct(ctx context.Context, name string, price decimal.Decimal, currency string) (crm.Product, error)
}

// Identity is the CRM-side identity of a product. Price and currency echo
// the requested values; the CRM's own price list is not consulted.
type Identity struct {
	ID       int64
	Name     string
	Price    decimal.Decimal
	Currency string
}

// Resolution carries the resolved identity plus a warning when the name was
// ambiguous on the CRM side.
type Resolution struct {
	Identity Identity
	Warning  string
}

// Service resolves product names to CRM product identities. The name is the
// natural key: a name that already exists is never created a second time.
type Service interface {
	Resolve(ctx context.Context, name string, price decimal.Decimal, currency string) (Resolution, error)
}

type service struct {
	api    productAPI
	logger *logger.Logger
}

// NewService builds a resolver backed by the shared CRM client.
func NewService(api productAPI, logg *logger.Logger) (Service, error) {
	if api == nil {
		return nil, fmt.Errorf("crm product api required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{api: api, logger: logg}, nil
}

// Resolve looks the name up with an exact-match search. A single hit wins, a
// miss creates the product, and multiple hits resolve to the first in the
// CRM's search order with a warning for the caller. Search-then-create is
// idempotent on retry, so a failed sync never strands duplicate products.
func (s *service) Resolve(ctx context.Context, name string, price decimal.Decimal, currency string) (Resolution, error) {
	if strings.TrimSpace(name) == "" {
		return Resolution{}, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}

	matches, err := s.api.SearchProducts(ctx, name)
	if err != nil {
		return Resolution{}, resolveError(name, err, "product search failed")
	}

	switch len(matches) {
	case 0:
		created, err := s.api.CreateProduct(ctx, name, price, currency)
		if err != nil {
			return Resolution{}, resolveError(name, err, "product creation failed")
		}
		s.logger.Info(s.logger.WithField(ctx, "product_id", created.ID), "product created")
		return Resolution{Identity: identityFor(created, price, currency)}, nil
	case 1:
		return Resolution{Identity: identityFor(matches[0], price, currency)}, nil
	default:
		s.logger.Warn(s.logger.WithFields(ctx, map[string]any{
			"product_name": name,
			"matches":      len(matches),
			"chosen_id":    matches[0].ID,
		}), "ambiguous product name")
		warning := fmt.Sprintf("product name %q matched %d products, using id %d", name, len(matches), matches[0].ID)
		return Resolution{Identity: identityFor(matches[0], price, currency), Warning: warning}, nil
	}
}

func identityFor(p crm.Product, price decimal.Decimal, currency string) Identity {
	return Identity{ID: p.ID, Name: p.Name, Price: price, Currency: currency}
}

func resolveError(name string, cause error, message string) error {
	return pkgerrors.Wrap(pkgerrors.CodeResolve, cause, message).
		WithDetails(map[string]any{"name": name})
}
