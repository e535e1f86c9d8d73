package reconcile

import (
	"context"
	"fmt"

	"github.com/avollmer/propsync-backend/internal/lineitems"
	"github.com/avollmer/propsync-backend/internal/products"
	"github.com/avollmer/propsync-backend/pkg/crm"
	pkgerrors "github.com/avollmer/propsync-backend/pkg/errors"
	"github.com/avollmer/propsync-backend/pkg/logger"
)

// dealProductAPI is the slice of the CRM client the reconciler needs.
type dealProductAPI interface {
	GetDealProducts(ctx context.Context, dealID int64) ([]crm.DealProduct, error)
	DeleteDealProduct(ctx context.Context, dealID, linkID int64) error
	AddProductToDeal(ctx context.Context, dealID int64, in crm.AddProductInput) (crm.DealProduct, error)
}

// Service replaces a deal's product rows with the canonical line item set.
// The replacement is never diff-based: every existing row is removed, then
// one row per item is added in canonical order.
type Service interface {
	Replace(ctx context.Context, dealID int64, items []lineitems.LineItem, resolved []products.Identity) error
}

type service struct {
	api          dealProductAPI
	discountType string
	logger       *logger.Logger
}

// NewService builds a reconciler. discountType is forwarded on every row
// that carries a discount.
func NewService(api dealProductAPI, discountType string, logg *logger.Logger) (Service, error) {
	if api == nil {
		return nil, fmt.Errorf("crm deal product api required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{api: api, discountType: discountType, logger: logg}, nil
}

// Replace runs the two reconciliation phases. A failure while fetching or
// deleting aborts before any addition, so the deal still holds its previous
// rows and a retry starts clean. A failure while adding leaves the deal
// partially replaced; the error says how far the additions got, and a full
// re-sync converges.
func (s *service) Replace(ctx context.Context, dealID int64, items []lineitems.LineItem, resolved []products.Identity) error {
	if dealID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "deal id is required")
	}
	if len(items) != len(resolved) {
		return pkgerrors.New(pkgerrors.CodeInternal, "line items and identities out of step")
	}

	ctx = s.logger.WithDealID(ctx, dealID)

	existing, err := s.api.GetDealProducts(ctx, dealID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeReconcile, err, "fetch deal products failed").
			WithDetails(map[string]any{"phase": "fetch"})
	}

	for i, link := range existing {
		if err := s.api.DeleteDealProduct(ctx, dealID, link.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeReconcile, err, "delete deal product failed").
				WithDetails(map[string]any{"phase": "delete", "link_id": link.ID, "removed": i})
		}
	}
	if len(existing) > 0 {
		s.logger.Info(s.logger.WithField(ctx, "removed", len(existing)), "deal products cleared")
	}

	for i := range items {
		input := crm.AddProductInput{
			ProductID:        resolved[i].ID,
			ItemPrice:        items[i].UnitPrice,
			Quantity:         items[i].Quantity,
			Discount:         items[i].Discount,
			DiscountType:     s.discountType,
			Tax:              items[i].TaxRate,
			BillingFrequency: items[i].BillingFrequency.String(),
		}
		if _, err := s.api.AddProductToDeal(ctx, dealID, input); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePartialSync, err, "add deal product failed").
				WithDetails(map[string]any{"phase": "add", "added": i, "remaining": len(items) - i})
		}
	}

	s.logger.Info(s.logger.WithField(ctx, "applied", len(items)), "deal products replaced")
	return nil
}
