package sync

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avollmer/propsync-backend/pkg/enums"
	pkgerrors "github.com/avollmer/propsync-backend/pkg/errors"
)

// Event is one proposal webhook delivery to apply against a deal.
type Event struct {
	DeliveryID string
	ProposalID string
	DealID     int64
	Type       enums.EventType
	ReceivedAt time.Time
}

// Validate rejects events that cannot identify a proposal, a deal, and a
// delivery.
func (e Event) Validate() error {
	if strings.TrimSpace(e.DeliveryID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery id is required")
	}
	if strings.TrimSpace(e.ProposalID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "proposal id is required")
	}
	if e.DealID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "deal id must be positive")
	}
	if !e.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown proposal event type")
	}
	return nil
}

// Result summarizes one finished sync.
type Result struct {
	Applied   int
	Total     decimal.Decimal
	Warnings  []string
	Duplicate bool
}
