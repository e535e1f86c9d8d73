package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/avollmer/propsync-backend/api/responses"
	"github.com/avollmer/propsync-backend/api/validators"
	syncsvc "github.com/avollmer/propsync-backend/internal/sync"
	"github.com/avollmer/propsync-backend/pkg/config"
	"github.com/avollmer/propsync-backend/pkg/enums"
	pkgerrors "github.com/avollmer/propsync-backend/pkg/errors"
	"github.com/avollmer/propsync-backend/pkg/logger"
)

const proposalSignatureHeader = "X-Proposal-Signature"

// ProposalSyncService runs one webhook-triggered sync end to end.
type ProposalSyncService interface {
	Sync(ctx context.Context, event syncsvc.Event) (syncsvc.Result, error)
}

type proposalEventRequest struct {
	Event      string `json:"event" validate:"required"`
	ProposalID string `json:"proposal_id" validate:"required"`
	DealID     int64  `json:"deal_id" validate:"required,gt=0"`
	DeliveryID string `json:"delivery_id" validate:"required"`
}

type proposalSyncResponse struct {
	Status   string   `json:"status"`
	Applied  int      `json:"applied"`
	Warnings []string `json:"warnings,omitempty"`
}

// ProposalWebhook handles proposal lifecycle events from the proposal service.
func ProposalWebhook(svc ProposalSyncService, webhookCfg config.WebhookConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sync service unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get(proposalSignatureHeader)
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "proposal signature missing"))
			return
		}
		if !validateProposalSignature(payload, webhookCfg.SigningSecret, sigHeader) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid proposal signature"))
			return
		}

		var req proposalEventRequest
		if err := validators.DecodeJSON(payload, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		eventType, err := enums.ParseWebhookEvent(req.Event)
		if err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "unknown event").
					WithDetails(map[string]any{"event": req.Event}))
			return
		}

		result, err := svc.Sync(ctx, syncsvc.Event{
			DeliveryID: req.DeliveryID,
			ProposalID: req.ProposalID,
			DealID:     req.DealID,
			Type:       eventType,
			ReceivedAt: time.Now().UTC(),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if result.Duplicate {
			responses.WriteSuccess(w, map[string]string{"status": "duplicate"})
			return
		}
		responses.WriteSuccess(w, proposalSyncResponse{
			Status:   "ok",
			Applied:  result.Applied,
			Warnings: result.Warnings,
		})
	}
}

func validateProposalSignature(payload []byte, secret, header string) bool {
	if header == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
