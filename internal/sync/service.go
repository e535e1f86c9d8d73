package sync

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/avollmer/propsync-backend/internal/lineitems"
	"github.com/avollmer/propsync-backend/internal/products"
	"github.com/avollmer/propsync-backend/internal/synclog"
	"github.com/avollmer/propsync-backend/pkg/enums"
	pkgerrors "github.com/avollmer/propsync-backend/pkg/errors"
	"github.com/avollmer/propsync-backend/pkg/logger"
	"github.com/avollmer/propsync-backend/pkg/metrics"
	"github.com/avollmer/propsync-backend/pkg/proposals"
)

type proposalFetcher interface {
	GetProposal(ctx context.Context, proposalID string) (proposals.Proposal, error)
}

type lineItemExtractor interface {
	Extract(doc proposals.Proposal) (lineitems.Extraction, error)
}

type productResolver interface {
	Resolve(ctx context.Context, name string, price decimal.Decimal, currency string) (products.Resolution, error)
}

type dealReconciler interface {
	Replace(ctx context.Context, dealID int64, items []lineitems.LineItem, resolved []products.Identity) error
}

type noteWriter interface {
	AddNote(ctx context.Context, dealID int64, content string) error
}

type dealLocker interface {
	Acquire(ctx context.Context, dealID int64) (*DealLease, error)
}

type runRecorder interface {
	Record(ctx context.Context, entry synclog.Entry) error
}

// ServiceParams wires the sync orchestrator.
type ServiceParams struct {
	Proposals  proposalFetcher
	Extractor  lineItemExtractor
	Resolver   productResolver
	Reconciler dealReconciler
	Notes      noteWriter
	Dedup      Deduplicator
	Locks      dealLocker
	Runs       runRecorder          // optional, history only
	Metrics    *metrics.SyncMetrics // optional
	Logger     *logger.Logger
}

// Service drives one webhook delivery through fetch, extract, resolve,
// reconcile, and audit.
type Service struct {
	proposals  proposalFetcher
	extractor  lineItemExtractor
	resolver   productResolver
	reconciler dealReconciler
	notes      noteWriter
	dedup      Deduplicator
	locks      dealLocker
	runs       runRecorder
	metrics    *metrics.SyncMetrics
	logger     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Proposals == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "proposal client required")
	}
	if params.Extractor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "extractor required")
	}
	if params.Resolver == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "product resolver required")
	}
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciler required")
	}
	if params.Notes == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "note writer required")
	}
	if params.Dedup == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "deduplicator required")
	}
	if params.Locks == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "deal locker required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		proposals:  params.Proposals,
		extractor:  params.Extractor,
		resolver:   params.Resolver,
		reconciler: params.Reconciler,
		notes:      params.Notes,
		dedup:      params.Dedup,
		locks:      params.Locks,
		runs:       params.Runs,
		metrics:    params.Metrics,
		logger:     params.Logger,
	}, nil
}

// Sync applies one proposal event to its deal. The pipeline is idempotent
// end to end: rerunning a delivery converges on the same deal state.
func (s *Service) Sync(ctx context.Context, event Event) (Result, error) {
	started := time.Now().UTC()
	if err := event.Validate(); err != nil {
		return Result{}, err
	}

	ctx = s.eventContext(ctx, event)

	var warnings []string
	proceed, dedupErr := s.dedup.ShouldProcess(ctx, event.DeliveryID)
	if dedupErr != nil {
		// Fail open: syncing twice converges, dropping a delivery while
		// Redis is down does not.
		s.logger.Warn(ctx, "duplicate check unavailable, proceeding")
		warnings = append(warnings, "duplicate detection unavailable for this delivery")
	} else if !proceed {
		s.logger.Info(ctx, "duplicate delivery skipped")
		result := Result{Duplicate: true}
		s.finish(ctx, event, enums.SyncStatusDuplicate, result, started, nil)
		return result, nil
	}

	doc, err := s.proposals.GetProposal(ctx, event.ProposalID)
	if err != nil {
		return s.fail(ctx, event, started, warnings, err)
	}

	extraction, err := s.extractor.Extract(doc)
	if err != nil {
		return s.fail(ctx, event, started, warnings, err)
	}

	if len(extraction.Items) == 0 {
		return s.syncEmpty(ctx, event, started, warnings)
	}

	resolved, resolveWarnings, err := s.resolveAll(ctx, extraction)
	warnings = append(warnings, resolveWarnings...)
	if err != nil {
		return s.fail(ctx, event, started, warnings, err)
	}

	lease, err := s.locks.Acquire(ctx, event.DealID)
	if err != nil {
		return s.fail(ctx, event, started, warnings, err)
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn(ctx, "deal lock release failed")
		}
	}()

	if err := ctx.Err(); err != nil {
		return s.fail(ctx, event, started, warnings, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "canceled before reconciliation"))
	}

	// Once the replace starts it must run to completion; an abort between
	// delete and add would strand the deal half synced.
	runCtx := context.WithoutCancel(ctx)

	if err := s.reconciler.Replace(runCtx, event.DealID, extraction.Items, resolved); err != nil {
		return s.fail(ctx, event, started, warnings, err)
	}

	if err := s.notes.AddNote(runCtx, event.DealID, BuildNote(event.Type, extraction)); err != nil {
		return s.fail(ctx, event, started, warnings, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach audit note"))
	}

	warnings = s.markProcessed(runCtx, event, warnings)

	result := Result{Applied: len(extraction.Items), Total: extraction.Total(), Warnings: warnings}
	s.finish(ctx, event, enums.SyncStatusSucceeded, result, started, nil)
	s.logger.Info(s.logger.WithField(ctx, "applied", result.Applied), "proposal synced to deal")
	return result, nil
}

// syncEmpty handles a proposal with no included items. The deal keeps
// whatever products it already has; only the note records the empty event.
func (s *Service) syncEmpty(ctx context.Context, event Event, started time.Time, warnings []string) (Result, error) {
	if err := s.notes.AddNote(ctx, event.DealID, EmptyNote(event.Type)); err != nil {
		return s.fail(ctx, event, started, warnings, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach audit note"))
	}

	warnings = s.markProcessed(ctx, event, warnings)

	result := Result{Total: decimal.Zero, Warnings: warnings}
	s.finish(ctx, event, enums.SyncStatusSucceeded, result, started, nil)
	s.logger.Info(ctx, "proposal had no products, note attached")
	return result, nil
}

// resolveAll maps every line item to a CRM product identity, collecting all
// resolver failures before aborting so one pass reports every broken name.
func (s *Service) resolveAll(ctx context.Context, extraction lineitems.Extraction) ([]products.Identity, []string, error) {
	identities := make([]products.Identity, len(extraction.Items))
	var warnings []string
	var failure error

	// Memoized per name so a name repeated across price tables resolves to
	// one product instead of racing a create against itself.
	seen := make(map[string]products.Resolution, len(extraction.Items))
	for i, item := range extraction.Items {
		if hit, ok := seen[item.Name]; ok {
			identities[i] = hit.Identity
			continue
		}
		resolution, err := s.resolver.Resolve(ctx, item.Name, item.UnitPrice, extraction.Currency)
		if err != nil {
			failure = multierr.Append(failure, err)
			continue
		}
		seen[item.Name] = resolution
		identities[i] = resolution.Identity
		if resolution.Warning != "" {
			warnings = append(warnings, resolution.Warning)
		}
	}
	if failure != nil {
		return nil, warnings, failure
	}
	return identities, warnings, nil
}

func (s *Service) markProcessed(ctx context.Context, event Event, warnings []string) []string {
	if err := s.dedup.MarkProcessed(ctx, event.DeliveryID); err != nil {
		s.logger.Warn(ctx, "mark delivery processed failed")
		return append(warnings, "delivery not marked processed; a sender retry will resync")
	}
	return warnings
}

func (s *Service) fail(ctx context.Context, event Event, started time.Time, warnings []string, err error) (Result, error) {
	status := enums.SyncStatusFailed
	if pkgerrors.As(err).Code() == pkgerrors.CodePartialSync {
		status = enums.SyncStatusPartial
	}
	result := Result{Warnings: warnings}
	s.finish(ctx, event, status, result, started, err)
	s.logger.Error(ctx, "proposal sync failed", err)
	return result, err
}

// finish records metrics and the best-effort history row for one attempt.
func (s *Service) finish(ctx context.Context, event Event, status enums.SyncStatus, result Result, started time.Time, cause error) {
	finished := time.Now().UTC()
	if s.metrics != nil {
		s.metrics.ObserveAttempt(event.Type.String(), status.String(), finished.Sub(started))
		if result.Applied > 0 {
			s.metrics.AddApplied(result.Applied)
		}
	}

	if s.runs == nil {
		return
	}
	entry := synclog.Entry{
		DeliveryID: event.DeliveryID,
		ProposalID: event.ProposalID,
		DealID:     event.DealID,
		EventType:  event.Type,
		Status:     status,
		Applied:    result.Applied,
		Total:      result.Total,
		Warnings:   result.Warnings,
		StartedAt:  started,
		FinishedAt: finished,
	}
	if cause != nil {
		entry.Error = cause.Error()
	}
	if err := s.runs.Record(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn(ctx, "sync history write failed")
	}
}

func (s *Service) eventContext(ctx context.Context, event Event) context.Context {
	ctx = s.logger.WithDeliveryID(ctx, event.DeliveryID)
	ctx = s.logger.WithProposalID(ctx, event.ProposalID)
	ctx = s.logger.WithDealID(ctx, event.DealID)
	return s.logger.WithField(ctx, "event_type", event.Type.String())
}
