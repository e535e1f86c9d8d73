package synclog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/avollmer/propsync-backend/pkg/db/models"
	"github.com/avollmer/propsync-backend/pkg/enums"
	pkgerrors "github.com/avollmer/propsync-backend/pkg/errors"
	"github.com/avollmer/propsync-backend/pkg/logger"
)

type runsRepository interface {
	Create(ctx context.Context, run *models.SyncRun) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Entry describes one finished sync attempt.
type Entry struct {
	DeliveryID string
	ProposalID string
	DealID     int64
	EventType  enums.EventType
	Status     enums.SyncStatus
	Applied    int
	Total      decimal.Decimal
	Warnings   []string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Service records sync history rows and prunes old ones.
type Service interface {
	Record(ctx context.Context, entry Entry) error
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

type service struct {
	repo   runsRepository
	logger *logger.Logger
}

// NewService builds the sync history service.
func NewService(repo runsRepository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("sync run repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logger: logg}, nil
}

// Record writes one history row. Callers treat failures as advisory; history
// never gates a sync.
func (s *service) Record(ctx context.Context, entry Entry) error {
	if strings.TrimSpace(entry.DeliveryID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery id is required")
	}
	if !entry.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid sync status")
	}

	run := &models.SyncRun{
		ID:           uuid.NewString(),
		DeliveryID:   entry.DeliveryID,
		ProposalID:   entry.ProposalID,
		DealID:       entry.DealID,
		EventType:    entry.EventType,
		Status:       entry.Status,
		AppliedCount: entry.Applied,
		Total:        entry.Total,
		Warnings:     pq.StringArray(entry.Warnings),
		ErrorText:    entry.Error,
		StartedAt:    entry.StartedAt,
	}
	if !entry.FinishedAt.IsZero() {
		finished := entry.FinishedAt
		run.FinishedAt = &finished
	}

	if err := s.repo.Create(ctx, run); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record sync run")
	}
	return nil
}

// Prune deletes history rows older than the retention window.
func (s *service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "retention must be positive")
	}

	cutoff := time.Now().UTC().Add(-retention)
	removed, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "prune sync runs")
	}
	if removed > 0 {
		s.logger.Info(s.logger.WithField(ctx, "removed", removed), "sync history pruned")
	}
	return removed, nil
}
