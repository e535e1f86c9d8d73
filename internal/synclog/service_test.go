package synclog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/avollmer/propsync-backend/pkg/db/models"
	"github.com/avollmer/propsync-backend/pkg/enums"
	pkgerrors "github.com/avollmer/propsync-backend/pkg/errors"
	"github.com/avollmer/propsync-backend/pkg/logger"
)

type stubRunsRepo struct {
	created   []*models.SyncRun
	createErr error

	deleted   int64
	deleteErr error
	cutoff    time.Time
}

func (s *stubRunsRepo) Create(_ context.Context, run *models.SyncRun) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, run)
	return nil
}

func (s *stubRunsRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.cutoff = cutoff
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	return s.deleted, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
}

func TestRecordPersistsEntry(t *testing.T) {
	repo := &stubRunsRepo{}
	svc, err := NewService(repo, testLogger())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	started := time.Now().UTC().Add(-2 * time.Second)
	finished := started.Add(time.Second)
	entry := Entry{
		DeliveryID: "dlv-1",
		ProposalID: "prop-1",
		DealID:     42,
		EventType:  enums.EventTypeSigned,
		Status:     enums.SyncStatusSucceeded,
		Applied:    3,
		Total:      decimal.RequireFromString("3000.00"),
		Warnings:   []string{"ambiguous product name"},
		StartedAt:  started,
		FinishedAt: finished,
	}
	if err := svc.Record(context.Background(), entry); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if len(repo.created) != 1 {
		t.Fatalf("expected 1 row, got %d", len(repo.created))
	}
	row := repo.created[0]
	if row.ID == "" {
		t.Fatalf("expected a generated row id")
	}
	if row.DeliveryID != "dlv-1" || row.ProposalID != "prop-1" || row.DealID != 42 {
		t.Fatalf("unexpected identifiers: %+v", row)
	}
	if row.Status != enums.SyncStatusSucceeded || row.AppliedCount != 3 {
		t.Fatalf("unexpected outcome fields: %+v", row)
	}
	if !row.Total.Equal(decimal.RequireFromString("3000.00")) {
		t.Fatalf("unexpected total %s", row.Total)
	}
	if len(row.Warnings) != 1 || row.Warnings[0] != "ambiguous product name" {
		t.Fatalf("unexpected warnings %v", row.Warnings)
	}
	if row.FinishedAt == nil || !row.FinishedAt.Equal(finished) {
		t.Fatalf("expected finished at %s, got %v", finished, row.FinishedAt)
	}
}

func TestRecordLeavesFinishedAtUnsetWhenMissing(t *testing.T) {
	repo := &stubRunsRepo{}
	svc, err := NewService(repo, testLogger())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	entry := Entry{
		DeliveryID: "dlv-2",
		Status:     enums.SyncStatusFailed,
		StartedAt:  time.Now().UTC(),
	}
	if err := svc.Record(context.Background(), entry); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if repo.created[0].FinishedAt != nil {
		t.Fatalf("expected nil finished at, got %v", repo.created[0].FinishedAt)
	}
}

func TestRecordValidatesEntry(t *testing.T) {
	svc, err := NewService(&stubRunsRepo{}, testLogger())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	cases := []struct {
		name  string
		entry Entry
	}{
		{name: "missing delivery id", entry: Entry{Status: enums.SyncStatusFailed}},
		{name: "invalid status", entry: Entry{DeliveryID: "dlv-3", Status: enums.SyncStatus("unknown")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Record(context.Background(), tc.entry)
			if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRecordWrapsRepoFailure(t *testing.T) {
	repo := &stubRunsRepo{createErr: errors.New("connection refused")}
	svc, err := NewService(repo, testLogger())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	recErr := svc.Record(context.Background(), Entry{
		DeliveryID: "dlv-4",
		Status:     enums.SyncStatusSucceeded,
		StartedAt:  time.Now().UTC(),
	})
	if pkgerrors.As(recErr).Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", recErr)
	}
}

func TestPruneUsesRetentionCutoff(t *testing.T) {
	repo := &stubRunsRepo{deleted: 5}
	svc, err := NewService(repo, testLogger())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	retention := 90 * 24 * time.Hour
	removed, err := svc.Prune(context.Background(), retention)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 5 {
		t.Fatalf("expected 5 removed, got %d", removed)
	}

	want := time.Now().UTC().Add(-retention)
	if diff := repo.cutoff.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("cutoff %s too far from expected %s", repo.cutoff, want)
	}
}

func TestPruneRejectsNonPositiveRetention(t *testing.T) {
	svc, err := NewService(&stubRunsRepo{}, testLogger())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, pruneErr := svc.Prune(context.Background(), 0)
	if pkgerrors.As(pruneErr).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", pruneErr)
	}
}
