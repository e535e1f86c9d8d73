package synclog

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/avollmer/propsync-backend/pkg/db/models"
)

// Repository persists sync run history.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a sync run repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts one sync run row.
func (r *Repository) Create(ctx context.Context, run *models.SyncRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// DeleteOlderThan removes runs created before the cutoff and reports how many
// rows were dropped.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.SyncRun{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
