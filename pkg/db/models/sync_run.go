package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/avollmer/propsync-backend/pkg/enums"
)

// SyncRun captures one webhook-triggered sync attempt against a deal.
type SyncRun struct {
	ID           string           `gorm:"column:id;primaryKey"`
	DeliveryID   string           `gorm:"column:delivery_id;not null;index"`
	ProposalID   string           `gorm:"column:proposal_id;not null"`
	DealID       int64            `gorm:"column:deal_id;not null;index"`
	EventType    enums.EventType  `gorm:"column:event_type;not null"`
	Status       enums.SyncStatus `gorm:"column:status;not null"`
	AppliedCount int              `gorm:"column:applied_count;not null;default:0"`
	Total        decimal.Decimal  `gorm:"column:total;type:numeric(14,2);not null;default:0"`
	Warnings     pq.StringArray   `gorm:"column:warnings;type:text[]"`
	ErrorText    string           `gorm:"column:error_text"`
	StartedAt    time.Time        `gorm:"column:started_at;not null"`
	FinishedAt   *time.Time       `gorm:"column:finished_at"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
}

// TableName pins the table used by the sync history.
func (SyncRun) TableName() string {
	return "sync_runs"
}
