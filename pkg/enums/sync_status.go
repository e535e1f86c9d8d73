package enums

import "fmt"

// SyncStatus captures the terminal state of one sync attempt.
type SyncStatus string

const (
	// SyncStatusRunning marks an attempt that has started but not finished.
	SyncStatusRunning SyncStatus = "running"
	// SyncStatusSucceeded marks a fully applied sync.
	SyncStatusSucceeded SyncStatus = "succeeded"
	// SyncStatusFailed marks a sync that aborted with the deal unchanged.
	SyncStatusFailed SyncStatus = "failed"
	// SyncStatusPartial marks a sync interrupted mid-add; the deal holds a
	// subset of the new rows until a retry converges.
	SyncStatusPartial SyncStatus = "partial"
	// SyncStatusDuplicate marks a delivery suppressed by deduplication.
	SyncStatusDuplicate SyncStatus = "duplicate"
)

var validSyncStatuses = []SyncStatus{
	SyncStatusRunning,
	SyncStatusSucceeded,
	SyncStatusFailed,
	SyncStatusPartial,
	SyncStatusDuplicate,
}

// String implements fmt.Stringer.
func (s SyncStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is recognized.
func (s SyncStatus) IsValid() bool {
	for _, candidate := range validSyncStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSyncStatus converts a raw string into a SyncStatus.
func ParseSyncStatus(value string) (SyncStatus, error) {
	for _, candidate := range validSyncStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sync status %q", value)
}
