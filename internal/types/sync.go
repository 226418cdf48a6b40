package types

import "fmt"

// SyncStatus is the overall outcome of a bank sync
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusPartial SyncStatus = "partial"
	SyncStatusError   SyncStatus = "error"
)

// DefaultDisplayErrors is how many sync errors are shown to a user
const DefaultDisplayErrors = 5

// SyncResult summarises one sync of one bank connection
type SyncResult struct {
	NewCount     int        `json:"new_count"`
	SkippedCount int        `json:"skipped_count"`
	ErrorCount   int        `json:"error_count"`
	Errors       []string   `json:"errors"`
	Status       SyncStatus `json:"status"`
}

// DeriveStatus computes the status from the counts
func (r *SyncResult) DeriveStatus() SyncStatus {
	switch {
	case r.ErrorCount > 0 && r.NewCount == 0:
		return SyncStatusError
	case r.ErrorCount > 0:
		return SyncStatusPartial
	default:
		return SyncStatusSuccess
	}
}

// DisplayErrors returns at most n errors, in the order they occurred
func (r *SyncResult) DisplayErrors(n int) []string {
	if n <= 0 || len(r.Errors) <= n {
		return r.Errors
	}
	return r.Errors[:n]
}

// Summary returns the short message stored against the connection
func (r *SyncResult) Summary() string {
	return fmt.Sprintf("%d new, %d skipped, %d errors", r.NewCount, r.SkippedCount, r.ErrorCount)
}
