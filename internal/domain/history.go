package domain

import (
	"time"

	"github.com/google/uuid"
)

// SyncStatus records where a capture ended up.
type SyncStatus string

const (
	// StatusSynced means the remote table holds the capture.
	StatusSynced SyncStatus = "synced"
	// StatusLocal means no remote write was attempted (e.g. incomplete settings).
	StatusLocal SyncStatus = "local"
	// StatusFailed means a remote write was attempted and rejected.
	StatusFailed SyncStatus = "failed"
)

// NeedsSync reports whether a resync should pick the entry up.
func (s SyncStatus) NeedsSync() bool {
	return s == StatusLocal || s == StatusFailed
}

const (
	// HistoryCap is the maximum number of history entries kept.
	HistoryCap = 500
)

// HistoryEntry is a persisted capture plus its sync outcome.
type HistoryEntry struct {
	ID string `json:"id"`

	Capture

	SavedAt    time.Time  `json:"savedAt"`
	SyncStatus SyncStatus `json:"syncStatus"`

	// RecordID references the remote record when one is known.
	RecordID string `json:"recordId,omitempty"`

	// Error holds the last remote failure message.
	Error string `json:"error,omitempty"`

	// dropRecord stops MergeInto from keeping the existing RecordID.
	dropRecord bool
}

// NewHistoryEntry wraps a capture for persistence.
func NewHistoryEntry(c Capture, status SyncStatus, savedAt time.Time) HistoryEntry {
	return HistoryEntry{
		ID:         uuid.NewString(),
		Capture:    c,
		SavedAt:    savedAt,
		SyncStatus: status,
	}
}

// WithoutRecord returns a copy that clears the remote reference of the entry
// it is merged into.
func (e HistoryEntry) WithoutRecord() HistoryEntry {
	e.RecordID = ""
	e.dropRecord = true
	return e
}

// MergeInto applies e onto an existing entry for the same URL. The existing
// id and remote reference survive unless e carries its own, or e was built
// with WithoutRecord.
func (e HistoryEntry) MergeInto(existing HistoryEntry) HistoryEntry {
	merged := e
	if existing.ID != "" {
		merged.ID = existing.ID
	}
	if merged.RecordID == "" && !e.dropRecord {
		merged.RecordID = existing.RecordID
	}
	merged.dropRecord = false
	return merged
}
