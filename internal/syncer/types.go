package syncer

import (
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/bitmark/internal/domain"
)

// Mode selects how a submission picks its remote target.
type Mode string

const (
	// ModeUpsert updates the record found by the duplicate check, or
	// creates one when there is none.
	ModeUpsert Mode = "upsert"

	// ModeCreate always creates a record unless a target is given explicitly.
	ModeCreate Mode = "create"
)

// ErrInvalidMode is returned for an unknown submission mode.
var ErrInvalidMode = errors.New("invalid submission mode")

// ParseMode accepts "", "upsert" and "create". Empty means upsert.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeUpsert:
		return ModeUpsert, nil
	case ModeCreate:
		return ModeCreate, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// State is a step of the capture workflow.
type State string

const (
	StateIdle              State = "IDLE"
	StateValidating        State = "VALIDATING"
	StateCheckingDuplicate State = "CHECKING_DUPLICATE"
	StateWritingRemote     State = "WRITING_REMOTE"
	StateSucceeded         State = "SUCCEEDED"
	StateFallbackLocal     State = "FALLBACK_LOCAL"
	StateDone              State = "DONE"
)

// Submission is one capture handed to the coordinator.
type Submission struct {
	Capture domain.Capture `json:"capture"`

	// Mode defaults to ModeUpsert.
	Mode Mode `json:"mode,omitempty"`

	// TargetRecordID forces an update of that record.
	TargetRecordID string `json:"targetRecordId,omitempty"`
}

// Result is the outcome of Submit.
type Result struct {
	Status            domain.SyncStatus `json:"status"`
	Message           string            `json:"message"`
	RecordID          string            `json:"recordId,omitempty"`
	Duplicate         bool              `json:"duplicate"`
	DuplicateRecordID string            `json:"duplicateRecordId,omitempty"`
	HistoryID         string            `json:"historyId,omitempty"`
	Attempts          int               `json:"attempts"`

	// State is the outcome state (SUCCEEDED or FALLBACK_LOCAL); Trace lists
	// every state visited, ending with DONE.
	State State   `json:"state"`
	Trace []State `json:"trace"`

	// Err is the remote failure, if any.
	Err error `json:"-"`

	// RecordGone is set when the remembered remote record no longer exists.
	RecordGone bool `json:"-"`
}

func (r *Result) enter(s State) {
	r.Trace = append(r.Trace, s)
	if s == StateSucceeded || s == StateFallbackLocal {
		r.State = s
	}
}

// Duplicate is the outcome of a duplicate lookup.
type Duplicate struct {
	Duplicate bool   `json:"duplicate"`
	RecordID  string `json:"recordId,omitempty"`
	Matches   int    `json:"matches"`
}

// ConnectionResult is the outcome of TestConnection.
type ConnectionResult struct {
	OK        bool              `json:"ok"`
	Message   string            `json:"message"`
	TableName string            `json:"tableName,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// ResyncReport counts what a resync did.
type ResyncReport struct {
	Pending int `json:"pending"`
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}
