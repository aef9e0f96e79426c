// Package command defines the tagged messages the extension sends to the
// background service and dispatches them to a Handler.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/bitmark/internal/domain"
	"github.com/MrSnakeDoc/bitmark/internal/feishu"
	"github.com/MrSnakeDoc/bitmark/internal/store"
	"github.com/MrSnakeDoc/bitmark/internal/syncer"
)

// Type is the wire tag of a command.
type Type string

const (
	TypeSubmitCapture      Type = "SUBMIT_CAPTURE"
	TypeCheckDuplicate     Type = "CHECK_DUPLICATE"
	TypeCheckConfiguration Type = "CHECK_CONFIGURATION"
	TypeTestAPIConnection  Type = "TEST_API_CONNECTION"
	TypeListFields         Type = "LIST_FIELDS"
	TypeGetSettings        Type = "GET_SETTINGS"
	TypeSaveSettings       Type = "SAVE_SETTINGS"
	TypeListHistory        Type = "LIST_HISTORY"
	TypeDeleteHistory      Type = "DELETE_HISTORY"
	TypeClearHistory       Type = "CLEAR_HISTORY"
	TypeExportData         Type = "EXPORT_DATA"
	TypeImportData         Type = "IMPORT_DATA"
	TypeGetStats           Type = "GET_STATS"
	TypeGetStorageUsage    Type = "GET_STORAGE_USAGE"
	TypeSuggestTags        Type = "SUGGEST_TAGS"
)

var (
	// ErrUnknownType is returned by Decode for an unregistered tag.
	ErrUnknownType = errors.New("unknown command type")

	// ErrBadPayload is returned by Decode when the payload does not fit the tag.
	ErrBadPayload = errors.New("malformed command payload")
)

// Command is one tagged message. Accept calls the matching Handler method.
type Command interface {
	Type() Type
	Accept(ctx context.Context, h Handler) (any, error)
}

// Handler has one method per command. A new command cannot be dispatched
// until every Handler implements its method.
type Handler interface {
	SubmitCapture(ctx context.Context, c SubmitCapture) (syncer.Result, error)
	CheckDuplicate(ctx context.Context, c CheckDuplicate) (syncer.Duplicate, error)
	CheckConfiguration(ctx context.Context, c CheckConfiguration) (ConfigurationStatus, error)
	TestAPIConnection(ctx context.Context, c TestAPIConnection) (syncer.ConnectionResult, error)
	ListFields(ctx context.Context, c ListFields) ([]feishu.Field, error)
	GetSettings(ctx context.Context, c GetSettings) (domain.Settings, error)
	SaveSettings(ctx context.Context, c SaveSettings) (domain.Validation, error)
	ListHistory(ctx context.Context, c ListHistory) ([]domain.HistoryEntry, error)
	DeleteHistory(ctx context.Context, c DeleteHistory) error
	ClearHistory(ctx context.Context, c ClearHistory) error
	ExportData(ctx context.Context, c ExportData) (store.ExportDocument, error)
	ImportData(ctx context.Context, c ImportData) error
	GetStats(ctx context.Context, c GetStats) (domain.Stats, error)
	GetStorageUsage(ctx context.Context, c GetStorageUsage) (store.Usage, error)
	SuggestTags(ctx context.Context, c SuggestTags) ([]domain.TagCandidate, error)
}

// ConfigurationStatus answers CHECK_CONFIGURATION.
type ConfigurationStatus struct {
	Configured bool `json:"configured"`
	domain.Validation
}

// SubmitCapture saves a bookmark. Either Capture is given directly, or Page
// plus Edits are combined into one.
type SubmitCapture struct {
	Capture        *domain.Capture     `json:"capture,omitempty"`
	Page           *domain.PageInfo    `json:"page,omitempty"`
	Edits          domain.CaptureEdits `json:"edits"`
	Mode           syncer.Mode         `json:"mode,omitempty"`
	TargetRecordID string              `json:"targetRecordId,omitempty"`
}

type CheckDuplicate struct {
	URL string `json:"url"`
}

type CheckConfiguration struct{}

// TestAPIConnection tests the given settings, or the stored ones when nil.
type TestAPIConnection struct {
	Settings *domain.Settings `json:"settings,omitempty"`
}

type ListFields struct{}

type GetSettings struct{}

type SaveSettings struct {
	Settings domain.Settings `json:"settings"`
}

type ListHistory struct {
	Limit int `json:"limit,omitempty"`
}

type DeleteHistory struct {
	ID string `json:"id"`
}

type ClearHistory struct{}

type ExportData struct{}

type ImportData struct {
	Document store.ExportDocument `json:"document"`
}

type GetStats struct{}

type GetStorageUsage struct{}

// SuggestTags ranks known tags against Filter, leaving out Chosen ones.
type SuggestTags struct {
	Filter string   `json:"filter,omitempty"`
	Chosen []string `json:"chosen,omitempty"`
}

func (SubmitCapture) Type() Type      { return TypeSubmitCapture }
func (CheckDuplicate) Type() Type     { return TypeCheckDuplicate }
func (CheckConfiguration) Type() Type { return TypeCheckConfiguration }
func (TestAPIConnection) Type() Type  { return TypeTestAPIConnection }
func (ListFields) Type() Type         { return TypeListFields }
func (GetSettings) Type() Type        { return TypeGetSettings }
func (SaveSettings) Type() Type       { return TypeSaveSettings }
func (ListHistory) Type() Type        { return TypeListHistory }
func (DeleteHistory) Type() Type      { return TypeDeleteHistory }
func (ClearHistory) Type() Type       { return TypeClearHistory }
func (ExportData) Type() Type         { return TypeExportData }
func (ImportData) Type() Type         { return TypeImportData }
func (GetStats) Type() Type           { return TypeGetStats }
func (GetStorageUsage) Type() Type    { return TypeGetStorageUsage }
func (SuggestTags) Type() Type        { return TypeSuggestTags }

func (c SubmitCapture) Accept(ctx context.Context, h Handler) (any, error) {
	return h.SubmitCapture(ctx, c)
}

func (c CheckDuplicate) Accept(ctx context.Context, h Handler) (any, error) {
	return h.CheckDuplicate(ctx, c)
}

func (c CheckConfiguration) Accept(ctx context.Context, h Handler) (any, error) {
	return h.CheckConfiguration(ctx, c)
}

func (c TestAPIConnection) Accept(ctx context.Context, h Handler) (any, error) {
	return h.TestAPIConnection(ctx, c)
}

func (c ListFields) Accept(ctx context.Context, h Handler) (any, error) {
	return h.ListFields(ctx, c)
}

func (c GetSettings) Accept(ctx context.Context, h Handler) (any, error) {
	return h.GetSettings(ctx, c)
}

func (c SaveSettings) Accept(ctx context.Context, h Handler) (any, error) {
	return h.SaveSettings(ctx, c)
}

func (c ListHistory) Accept(ctx context.Context, h Handler) (any, error) {
	return h.ListHistory(ctx, c)
}

func (c DeleteHistory) Accept(ctx context.Context, h Handler) (any, error) {
	return nil, h.DeleteHistory(ctx, c)
}

func (c ClearHistory) Accept(ctx context.Context, h Handler) (any, error) {
	return nil, h.ClearHistory(ctx, c)
}

func (c ExportData) Accept(ctx context.Context, h Handler) (any, error) {
	return h.ExportData(ctx, c)
}

func (c ImportData) Accept(ctx context.Context, h Handler) (any, error) {
	return nil, h.ImportData(ctx, c)
}

func (c GetStats) Accept(ctx context.Context, h Handler) (any, error) {
	return h.GetStats(ctx, c)
}

func (c GetStorageUsage) Accept(ctx context.Context, h Handler) (any, error) {
	return h.GetStorageUsage(ctx, c)
}

func (c SuggestTags) Accept(ctx context.Context, h Handler) (any, error) {
	return h.SuggestTags(ctx, c)
}

// Envelope is the wire form of a command.
type Envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Wrap encodes c into an envelope.
func Wrap(c Command) (Envelope, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: c.Type(), Payload: b}, nil
}

// Unwrap decodes the payload into the command registered for the tag.
func (e Envelope) Unwrap() (Command, error) {
	switch e.Type {
	case TypeSubmitCapture:
		return decode[SubmitCapture](e)
	case TypeCheckDuplicate:
		return decode[CheckDuplicate](e)
	case TypeCheckConfiguration:
		return decode[CheckConfiguration](e)
	case TypeTestAPIConnection:
		return decode[TestAPIConnection](e)
	case TypeListFields:
		return decode[ListFields](e)
	case TypeGetSettings:
		return decode[GetSettings](e)
	case TypeSaveSettings:
		return decode[SaveSettings](e)
	case TypeListHistory:
		return decode[ListHistory](e)
	case TypeDeleteHistory:
		return decode[DeleteHistory](e)
	case TypeClearHistory:
		return decode[ClearHistory](e)
	case TypeExportData:
		return decode[ExportData](e)
	case TypeImportData:
		return decode[ImportData](e)
	case TypeGetStats:
		return decode[GetStats](e)
	case TypeGetStorageUsage:
		return decode[GetStorageUsage](e)
	case TypeSuggestTags:
		return decode[SuggestTags](e)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
}

func decode[T Command](e Envelope) (Command, error) {
	var v T
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(e.Payload, &v); err != nil {
		return nil, fmt.Errorf("%w for %s: %v", ErrBadPayload, e.Type, err)
	}
	return v, nil
}

// Decode parses a raw envelope.
func Decode(data []byte) (Command, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return e.Unwrap()
}

// Response is what the extension receives for every command.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Dispatch runs c against h and wraps the outcome.
func Dispatch(ctx context.Context, h Handler, c Command) Response {
	data, err := c.Accept(ctx, h)
	if err != nil {
		return Response{Success: false, Error: err.Error()}
	}
	return Response{Success: true, Data: data}
}
