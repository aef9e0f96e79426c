package command_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/bitmark/internal/command"
	"github.com/MrSnakeDoc/bitmark/internal/domain"
	"github.com/MrSnakeDoc/bitmark/internal/feishu"
	"github.com/MrSnakeDoc/bitmark/internal/store"
	"github.com/MrSnakeDoc/bitmark/internal/syncer"
)

// recorder remembers the last command it was handed.
type recorder struct {
	got any
	err error
}

func (r *recorder) SubmitCapture(_ context.Context, c command.SubmitCapture) (syncer.Result, error) {
	r.got = c
	return syncer.Result{Status: domain.StatusSynced, RecordID: "rec0001"}, r.err
}

func (r *recorder) CheckDuplicate(_ context.Context, c command.CheckDuplicate) (syncer.Duplicate, error) {
	r.got = c
	return syncer.Duplicate{}, r.err
}

func (r *recorder) CheckConfiguration(_ context.Context, c command.CheckConfiguration) (command.ConfigurationStatus, error) {
	r.got = c
	return command.ConfigurationStatus{}, r.err
}

func (r *recorder) TestAPIConnection(_ context.Context, c command.TestAPIConnection) (syncer.ConnectionResult, error) {
	r.got = c
	return syncer.ConnectionResult{}, r.err
}

func (r *recorder) ListFields(_ context.Context, c command.ListFields) ([]feishu.Field, error) {
	r.got = c
	return nil, r.err
}

func (r *recorder) GetSettings(_ context.Context, c command.GetSettings) (domain.Settings, error) {
	r.got = c
	return domain.Settings{}, r.err
}

func (r *recorder) SaveSettings(_ context.Context, c command.SaveSettings) (domain.Validation, error) {
	r.got = c
	return domain.Validation{}, r.err
}

func (r *recorder) ListHistory(_ context.Context, c command.ListHistory) ([]domain.HistoryEntry, error) {
	r.got = c
	return nil, r.err
}

func (r *recorder) DeleteHistory(_ context.Context, c command.DeleteHistory) error {
	r.got = c
	return r.err
}

func (r *recorder) ClearHistory(_ context.Context, c command.ClearHistory) error {
	r.got = c
	return r.err
}

func (r *recorder) ExportData(_ context.Context, c command.ExportData) (store.ExportDocument, error) {
	r.got = c
	return store.ExportDocument{}, r.err
}

func (r *recorder) ImportData(_ context.Context, c command.ImportData) error {
	r.got = c
	return r.err
}

func (r *recorder) GetStats(_ context.Context, c command.GetStats) (domain.Stats, error) {
	r.got = c
	return domain.Stats{}, r.err
}

func (r *recorder) GetStorageUsage(_ context.Context, c command.GetStorageUsage) (store.Usage, error) {
	r.got = c
	return store.Usage{}, r.err
}

func (r *recorder) SuggestTags(_ context.Context, c command.SuggestTags) ([]domain.TagCandidate, error) {
	r.got = c
	return nil, r.err
}

func TestDecodeRoutesEveryType(t *testing.T) {
	tests := []struct {
		raw  string
		want command.Command
	}{
		{`{"type":"SUBMIT_CAPTURE","payload":{"capture":{"url":"https://a.com","title":"A"},"mode":"create"}}`,
			command.SubmitCapture{Capture: &domain.Capture{URL: "https://a.com", Title: "A"}, Mode: syncer.ModeCreate}},
		{`{"type":"CHECK_DUPLICATE","payload":{"url":"https://a.com"}}`, command.CheckDuplicate{URL: "https://a.com"}},
		{`{"type":"CHECK_CONFIGURATION"}`, command.CheckConfiguration{}},
		{`{"type":"TEST_API_CONNECTION","payload":null}`, command.TestAPIConnection{}},
		{`{"type":"LIST_FIELDS"}`, command.ListFields{}},
		{`{"type":"GET_SETTINGS"}`, command.GetSettings{}},
		{`{"type":"SAVE_SETTINGS","payload":{"settings":{"tableId":"tblX"}}}`, command.SaveSettings{Settings: domain.Settings{TableID: "tblX"}}},
		{`{"type":"LIST_HISTORY","payload":{"limit":5}}`, command.ListHistory{Limit: 5}},
		{`{"type":"DELETE_HISTORY","payload":{"id":"h1"}}`, command.DeleteHistory{ID: "h1"}},
		{`{"type":"CLEAR_HISTORY"}`, command.ClearHistory{}},
		{`{"type":"EXPORT_DATA"}`, command.ExportData{}},
		{`{"type":"IMPORT_DATA","payload":{"document":{"version":"1.0.0"}}}`, command.ImportData{Document: store.ExportDocument{Version: "1.0.0"}}},
		{`{"type":"GET_STATS"}`, command.GetStats{}},
		{`{"type":"GET_STORAGE_USAGE"}`, command.GetStorageUsage{}},
		{`{"type":"SUGGEST_TAGS","payload":{"filter":"go"}}`, command.SuggestTags{Filter: "go"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.want.Type()), func(t *testing.T) {
			got, err := command.Decode([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			h := &recorder{}
			resp := command.Dispatch(context.Background(), h, got)
			assert.True(t, resp.Success)
			assert.Equal(t, tt.want, h.got, "dispatched to the matching handler method")
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"unknown type", `{"type":"OPEN_POPUP"}`, command.ErrUnknownType},
		{"missing type", `{}`, command.ErrUnknownType},
		{"not json", `nope`, command.ErrBadPayload},
		{"payload mismatch", `{"type":"LIST_HISTORY","payload":{"limit":"ten"}}`, command.ErrBadPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := command.Decode([]byte(tt.raw))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWrapUnwrap(t *testing.T) {
	env, err := command.Wrap(command.DeleteHistory{ID: "h42"})
	require.NoError(t, err)
	assert.Equal(t, command.TypeDeleteHistory, env.Type)

	got, err := env.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, command.DeleteHistory{ID: "h42"}, got)
}

func TestDispatchWrapsResults(t *testing.T) {
	h := &recorder{}
	resp := command.Dispatch(context.Background(), h, command.SubmitCapture{})
	require.True(t, resp.Success)
	res, ok := resp.Data.(syncer.Result)
	require.True(t, ok)
	assert.Equal(t, "rec0001", res.RecordID)

	h.err = errors.New("store offline")
	resp = command.Dispatch(context.Background(), h, command.ClearHistory{})
	assert.False(t, resp.Success)
	assert.Equal(t, "store offline", resp.Error)
	assert.Nil(t, resp.Data)
}
