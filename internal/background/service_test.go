package background_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/bitmark/internal/background"
	"github.com/MrSnakeDoc/bitmark/internal/command"
	"github.com/MrSnakeDoc/bitmark/internal/domain"
	"github.com/MrSnakeDoc/bitmark/internal/feishu"
	"github.com/MrSnakeDoc/bitmark/internal/feishu/feishutest"
	"github.com/MrSnakeDoc/bitmark/internal/logger"
	"github.com/MrSnakeDoc/bitmark/internal/store"
	"github.com/MrSnakeDoc/bitmark/internal/store/memory"
	"github.com/MrSnakeDoc/bitmark/internal/syncer"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*background.Service, *feishutest.Server) {
	t.Helper()

	srv := feishutest.New()
	t.Cleanup(srv.Close)

	log := logger.NewNop()
	clock := func() time.Time { return now }
	manager := store.NewManager(memory.New(), log, clock)
	client := feishu.NewClient(feishu.Config{BaseURL: srv.URL, Now: clock}, feishu.NewTokenCache(), log)
	coord := syncer.NewCoordinator(manager, client, syncer.Config{
		RetryBase: time.Millisecond,
		RetryMax:  time.Millisecond,
		Now:       clock,
	}, log)

	svc := background.New(coord, manager, client.Tokens(), background.Options{Version: "1.2.3", Now: clock}, log)
	require.NoError(t, svc.Init(context.Background()))
	return svc, srv
}

func validSettings() domain.Settings {
	s := domain.DefaultSettings()
	s.AppID = "cli_test123456"
	s.AppSecret = "s3cret"
	s.BaseID = "bascnTest0001"
	s.TableID = "tblBookmarks"
	return s
}

func ptr[T any](v T) *T { return &v }

func TestInitWritesDefaultsOnce(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	s, err := svc.GetSettings(ctx, command.GetSettings{})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTags, s.DefaultTags)
	assert.Equal(t, domain.DefaultMaxRetries, s.MaxRetries)

	_, err = svc.SaveSettings(ctx, command.SaveSettings{Settings: validSettings()})
	require.NoError(t, err)
	require.NoError(t, svc.Init(ctx))

	s, err = svc.GetSettings(ctx, command.GetSettings{})
	require.NoError(t, err)
	assert.Equal(t, "tblBookmarks", s.TableID, "init keeps existing settings")

	raw, err := svc.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", raw.AppSecret)
}

func TestSubmitCaptureFromPage(t *testing.T) {
	svc, srv := newService(t)
	ctx := context.Background()

	res, err := svc.SubmitCapture(ctx, command.SubmitCapture{
		Page:  &domain.PageInfo{URL: "https://go.dev", Title: "The Go Programming Language", Keywords: "go, lang"},
		Edits: domain.CaptureEdits{Notes: ptr("read later")},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLocal, res.Status)
	assert.Equal(t, 0, srv.TotalCalls())

	history, err := svc.ListHistory(ctx, command.ListHistory{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "read later", history[0].Notes)
	assert.Equal(t, []string{"go", "lang"}, history[0].Tags)
	assert.Equal(t, now, history[0].Timestamp)

	_, err = svc.SubmitCapture(ctx, command.SubmitCapture{})
	assert.ErrorIs(t, err, domain.ErrInvalidCapture)
}

func TestSaveSettingsKeepsRedactedSecrets(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	v, err := svc.SaveSettings(ctx, command.SaveSettings{Settings: validSettings()})
	require.NoError(t, err)
	assert.True(t, v.Valid)

	shown, err := svc.GetSettings(ctx, command.GetSettings{})
	require.NoError(t, err)
	assert.Equal(t, "***", shown.AppSecret)

	shown.TableID = "tblOther"
	_, err = svc.SaveSettings(ctx, command.SaveSettings{Settings: shown})
	require.NoError(t, err)

	doc, err := svc.ExportData(ctx, command.ExportData{})
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", doc.Version)
	assert.Equal(t, "tblOther", doc.Config.TableID)

	status, err := svc.CheckConfiguration(ctx, command.CheckConfiguration{})
	require.NoError(t, err)
	assert.True(t, status.Configured)
}

func TestSaveSettingsAcceptsIncomplete(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	partial := domain.DefaultSettings()
	partial.AppID = "xyz_123"

	v, err := svc.SaveSettings(ctx, command.SaveSettings{Settings: partial})
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Contains(t, v.Errors, "appId")

	status, err := svc.CheckConfiguration(ctx, command.CheckConfiguration{})
	require.NoError(t, err)
	assert.False(t, status.Configured)
	assert.Contains(t, status.Errors, "baseId")
}

func TestSaveSettingsDropsCachedToken(t *testing.T) {
	svc, srv := newService(t)
	ctx := context.Background()

	_, err := svc.SaveSettings(ctx, command.SaveSettings{Settings: validSettings()})
	require.NoError(t, err)

	_, err = svc.CheckDuplicate(ctx, command.CheckDuplicate{URL: "https://a.com"})
	require.NoError(t, err)
	_, err = svc.CheckDuplicate(ctx, command.CheckDuplicate{URL: "https://a.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Calls(feishutest.CallTokenInternal))

	_, err = svc.SaveSettings(ctx, command.SaveSettings{Settings: validSettings()})
	require.NoError(t, err)
	_, err = svc.CheckDuplicate(ctx, command.CheckDuplicate{URL: "https://a.com"})
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Calls(feishutest.CallTokenInternal))
}

func TestTestAPIConnectionUsesStoredSecret(t *testing.T) {
	svc, srv := newService(t)
	ctx := context.Background()
	srv.RequireSecret("s3cret")

	_, err := svc.SaveSettings(ctx, command.SaveSettings{Settings: validSettings()})
	require.NoError(t, err)

	shown, err := svc.GetSettings(ctx, command.GetSettings{})
	require.NoError(t, err)

	res, err := svc.TestAPIConnection(ctx, command.TestAPIConnection{Settings: &shown})
	require.NoError(t, err)
	assert.True(t, res.OK, res.Message)

	wrong := validSettings()
	wrong.AppSecret = "guess"
	res, err = svc.TestAPIConnection(ctx, command.TestAPIConnection{Settings: &wrong})
	require.NoError(t, err)
	assert.False(t, res.OK)

	res, err = svc.TestAPIConnection(ctx, command.TestAPIConnection{})
	require.NoError(t, err)
	assert.True(t, res.OK, "stored settings are tested when none are given")
}

func TestSuggestTagsMergesHistory(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.SubmitCapture(ctx, command.SubmitCapture{
		Capture: &domain.Capture{URL: "https://go.dev", Title: "Go", Tags: []string{"golang", "go"}},
	})
	require.NoError(t, err)

	got, err := svc.SuggestTags(ctx, command.SuggestTags{Filter: "go", Chosen: []string{"golang"}})
	require.NoError(t, err)
	assert.Equal(t, []domain.TagCandidate{{Tag: "go", Score: domain.ScoreTagExact}}, got)

	all, err := svc.SuggestTags(ctx, command.SuggestTags{})
	require.NoError(t, err)
	assert.Len(t, all, len(domain.DefaultTags)+2)
}

func TestHandleEnvelope(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cmd, err := command.Decode([]byte(`{"type":"SUBMIT_CAPTURE","payload":{"capture":{"url":"https://a.com","title":"A"}}}`))
	require.NoError(t, err)
	resp := svc.Handle(ctx, cmd)
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, domain.StatusLocal, resp.Data.(syncer.Result).Status)

	resp = svc.Handle(ctx, command.DeleteHistory{ID: "missing"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, domain.ErrHistoryNotFound.Error())

	resp = svc.Handle(ctx, command.ClearHistory{})
	assert.True(t, resp.Success)

	resp = svc.Handle(ctx, command.GetStats{})
	require.True(t, resp.Success)
	assert.Equal(t, 1, resp.Data.(domain.Stats).TotalBookmarks)
}

func TestImportThenResync(t *testing.T) {
	svc, srv := newService(t)
	ctx := context.Background()

	doc := store.ExportDocument{
		Version:    "1.0.0",
		ExportDate: now.Format(time.RFC3339),
		Config:     ptr(validSettings()),
		History: []domain.HistoryEntry{
			domain.NewHistoryEntry(domain.Capture{URL: "https://old.com", Title: "Old"}, domain.StatusFailed, now),
		},
	}
	require.NoError(t, svc.ImportData(ctx, command.ImportData{Document: doc}))

	report, err := svc.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)
	assert.Equal(t, 1, srv.Len())

	usage, err := svc.GetStorageUsage(ctx, command.GetStorageUsage{})
	require.NoError(t, err)
	assert.Greater(t, usage.Used, int64(0))
	require.NoError(t, svc.Ready(ctx))
}
