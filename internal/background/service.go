// Package background implements the long-lived service the extension talks
// to. Every command is handled here, on top of the sync coordinator and the
// local store.
package background

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/bitmark/internal/command"
	"github.com/MrSnakeDoc/bitmark/internal/domain"
	"github.com/MrSnakeDoc/bitmark/internal/feishu"
	"github.com/MrSnakeDoc/bitmark/internal/logger"
	"github.com/MrSnakeDoc/bitmark/internal/store"
	"github.com/MrSnakeDoc/bitmark/internal/syncer"
)

// Options tunes the service.
type Options struct {
	// Version is stamped on exports.
	Version string

	// Now is the clock, overridable in tests.
	Now func() time.Time
}

// Service handles every command.Command.
type Service struct {
	coord   *syncer.Coordinator
	store   *store.Manager
	tokens  *feishu.TokenProvider
	version string
	now     func() time.Time
	log     logger.Logger
}

var _ command.Handler = (*Service)(nil)

// New wires a service.
func New(coord *syncer.Coordinator, st *store.Manager, tokens *feishu.TokenProvider, opts Options, log logger.Logger) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	return &Service{
		coord:   coord,
		store:   st,
		tokens:  tokens,
		version: opts.Version,
		now:     opts.Now,
		log:     log,
	}
}

// Handle dispatches one command.
func (s *Service) Handle(ctx context.Context, c command.Command) command.Response {
	resp := command.Dispatch(ctx, s, c)
	if !resp.Success {
		s.log.Warn("command failed",
			logger.String("type", string(c.Type())),
			logger.String("error", resp.Error),
		)
	}
	return resp
}

// Init writes default settings, stats and preferences on first run.
func (s *Service) Init(ctx context.Context) error {
	created, err := s.store.EnsureSettings(ctx, domain.DefaultSettings())
	if err != nil {
		return fmt.Errorf("failed to initialize settings: %w", err)
	}
	if created {
		s.log.Info("default settings written")
	}
	return nil
}

// Settings returns the stored settings, secrets included.
func (s *Service) Settings(ctx context.Context) (domain.Settings, error) {
	return s.store.Settings(ctx)
}

// Seed stores settings from an external source (e.g. a settings file)
// over the current ones. Redacted secrets keep their current value.
func (s *Service) Seed(ctx context.Context, settings domain.Settings) error {
	_, err := s.SaveSettings(ctx, command.SaveSettings{Settings: settings})
	return err
}

func (s *Service) SubmitCapture(ctx context.Context, c command.SubmitCapture) (syncer.Result, error) {
	var capture domain.Capture
	switch {
	case c.Capture != nil:
		capture = *c.Capture
	case c.Page != nil:
		capture = domain.NewCapture(*c.Page, c.Edits, s.now())
	default:
		return syncer.Result{}, fmt.Errorf("%w: capture or page is required", domain.ErrInvalidCapture)
	}

	return s.coord.Submit(ctx, syncer.Submission{
		Capture:        capture,
		Mode:           c.Mode,
		TargetRecordID: c.TargetRecordID,
	})
}

func (s *Service) CheckDuplicate(ctx context.Context, c command.CheckDuplicate) (syncer.Duplicate, error) {
	return s.coord.CheckDuplicate(ctx, c.URL)
}

func (s *Service) CheckConfiguration(ctx context.Context, _ command.CheckConfiguration) (command.ConfigurationStatus, error) {
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return command.ConfigurationStatus{}, err
	}
	v := domain.ValidateSettings(settings)
	return command.ConfigurationStatus{Configured: v.Valid, Validation: v}, nil
}

// TestAPIConnection tests candidate settings before they are saved. Secrets
// the UI only knows in redacted form are taken from the stored settings.
func (s *Service) TestAPIConnection(ctx context.Context, c command.TestAPIConnection) (syncer.ConnectionResult, error) {
	current, err := s.store.Settings(ctx)
	if err != nil {
		return syncer.ConnectionResult{}, err
	}

	candidate := current
	if c.Settings != nil {
		candidate = c.Settings.MergeSecrets(current)
	}
	return s.coord.TestConnection(ctx, candidate), nil
}

func (s *Service) ListFields(ctx context.Context, _ command.ListFields) ([]feishu.Field, error) {
	return s.coord.Fields(ctx)
}

// GetSettings returns the settings with secrets redacted.
func (s *Service) GetSettings(ctx context.Context, _ command.GetSettings) (domain.Settings, error) {
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	return settings.Redacted(), nil
}

// SaveSettings stores the settings even when they are incomplete; captures
// then stay local until the validation passes. Cached tokens for both the
// old and the new app id are dropped.
func (s *Service) SaveSettings(ctx context.Context, c command.SaveSettings) (domain.Validation, error) {
	var previous domain.Settings
	saved, err := s.store.UpdateSettings(ctx, func(current *domain.Settings) error {
		previous = *current
		*current = c.Settings.MergeSecrets(*current)
		return nil
	})
	if err != nil {
		return domain.Validation{}, err
	}

	s.tokens.Invalidate(feishu.TargetFromSettings(previous).Credentials)
	s.tokens.Invalidate(feishu.TargetFromSettings(saved).Credentials)

	v := domain.ValidateSettings(saved)
	s.log.Info("settings saved", logger.Bool("complete", v.Valid), logger.Redacted("app_id", saved.AppID))
	return v, nil
}

func (s *Service) ListHistory(ctx context.Context, c command.ListHistory) ([]domain.HistoryEntry, error) {
	return s.store.History(ctx, c.Limit)
}

func (s *Service) DeleteHistory(ctx context.Context, c command.DeleteHistory) error {
	return s.store.DeleteHistory(ctx, c.ID)
}

func (s *Service) ClearHistory(ctx context.Context, _ command.ClearHistory) error {
	return s.store.ClearHistory(ctx)
}

func (s *Service) ExportData(ctx context.Context, _ command.ExportData) (store.ExportDocument, error) {
	return s.store.Export(ctx, s.version)
}

func (s *Service) ImportData(ctx context.Context, c command.ImportData) error {
	current, err := s.store.Settings(ctx)
	if err != nil {
		return err
	}
	if err := s.store.Import(ctx, c.Document); err != nil {
		return err
	}
	s.tokens.Invalidate(feishu.TargetFromSettings(current).Credentials)
	s.log.Info("data imported", logger.Int("history", len(c.Document.History)))
	return nil
}

func (s *Service) GetStats(ctx context.Context, _ command.GetStats) (domain.Stats, error) {
	return s.store.Stats(ctx)
}

func (s *Service) GetStorageUsage(ctx context.Context, _ command.GetStorageUsage) (store.Usage, error) {
	return s.store.Usage(ctx)
}

// SuggestTags ranks the configured default tags together with every tag
// found in history.
func (s *Service) SuggestTags(ctx context.Context, c command.SuggestTags) ([]domain.TagCandidate, error) {
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return nil, err
	}
	history, err := s.store.History(ctx, 0)
	if err != nil {
		return nil, err
	}

	tags := append([]string{}, settings.DefaultTags...)
	for _, e := range history {
		tags = append(tags, e.Tags...)
	}
	return domain.SuggestTags(c.Filter, tags, c.Chosen), nil
}

// Resync replays pending history entries.
func (s *Service) Resync(ctx context.Context) (syncer.ResyncReport, error) {
	return s.coord.ResyncPending(ctx)
}

// Ready reports whether the local store answers.
func (s *Service) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}
