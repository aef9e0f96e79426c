package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/MrSnakeDoc/bitmark/internal/domain"
	"github.com/MrSnakeDoc/bitmark/internal/feishu"
	"github.com/MrSnakeDoc/bitmark/internal/logger"
	"github.com/MrSnakeDoc/bitmark/internal/retry"
)

// Store is the part of the local store the coordinator needs.
type Store interface {
	Settings(ctx context.Context) (domain.Settings, error)
	AddToHistory(ctx context.Context, entry domain.HistoryEntry) (domain.HistoryEntry, error)
	PendingHistory(ctx context.Context) ([]domain.HistoryEntry, error)
	FindHistoryByURL(ctx context.Context, url string) (domain.HistoryEntry, bool, error)
	RecordAttempt(ctx context.Context, success bool) (domain.Stats, error)
	GetCache(ctx context.Context, key string, dst any) (bool, error)
	SetCache(ctx context.Context, key string, data any, ttl time.Duration) error
}

// Config tunes the coordinator.
type Config struct {
	// RetryBase is the first backoff wait between write attempts.
	RetryBase time.Duration

	// RetryMax caps a single backoff wait.
	RetryMax time.Duration

	// RemoteTimeout bounds the whole remote phase of one submission.
	RemoteTimeout time.Duration

	// FieldsCacheTTL is how long the column list is cached.
	FieldsCacheTTL time.Duration

	// Now is the clock, overridable in tests.
	Now func() time.Time
}

const (
	DefaultRetryBase      = time.Second
	DefaultRetryMax       = 8 * time.Second
	DefaultRemoteTimeout  = time.Minute
	DefaultFieldsCacheTTL = time.Hour
)

func (c Config) withDefaults() Config {
	if c.RetryBase <= 0 {
		c.RetryBase = DefaultRetryBase
	}
	if c.RetryMax <= 0 {
		c.RetryMax = DefaultRetryMax
	}
	if c.RemoteTimeout <= 0 {
		c.RemoteTimeout = DefaultRemoteTimeout
	}
	if c.FieldsCacheTTL <= 0 {
		c.FieldsCacheTTL = DefaultFieldsCacheTTL
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Coordinator runs the capture workflow: validate, look for a duplicate,
// write remotely with retries, and always record the outcome locally.
// It is the only component that turns remote errors into a local fallback.
type Coordinator struct {
	store  Store
	client *feishu.Client
	cfg    Config
	log    logger.Logger

	// urlLocks serializes submissions that hash to the same URL.
	urlLocks [urlLockStripes]sync.Mutex
}

const urlLockStripes = 64

func (c *Coordinator) lockURL(url string) func() {
	mu := &c.urlLocks[xxhash.Sum64String(strings.TrimSpace(url))%urlLockStripes]
	mu.Lock()
	return mu.Unlock
}

// NewCoordinator wires a coordinator.
func NewCoordinator(store Store, client *feishu.Client, cfg Config, log logger.Logger) *Coordinator {
	return &Coordinator{
		store:  store,
		client: client,
		cfg:    cfg.withDefaults(),
		log:    log,
	}
}

// Submit runs one capture through the workflow. Remote failures never
// surface as errors: they are reported on the Result and the capture is
// kept in local history. An error is returned only for an invalid
// submission or when local persistence fails.
func (c *Coordinator) Submit(ctx context.Context, sub Submission) (Result, error) {
	defer c.lockURL(sub.Capture.URL)()
	return c.submit(ctx, sub, true)
}

func (c *Coordinator) submit(ctx context.Context, sub Submission, countStats bool) (Result, error) {
	res := Result{Trace: []State{StateIdle}}

	res.enter(StateValidating)
	capture := sub.Capture.Normalized(c.cfg.Now())
	if err := capture.Validate(); err != nil {
		return res, err
	}
	mode, err := ParseMode(string(sub.Mode))
	if err != nil {
		return res, err
	}

	settings, err := c.store.Settings(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to load settings: %w", err)
	}

	log := c.log.With(logger.String("url", capture.URL), logger.String("mode", string(mode)))

	if !settings.IsComplete() {
		res.Status = domain.StatusLocal
		res.Message = "saved locally, configure Feishu to enable sync"
		res.enter(StateFallbackLocal)
		log.Info("configuration incomplete, capture kept locally")
		return c.finish(ctx, capture, res, countStats)
	}

	c.writeRemote(ctx, log, settings, capture, mode, sub.TargetRecordID, &res)
	return c.finish(ctx, capture, res, countStats)
}

// writeRemote covers CHECKING_DUPLICATE and WRITING_REMOTE and fills res.
func (c *Coordinator) writeRemote(ctx context.Context, log logger.Logger, settings domain.Settings, capture domain.Capture, mode Mode, target string, res *Result) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RemoteTimeout)
	defer cancel()

	table := c.client.Table(feishu.TargetFromSettings(settings))

	res.enter(StateCheckingDuplicate)
	dup, err := c.lookup(ctx, table, settings.FieldMapping, capture.URL)
	if err != nil {
		log.Warn("duplicate check failed, writing anyway", logger.Error(err))
	}
	if dup.Duplicate {
		res.Duplicate = true
		res.DuplicateRecordID = dup.RecordID
	}
	if target == "" && mode == ModeUpsert {
		target = dup.RecordID
	}

	res.enter(StateWritingRemote)
	fields := BuildFields(capture, settings.FieldMapping)

	policy := retry.Policy{
		Base:     c.cfg.RetryBase,
		Max:      c.cfg.RetryMax,
		Attempts: settings.Attempts(),
		OnRetry: func(attempt int, err error) {
			log.Warn("remote write failed, retrying",
				logger.Int("attempt", attempt),
				logger.Int("max_attempts", settings.Attempts()),
				logger.Error(err),
			)
		},
	}

	var record feishu.Record
	write := func(ctx context.Context, _ int) error {
		var err error
		if target != "" {
			record, err = table.Update(ctx, target, fields)
		} else {
			record, err = table.Create(ctx, fields)
		}
		return err
	}
	attempts, err := retry.Do(ctx, policy, feishu.IsRetryable, write)

	// A remembered record may have been deleted remotely or belong to a
	// previous table. Upserts then fall back to the lookup result or a create.
	if err != nil && target != "" && mode == ModeUpsert && feishu.IsRecordNotFound(err) {
		stale := target
		target = ""
		if dup.RecordID != stale {
			target = dup.RecordID
		}
		res.RecordGone = true
		log.Warn("remote record not found, writing again",
			logger.String("record_id", stale),
			logger.String("fallback_record_id", target),
		)
		var more int
		more, err = retry.Do(ctx, policy, feishu.IsRetryable, write)
		attempts += more
	}
	res.Attempts = attempts

	if err != nil {
		res.Status = domain.StatusFailed
		res.Message = "saved locally, Feishu sync failed: " + describe(err)
		res.Err = err
		res.RecordID = target
		if feishu.IsRecordNotFound(err) {
			res.RecordID = ""
			res.RecordGone = true
		}
		res.enter(StateFallbackLocal)
		log.Error("remote write failed, capture kept locally",
			logger.Int("attempts", attempts),
			logger.Error(err),
		)
		return
	}

	res.Status = domain.StatusSynced
	res.RecordID = record.RecordID
	if res.RecordID == "" {
		res.RecordID = target
	}
	if target != "" {
		res.Message = "updated existing record in Feishu"
	} else {
		res.Message = "saved to Feishu"
	}
	res.enter(StateSucceeded)
	log.Info("capture synced",
		logger.String("record_id", res.RecordID),
		logger.Bool("updated", target != ""),
		logger.Int("attempts", attempts),
	)
}

// finish persists the history entry and stats, then marks DONE.
func (c *Coordinator) finish(ctx context.Context, capture domain.Capture, res Result, countStats bool) (Result, error) {
	entry := domain.NewHistoryEntry(capture, res.Status, c.cfg.Now())
	entry.RecordID = res.RecordID
	if res.RecordGone && res.RecordID == "" {
		entry = entry.WithoutRecord()
	}
	if res.Err != nil {
		entry.Error = describe(res.Err)
	}

	stored, err := c.store.AddToHistory(ctx, entry)
	if err != nil {
		return res, fmt.Errorf("failed to persist capture locally: %w", err)
	}
	res.HistoryID = stored.ID

	if countStats {
		if _, err := c.store.RecordAttempt(ctx, res.Status != domain.StatusFailed); err != nil {
			c.log.Warn("failed to update stats", logger.Error(err))
		}
	}

	res.enter(StateDone)
	return res, nil
}

// lookup searches the url column. It is never retried.
func (c *Coordinator) lookup(ctx context.Context, table *feishu.Table, mapping domain.FieldMapping, url string) (Duplicate, error) {
	records, err := table.Search(ctx, mapping.Column(domain.FieldURL), url, feishu.OperatorIs)
	if err != nil {
		return Duplicate{}, err
	}
	if len(records) == 0 {
		return Duplicate{}, nil
	}
	return Duplicate{Duplicate: true, RecordID: records[0].RecordID, Matches: len(records)}, nil
}

// CheckDuplicate looks the URL up in the remote table.
func (c *Coordinator) CheckDuplicate(ctx context.Context, url string) (Duplicate, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return Duplicate{}, fmt.Errorf("%w: url is required", domain.ErrInvalidCapture)
	}

	settings, err := c.store.Settings(ctx)
	if err != nil {
		return Duplicate{}, fmt.Errorf("failed to load settings: %w", err)
	}
	if !settings.IsComplete() {
		return Duplicate{}, domain.ErrConfigIncomplete
	}

	table := c.client.Table(feishu.TargetFromSettings(settings))
	return c.lookup(ctx, table, settings.FieldMapping, url)
}

// TestConnection validates settings and reaches the table with them. The
// cached token for the app id is dropped first so edited secrets are
// actually exercised.
func (c *Coordinator) TestConnection(ctx context.Context, settings domain.Settings) ConnectionResult {
	v := domain.ValidateSettings(settings)
	if !v.Valid {
		return ConnectionResult{
			OK:      false,
			Message: "configuration incomplete: " + joinErrors(v.Errors),
			Errors:  v.Errors,
		}
	}

	target := feishu.TargetFromSettings(settings)
	c.client.Tokens().Invalidate(target.Credentials)

	info, err := c.client.Table(target).GetTableInfo(ctx)
	if err != nil {
		c.log.Warn("connection test failed", logger.Redacted("app_id", target.AppID), logger.Error(err))
		return ConnectionResult{OK: false, Message: describe(err)}
	}

	msg := "connected"
	if info.Name != "" {
		msg = fmt.Sprintf("connected to table %q", info.Name)
	}
	return ConnectionResult{OK: true, Message: msg, TableName: info.Name}
}

// Fields returns the column definitions, cached per table.
func (c *Coordinator) Fields(ctx context.Context) ([]feishu.Field, error) {
	settings, err := c.store.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if !settings.IsComplete() {
		return nil, domain.ErrConfigIncomplete
	}

	key := "fields_" + strings.TrimSpace(settings.TableID)
	var fields []feishu.Field
	if ok, err := c.store.GetCache(ctx, key, &fields); err == nil && ok {
		return fields, nil
	} else if err != nil {
		c.log.Warn("fields cache unreadable", logger.Error(err))
	}

	fields, err = c.client.Table(feishu.TargetFromSettings(settings)).ListFields(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.store.SetCache(ctx, key, fields, c.cfg.FieldsCacheTTL); err != nil {
		c.log.Warn("failed to cache fields", logger.Error(err))
	}
	return fields, nil
}

// replay resubmits a history entry that never reached the remote table.
// Stats are not counted again. Caller holds the URL lock.
func (c *Coordinator) replay(ctx context.Context, entry domain.HistoryEntry) (Result, error) {
	return c.submit(ctx, Submission{
		Capture:        entry.Capture,
		Mode:           ModeUpsert,
		TargetRecordID: entry.RecordID,
	}, false)
}

// replayIfCurrent replays entry unless the stored entry for its URL has
// moved on since the pending list was read. The URL lock is held across the
// check and the write.
func (c *Coordinator) replayIfCurrent(ctx context.Context, entry domain.HistoryEntry) (Result, bool, error) {
	defer c.lockURL(entry.URL)()

	current, found, err := c.store.FindHistoryByURL(ctx, entry.URL)
	if err != nil {
		return Result{}, false, err
	}
	if !found || current.ID != entry.ID || !current.SavedAt.Equal(entry.SavedAt) || !current.SyncStatus.NeedsSync() {
		return Result{}, false, nil
	}

	res, err := c.replay(ctx, current)
	return res, true, err
}

// ResyncPending replays every local or failed history entry, oldest first.
// Nothing is attempted while the settings are incomplete. Entries changed
// by a newer capture in the meantime are skipped.
func (c *Coordinator) ResyncPending(ctx context.Context) (ResyncReport, error) {
	var report ResyncReport

	settings, err := c.store.Settings(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to load settings: %w", err)
	}
	pending, err := c.store.PendingHistory(ctx)
	if err != nil {
		return report, err
	}
	report.Pending = len(pending)
	if !settings.IsComplete() {
		report.Skipped = len(pending)
		return report, nil
	}

	for _, entry := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, replayed, err := c.replayIfCurrent(ctx, entry)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidCapture) {
				report.Skipped++
				continue
			}
			return report, err
		}
		if !replayed {
			c.log.Debug("history entry changed since listing, skipping", logger.String("url", entry.URL))
			report.Skipped++
			continue
		}
		if res.Status == domain.StatusSynced {
			report.Synced++
		} else {
			report.Failed++
		}
	}
	return report, nil
}

// describe turns a remote error into a user-facing sentence.
func describe(err error) string {
	var (
		authErr  *feishu.AuthError
		apiErr   *feishu.APIError
		netErr   *feishu.NetworkError
		protoErr *feishu.ProtocolError
	)
	switch {
	case errors.As(err, &authErr):
		return "authentication failed, check credentials: " + authErr.Msg
	case errors.As(err, &apiErr):
		return fmt.Sprintf("%s (code %d)", apiErr.Msg, apiErr.Code)
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return "request to Feishu timed out"
		}
		return "network error reaching Feishu"
	case errors.As(err, &protoErr):
		return fmt.Sprintf("unexpected response from Feishu: %q", protoErr.Excerpt)
	case errors.Is(err, context.DeadlineExceeded):
		return "request to Feishu timed out"
	default:
		return err.Error()
	}
}

func joinErrors(errs map[string]string) string {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+errs[k])
	}
	return strings.Join(parts, "; ")
}
