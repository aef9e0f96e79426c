package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/MrSnakeDoc/bitmark/internal/domain"
	"github.com/MrSnakeDoc/bitmark/internal/logger"
	"github.com/MrSnakeDoc/bitmark/internal/utils"
)

const (
	DefaultBaseURL        = "https://open.feishu.cn/open-apis"
	DefaultTimeout        = 10 * time.Second
	DefaultSafetyMargin   = 5 * time.Minute
	DefaultDirectTokenTTL = 2 * time.Hour

	maxBodyBytes = 4 << 20
)

// Config configures the open API client.
type Config struct {
	// BaseURL of the open API, without trailing slash.
	BaseURL string

	// Timeout bounds every single HTTP call.
	Timeout time.Duration

	// SafetyMargin is how long before expiry a cached token is refreshed.
	SafetyMargin time.Duration

	// DirectTokenTTL is the expiry assumed for a token supplied in settings.
	DirectTokenTTL time.Duration

	// HTTPClient defaults to a plain client; the per-call timeout is applied via context.
	HTTPClient *http.Client

	// Now is the clock, overridable in tests.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.SafetyMargin <= 0 {
		c.SafetyMargin = DefaultSafetyMargin
	}
	if c.DirectTokenTTL <= 0 {
		c.DirectTokenTTL = DefaultDirectTokenTTL
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Credentials authenticate against the open API. Either the app pair or a
// tenant access token must be set.
type Credentials struct {
	AppID             string
	AppSecret         string
	TenantAccessToken string
}

// Target is one remote table plus the credentials used to reach it.
type Target struct {
	Credentials
	BaseID  string
	TableID string
}

// TargetFromSettings extracts the remote target from user settings.
func TargetFromSettings(s domain.Settings) Target {
	return Target{
		Credentials: Credentials{
			AppID:             strings.TrimSpace(s.AppID),
			AppSecret:         strings.TrimSpace(s.AppSecret),
			TenantAccessToken: strings.TrimSpace(s.TenantAccessToken),
		},
		BaseID:  strings.TrimSpace(s.BaseID),
		TableID: strings.TrimSpace(s.TableID),
	}
}

// Client talks to the open API. It is safe for concurrent use.
type Client struct {
	api    *caller
	tokens *TokenProvider
	log    logger.Logger
}

// NewClient builds a client. The token cache is owned by the caller so its
// lifetime can be scoped to the process.
func NewClient(cfg Config, cache *TokenCache, log logger.Logger) *Client {
	cfg = cfg.withDefaults()
	api := &caller{
		baseURL: cfg.BaseURL,
		timeout: cfg.Timeout,
		http:    cfg.HTTPClient,
	}
	return &Client{
		api:    api,
		tokens: newTokenProvider(api, cache, cfg, log),
		log:    log,
	}
}

// Tokens exposes the token provider.
func (c *Client) Tokens() *TokenProvider { return c.tokens }

// Table scopes operations to one remote table.
func (c *Client) Table(t Target) *Table {
	return &Table{client: c, target: t}
}

// authorized performs an authenticated call and drops the cached token when
// the API reports it as expired or invalid.
func (c *Client) authorized(ctx context.Context, creds Credentials, op, method, path string, query url.Values, body, out any) error {
	tok, err := c.tokens.Token(ctx, creds)
	if err != nil {
		return err
	}

	env, err := c.api.do(ctx, op, method, path, query, body, tok)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && isTokenCode(apiErr.Code) {
			c.log.Warn("feishu token rejected, invalidating cache",
				logger.String("op", op),
				logger.Int("code", apiErr.Code),
			)
			c.tokens.Invalidate(creds)
		}
		return err
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return newProtocolError(op, http.StatusOK, env.Data, err)
	}
	return nil
}

// envelope is the common response wrapper. Token endpoints put their
// payload next to code/msg instead of under data, hence raw.
type envelope struct {
	Code *int            `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`

	raw []byte
}

type caller struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

func (c *caller) do(ctx context.Context, op, method, path string, query url.Values, body any, tok *oauth2.Token) (envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return envelope{}, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return envelope{}, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if tok != nil {
		tok.SetAuthHeader(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, &NetworkError{Op: op, Err: err}
	}
	defer utils.Close(resp.Body)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return envelope{}, &NetworkError{Op: op, Status: resp.StatusCode, Err: err}
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if !ok {
			return envelope{}, &NetworkError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
		}
		return envelope{}, newProtocolError(op, resp.StatusCode, raw, err)
	}
	if env.Code == nil {
		if !ok {
			return envelope{}, &NetworkError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
		}
		return envelope{}, newProtocolError(op, resp.StatusCode, raw, errors.New("missing code in response"))
	}
	if *env.Code != CodeOK {
		return envelope{}, &APIError{
			Op:     op,
			Code:   *env.Code,
			Msg:    Message(*env.Code, env.Msg),
			Status: resp.StatusCode,
		}
	}
	if !ok {
		return envelope{}, &NetworkError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	env.raw = raw
	return env, nil
}
