package feishu

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/MrSnakeDoc/bitmark/internal/logger"
)

const (
	tokenPathInternal = "/auth/v3/tenant_access_token/internal"
	tokenPathGeneric  = "/auth/v3/tenant_access_token/"
)

// TokenCache holds exchanged tenant tokens keyed by app id. It lives as long
// as its owner and is never shared through package state.
type TokenCache struct {
	mu     sync.Mutex
	tokens map[string]*oauth2.Token
}

func NewTokenCache() *TokenCache {
	return &TokenCache{tokens: make(map[string]*oauth2.Token)}
}

func (c *TokenCache) get(key string) (*oauth2.Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok, ok := c.tokens[key]
	return tok, ok
}

func (c *TokenCache) put(key string, tok *oauth2.Token) {
	c.mu.Lock()
	c.tokens[key] = tok
	c.mu.Unlock()
}

func (c *TokenCache) drop(key string) {
	c.mu.Lock()
	delete(c.tokens, key)
	c.mu.Unlock()
}

// Len returns the number of cached tokens.
func (c *TokenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tokens)
}

// TokenProvider obtains bearer tokens for the open API.
type TokenProvider struct {
	api       *caller
	cache     *TokenCache
	margin    time.Duration
	directTTL time.Duration
	now       func() time.Time
	log       logger.Logger

	// exchange serializes refreshes so concurrent callers share one round trip.
	exchange sync.Mutex
}

func newTokenProvider(api *caller, cache *TokenCache, cfg Config, log logger.Logger) *TokenProvider {
	if cache == nil {
		cache = NewTokenCache()
	}
	return &TokenProvider{
		api:       api,
		cache:     cache,
		margin:    cfg.SafetyMargin,
		directTTL: cfg.DirectTokenTTL,
		now:       cfg.Now,
		log:       log,
	}
}

type tokenRequest struct {
	AppID     string `json:"app_id"`
	AppSecret string `json:"app_secret"`
}

type tokenResponse struct {
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int64  `json:"expire"`
}

// Token returns a bearer token for the credentials. A directly supplied
// token is returned as is; otherwise the cached exchange result is reused
// until it gets within the safety margin of its expiry.
func (p *TokenProvider) Token(ctx context.Context, creds Credentials) (*oauth2.Token, error) {
	if creds.TenantAccessToken != "" {
		return &oauth2.Token{
			AccessToken: creds.TenantAccessToken,
			TokenType:   "Bearer",
			Expiry:      p.now().Add(p.directTTL),
		}, nil
	}
	if creds.AppID == "" || creds.AppSecret == "" {
		return nil, &AuthError{Msg: "app id and secret are required"}
	}

	if tok, ok := p.cached(creds.AppID); ok {
		return tok, nil
	}

	p.exchange.Lock()
	defer p.exchange.Unlock()

	// Another caller may have refreshed while we waited.
	if tok, ok := p.cached(creds.AppID); ok {
		return tok, nil
	}

	tok, err := p.fetch(ctx, creds)
	if err != nil {
		return nil, err
	}
	p.cache.put(creds.AppID, tok)

	p.log.Debug("feishu token refreshed",
		logger.Redacted("app_id", creds.AppID),
		logger.Time("expiry", tok.Expiry),
	)
	return tok, nil
}

// Invalidate drops the cached token for the credentials.
func (p *TokenProvider) Invalidate(creds Credentials) {
	if creds.AppID != "" {
		p.cache.drop(creds.AppID)
	}
}

func (p *TokenProvider) cached(key string) (*oauth2.Token, bool) {
	tok, ok := p.cache.get(key)
	if !ok || tok == nil || tok.AccessToken == "" {
		return nil, false
	}
	if !p.now().Before(tok.Expiry.Add(-p.margin)) {
		return nil, false
	}
	return tok, true
}

// fetch tries the internal endpoint first and falls back to the generic one
// only when the internal endpoint answered with a non-zero code.
func (p *TokenProvider) fetch(ctx context.Context, creds Credentials) (*oauth2.Token, error) {
	body := tokenRequest{AppID: creds.AppID, AppSecret: creds.AppSecret}

	env, err := p.api.do(ctx, "token exchange", http.MethodPost, tokenPathInternal, nil, body, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		p.log.Warn("internal token endpoint rejected credentials, trying generic endpoint",
			logger.Int("code", apiErr.Code),
			logger.String("msg", apiErr.Msg),
		)
		env, err = p.api.do(ctx, "token exchange", http.MethodPost, tokenPathGeneric, nil, body, nil)
	}
	if err != nil {
		if errors.As(err, &apiErr) {
			return nil, &AuthError{Code: apiErr.Code, Msg: apiErr.Msg}
		}
		return nil, err
	}

	var tr tokenResponse
	if err := json.Unmarshal(env.raw, &tr); err != nil {
		return nil, newProtocolError("token exchange", http.StatusOK, env.raw, err)
	}
	if tr.TenantAccessToken == "" {
		return nil, newProtocolError("token exchange", http.StatusOK, env.raw, errors.New("empty tenant_access_token"))
	}

	return &oauth2.Token{
		AccessToken: tr.TenantAccessToken,
		TokenType:   "Bearer",
		Expiry:      p.now().Add(time.Duration(tr.Expire) * time.Second),
	}, nil
}
