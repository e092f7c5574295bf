package ekaapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"ekamcp/internal/domain"
	"ekamcp/internal/infra/telemetry"
)

const (
	loginPath   = "/connect-auth/v1/account/login"
	refreshPath = "/connect-auth/v1/account/refresh"
)

// tokenSet is the credential material exchanged with the auth service.
// Never logged, never persisted.
type tokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type authResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type tokenSourceOptions struct {
	httpClient  *http.Client
	baseURL     string
	credentials domain.Credentials
	leeway      time.Duration
	logger      *zap.Logger
	metrics     domain.Metrics
	now         func() time.Time
}

// TokenSource exchanges the client id/secret for an access token and keeps
// it fresh. Refreshes happen lazily before a data request once the token
// is within the leeway window of expiry; a failed refresh falls back to a
// full login before giving up.
type TokenSource struct {
	mu          sync.Mutex
	httpClient  *http.Client
	baseURL     string
	credentials domain.Credentials
	leeway      time.Duration
	logger      *zap.Logger
	metrics     domain.Metrics
	now         func() time.Time

	token       tokenSet
	refreshedAt time.Time
}

func newTokenSource(opts tokenSourceOptions) *TokenSource {
	now := opts.now
	if now == nil {
		now = time.Now
	}
	logger := opts.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &TokenSource{
		httpClient:  opts.httpClient,
		baseURL:     opts.baseURL,
		credentials: opts.credentials,
		leeway:      opts.leeway,
		logger:      logger,
		metrics:     metrics,
		now:         now,
	}
}

// Login performs the full credential exchange: account login followed by an
// immediate refresh, which is the call that carries expires_in.
func (t *TokenSource) Login(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loginLocked(ctx)
}

// Token returns a currently valid access token, refreshing when within the
// leeway window of expiry.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token.AccessToken == "" {
		if err := t.loginLocked(ctx); err != nil {
			return "", err
		}
		return t.token.AccessToken, nil
	}

	if t.expiringLocked() {
		if err := t.refreshLocked(ctx); err != nil {
			t.logger.Warn("token refresh failed, retrying with full login", zap.Error(err))
			if err := t.loginLocked(ctx); err != nil {
				return "", err
			}
		}
	}
	return t.token.AccessToken, nil
}

// Status reports redacted token freshness for /healthz.
func (t *TokenSource) Status() domain.TokenStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return domain.TokenStatus{
		HasToken:    t.token.AccessToken != "",
		ExpiresAt:   t.token.ExpiresAt,
		RefreshedAt: t.refreshedAt,
	}
}

func (t *TokenSource) expiringLocked() bool {
	if t.token.ExpiresAt.IsZero() {
		return false
	}
	return !t.now().Before(t.token.ExpiresAt.Add(-t.leeway))
}

func (t *TokenSource) loginLocked(ctx context.Context) error {
	start := t.now()
	payload := map[string]string{
		"client_id":     t.credentials.ClientID,
		"client_secret": t.credentials.ClientSecret,
	}
	var resp authResponse
	if err := t.postAuth(ctx, loginPath, payload, &resp); err != nil {
		t.observeRefresh(domain.TokenRefreshOutcomeFailure, t.now().Sub(start))
		return domain.Wrap(domain.CodeUpstreamUnauthorized, "eka login", err)
	}
	t.adoptLocked(resp)

	// The login response carries tokens but not always a lifetime; the
	// refresh endpoint is authoritative for expires_in.
	if err := t.refreshLocked(ctx); err != nil {
		return err
	}
	t.logger.Info("authenticated with eka api",
		zap.Time("token_expires_at", t.token.ExpiresAt),
	)
	return nil
}

func (t *TokenSource) refreshLocked(ctx context.Context) error {
	start := t.now()
	payload := map[string]string{
		"access_token":  t.token.AccessToken,
		"refresh_token": t.token.RefreshToken,
	}
	var resp authResponse
	if err := t.postAuth(ctx, refreshPath, payload, &resp); err != nil {
		t.observeRefresh(domain.TokenRefreshOutcomeFailure, t.now().Sub(start))
		return domain.Wrap(domain.CodeUpstreamUnauthorized, "eka refresh token", err)
	}
	t.adoptLocked(resp)
	t.observeRefresh(domain.TokenRefreshOutcomeSuccess, t.now().Sub(start))
	return nil
}

func (t *TokenSource) adoptLocked(resp authResponse) {
	t.token = tokenSet{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}
	switch {
	case resp.ExpiresIn > 0:
		t.token.ExpiresAt = t.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	default:
		// Some auth responses omit expires_in; the JWT exp claim is the
		// fallback, read without signature verification.
		if exp, ok := jwtExpiry(resp.AccessToken); ok {
			t.token.ExpiresAt = exp
		}
	}
	t.refreshedAt = t.now()
}

func (t *TokenSource) postAuth(ctx context.Context, path string, payload map[string]string, out *authResponse) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.E(domain.CodeInternal, "eka auth", "encode payload", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return domain.E(domain.CodeInternal, "eka auth", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return classifyTransportError("eka auth", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.E(domain.CodeUpstreamUnavailable, "eka auth", "read response body", err)
	}
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 {
			return domain.E(domain.CodeUpstreamUnavailable, "eka auth",
				fmt.Sprintf("auth service unavailable (%d)", resp.StatusCode), nil)
		}
		authErr := domain.E(domain.CodeUpstreamUnauthorized, "eka auth",
			"invalid eka credentials", nil)
		return authErr.WithMeta("upstream_message", upstreamMessage(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.E(domain.CodeInternal, "eka auth", "decode response body", err)
	}
	if out.AccessToken == "" {
		return domain.E(domain.CodeUpstreamUnauthorized, "eka auth", "auth response missing access token", nil)
	}
	return nil
}

func (t *TokenSource) observeRefresh(outcome domain.TokenRefreshOutcome, duration time.Duration) {
	t.metrics.ObserveTokenRefresh(outcome, duration)
}

// jwtExpiry reads the exp claim from an unverified JWT payload.
func jwtExpiry(token string) (time.Time, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}, false
	}
	var claims struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Exp == 0 {
		return time.Time{}, false
	}
	return time.Unix(claims.Exp, 0), true
}
