// Package ekaapi is the HTTPS gateway to the remote Eka healthcare API.
// It owns request construction, token attachment, response parsing and
// error classification; it never retries — callers surface failures to the
// LLM client instead of looping.
package ekaapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"ekamcp/internal/domain"
	"ekamcp/internal/infra/telemetry"
)

const (
	dataPathPrefix = "/eka-mcp/"

	// Response bodies are bounded so a misbehaving upstream cannot pin
	// the process; protocol pages are fetched separately with their own
	// larger bound.
	maxResponseBytes = 8 << 20
)

// HealthRecorder receives upstream reachability signals for /healthz.
type HealthRecorder interface {
	RecordUpstreamSuccess()
	RecordUpstreamFailure(err error)
}

// Options configures the API client.
type Options struct {
	Credentials domain.Credentials
	Settings    domain.UpstreamSettings
	Logger      *zap.Logger
	Metrics     domain.Metrics
	Health      HealthRecorder
}

// Client issues authenticated requests against the Eka API using a pooled
// HTTP/1.1 transport (the upstream does not negotiate h2).
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     *TokenSource
	logger     *zap.Logger
	metrics    domain.Metrics
	health     HealthRecorder
}

// NewClient builds a client from the credential triple and pool settings.
// It does not talk to the network; call Login to verify credentials.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.Credentials.Host), "/")
	if baseURL == "" {
		return nil, domain.E(domain.CodeInvalidArguments, "new eka client", "host is required", nil)
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, domain.E(domain.CodeInvalidArguments, "new eka client", fmt.Sprintf("invalid host %q", baseURL), err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}

	httpClient := &http.Client{
		Timeout: opts.Settings.RequestTimeout(),
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxConnsPerHost:     opts.Settings.MaxConnections,
			MaxIdleConnsPerHost: opts.Settings.MaxIdleConnections,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			ForceAttemptHTTP2:   false,
		},
	}

	client := &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		logger:     logger,
		metrics:    metrics,
		health:     opts.Health,
	}
	client.tokens = newTokenSource(tokenSourceOptions{
		httpClient:  httpClient,
		baseURL:     baseURL,
		credentials: opts.Credentials,
		leeway:      opts.Settings.TokenRefreshLeeway(),
		logger:      logger.Named("eka_auth"),
		metrics:     metrics,
	})
	return client, nil
}

// Login performs the initial credential exchange. A failure here means the
// triple is wrong and startup must abort.
func (c *Client) Login(ctx context.Context) error {
	err := c.tokens.Login(ctx)
	c.recordHealth(err)
	return err
}

// TokenStatus exposes token age for the health endpoint.
func (c *Client) TokenStatus() domain.TokenStatus {
	return c.tokens.Status()
}

// Close releases idle pooled connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// do issues one authenticated data-plane request and decodes the JSON
// response into out. endpoint is relative to the eka-mcp prefix.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body, out any) error {
	op := strings.ReplaceAll(endpoint, "/", " ")

	token, err := c.tokens.Token(ctx)
	if err != nil {
		c.recordHealth(err)
		return domain.Wrap(domain.CodeUpstreamUnauthorized, op, err)
	}

	target := c.baseURL + dataPathPrefix + strings.TrimLeft(endpoint, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return domain.E(domain.CodeInternal, op, "encode request body", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return domain.E(domain.CodeInternal, op, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.observeUpstream(domain.UpstreamMetric{
			Endpoint: endpoint,
			Method:   method,
			Outcome:  domain.UpstreamOutcomeTransport,
			Duration: duration,
		})
		classified := classifyTransportError(op, err)
		c.recordHealth(classified)
		return classified
	}
	defer func() { _ = resp.Body.Close() }()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.observeUpstream(domain.UpstreamMetric{
		Endpoint: endpoint,
		Method:   method,
		Outcome:  outcomeForStatus(resp.StatusCode),
		Duration: duration,
	})

	if classified := classifyStatus(op, resp.StatusCode, raw); classified != nil {
		c.recordHealth(classified)
		c.logger.Warn("upstream request failed",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.Duration("duration", duration),
		)
		return classified
	}
	if readErr != nil {
		return domain.E(domain.CodeUpstreamUnavailable, op, "read response body", readErr)
	}
	c.recordHealth(nil)

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.E(domain.CodeInternal, op, "decode response body", err)
	}
	return nil
}

func (c *Client) observeUpstream(metric domain.UpstreamMetric) {
	c.metrics.ObserveUpstreamRequest(metric)
}

func (c *Client) recordHealth(err error) {
	if c.health == nil {
		return
	}
	if err != nil {
		c.health.RecordUpstreamFailure(err)
		return
	}
	c.health.RecordUpstreamSuccess()
}

// classifyTransportError maps dial/TLS/timeout failures to a retryable
// unavailable error.
func classifyTransportError(op string, err error) *domain.Error {
	msg := "upstream request failed"
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = "upstream request timed out"
	case errors.As(err, &netErr) && netErr.Timeout():
		msg = "upstream request timed out"
	case errors.Is(err, context.Canceled):
		msg = "request canceled"
	}
	return domain.E(domain.CodeUpstreamUnavailable, op, msg, err)
}

// classifyStatus maps non-2xx responses to domain errors carrying the
// upstream message. Returns nil for success statuses.
func classifyStatus(op string, status int, body []byte) *domain.Error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		err := domain.E(domain.CodeUpstreamUnauthorized, op,
			"upstream rejected credentials; re-check client id and secret", nil)
		return err.WithMeta("upstream_message", upstreamMessage(body))
	case status == http.StatusNotFound:
		err := domain.E(domain.CodeNotFound, op, "upstream resource not found", nil)
		return err.WithMeta("upstream_message", upstreamMessage(body))
	case status >= 400 && status < 500:
		err := domain.E(domain.CodeInvalidArguments, op,
			fmt.Sprintf("upstream rejected request (%d)", status), nil)
		return err.WithMeta("upstream_message", upstreamMessage(body))
	default:
		err := domain.E(domain.CodeUpstreamUnavailable, op,
			fmt.Sprintf("upstream unavailable (%d)", status), nil)
		return err.WithMeta("upstream_status", fmt.Sprintf("%d", status))
	}
}

func outcomeForStatus(status int) domain.UpstreamOutcome {
	switch {
	case status >= 200 && status < 300:
		return domain.UpstreamOutcomeSuccess
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.UpstreamOutcomeUnauthorized
	case status >= 400 && status < 500:
		return domain.UpstreamOutcomeClientError
	default:
		return domain.UpstreamOutcomeServerError
	}
}

// upstreamMessage pulls a human-readable message out of an error body.
func upstreamMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		for _, candidate := range []string{envelope.Error, envelope.Message, envelope.Detail} {
			if candidate != "" {
				return candidate
			}
		}
	}
	const maxLen = 256
	if len(trimmed) > maxLen {
		// Cut on a rune boundary so a multi-byte character straddling
		// the limit cannot leave an invalid tail in error meta.
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
			cut--
		}
		return trimmed[:cut]
	}
	return trimmed
}
