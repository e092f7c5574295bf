package domain

import "time"

// RequestTimeout returns the upstream request timeout, defaulting when unset.
func (u UpstreamSettings) RequestTimeout() time.Duration {
	seconds := u.RequestTimeoutSeconds
	if seconds <= 0 {
		seconds = DefaultRequestTimeoutSeconds
	}
	return time.Duration(seconds) * time.Second
}

// TokenRefreshLeeway returns how far before expiry the access token is
// refreshed, defaulting when unset.
func (u UpstreamSettings) TokenRefreshLeeway() time.Duration {
	seconds := u.TokenRefreshLeewaySeconds
	if seconds <= 0 {
		seconds = DefaultTokenRefreshLeewaySeconds
	}
	return time.Duration(seconds) * time.Second
}

// SessionTTL returns the workflow session expiry or zero when sessions
// live for the whole process.
func (w WorkflowSettings) SessionTTL() time.Duration {
	if w.SessionTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(w.SessionTTLSeconds) * time.Second
}

// TagCacheTTL returns the tag corpus expiry or zero for fetch-once.
func (w WorkflowSettings) TagCacheTTL() time.Duration {
	if w.TagCacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(w.TagCacheTTLSeconds) * time.Second
}
