package domain

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeInvalidArguments        ErrorCode = "INVALID_ARGUMENTS"
	CodeUnconfirmedWorkflowStep ErrorCode = "UNCONFIRMED_WORKFLOW_STEP"
	CodeUpstreamUnauthorized    ErrorCode = "UPSTREAM_UNAUTHORIZED"
	CodeUpstreamUnavailable     ErrorCode = "UPSTREAM_UNAVAILABLE"
	CodeNotFound                ErrorCode = "NOT_FOUND"
	CodeInternal                ErrorCode = "INTERNAL"
)

type Error struct {
	Code      ErrorCode
	Op        string
	Message   string
	Cause     error
	Retryable bool
	Meta      map[string]string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Op == "" {
		if msg == "" {
			return string(e.Code)
		}
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// WithMeta returns a copy of e carrying the given key/value pair.
func (e *Error) WithMeta(key, value string) *Error {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Meta = make(map[string]string, len(e.Meta)+1)
	for k, v := range e.Meta {
		clone.Meta[k] = v
	}
	clone.Meta[key] = value
	return &clone
}

func E(code ErrorCode, op, msg string, cause error) *Error {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Code:      code,
		Op:        op,
		Message:   msg,
		Cause:     cause,
		Retryable: code == CodeUpstreamUnavailable,
	}
}

func Wrap(code ErrorCode, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		if existing.Op != "" || op == "" {
			return existing
		}
		return &Error{
			Code:      existing.Code,
			Op:        op,
			Message:   existing.Message,
			Cause:     existing.Cause,
			Retryable: existing.Retryable,
			Meta:      existing.Meta,
		}
	}
	return E(code, op, "", err)
}

func CodeFrom(err error) (ErrorCode, bool) {
	if err == nil {
		return "", false
	}
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Code != "" {
		return domainErr.Code, true
	}
	return "", false
}

// IsRetryable reports whether the caller may usefully repeat the operation.
func IsRetryable(err error) bool {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Retryable
	}
	return false
}

// MetaFrom extracts structured context from a classified error, if any.
func MetaFrom(err error) map[string]string {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Meta
	}
	return nil
}
