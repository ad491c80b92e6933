package domain

import (
	"context"
	"errors"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrNoOptions      = errors.New("no options listed")
	ErrRateLimited    = errors.New("rate limited")
	ErrUpstream       = errors.New("upstream error")
	ErrCircuitOpen    = errors.New("circuit open")
	ErrTimeout        = errors.New("timeout")
	ErrInvalidDTE     = errors.New("invalid days to expiration")
	ErrBadQuote       = errors.New("bad quote data")
	ErrInvalidRequest = errors.New("invalid scan request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrLockHeld       = errors.New("lock already held")
	ErrStoreWrite     = errors.New("store write failed")
)

// FailureCategory groups unit failures for reporting. Callers see counts per
// category rather than one line per symbol.
type FailureCategory string

const (
	CategoryTransient   FailureCategory = "transient"
	CategoryPermanent   FailureCategory = "permanent"
	CategoryTimeout     FailureCategory = "timeout"
	CategoryStore       FailureCategory = "store"
	CategoryDataQuality FailureCategory = "data_quality"
	CategoryConfig      FailureCategory = "config"
	CategoryAuth        FailureCategory = "auth"
	CategoryUnknown     FailureCategory = "unknown"
)

// Classify maps an error returned anywhere in the engine to its category.
func Classify(err error) FailureCategory {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidRequest):
		return CategoryConfig
	case errors.Is(err, ErrUnauthorized):
		return CategoryAuth
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoOptions):
		return CategoryPermanent
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case errors.Is(err, ErrStoreWrite):
		return CategoryStore
	case errors.Is(err, ErrInvalidDTE), errors.Is(err, ErrBadQuote):
		return CategoryDataQuality
	case errors.Is(err, ErrRateLimited), errors.Is(err, ErrUpstream), errors.Is(err, ErrCircuitOpen):
		return CategoryTransient
	default:
		return CategoryUnknown
	}
}

// IsRetryable reports whether err is a transient upstream condition worth
// another attempt.
func IsRetryable(err error) bool {
	return Classify(err) == CategoryTransient
}

// FallsThrough reports whether err condemns only the provider that returned
// it, so the next provider in the chain should be asked. Credential
// rejections fall through but are not worth retrying on the same provider.
func FallsThrough(err error) bool {
	switch Classify(err) {
	case CategoryTransient, CategoryAuth:
		return true
	}
	return false
}
