package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures across providers and calculations.
type ErrorKind string

const (
	KindAuthentication     ErrorKind = "AUTHENTICATION"
	KindRateLimit          ErrorKind = "RATE_LIMIT"
	KindTimeout            ErrorKind = "TIMEOUT"
	KindNetwork            ErrorKind = "NETWORK"
	KindInvalidTicker      ErrorKind = "INVALID_TICKER"
	KindNoData             ErrorKind = "NO_DATA"
	KindMalformedResponse  ErrorKind = "MALFORMED_RESPONSE"
	KindInsufficientData   ErrorKind = "INSUFFICIENT_DATA"
	KindInvalidAssumptions ErrorKind = "INVALID_ASSUMPTIONS"
)

// Sentinel errors for errors.Is matching by kind.
var (
	ErrAuthentication     = &Error{Kind: KindAuthentication}
	ErrRateLimit          = &Error{Kind: KindRateLimit}
	ErrTimeout            = &Error{Kind: KindTimeout}
	ErrNetwork            = &Error{Kind: KindNetwork}
	ErrInvalidTicker      = &Error{Kind: KindInvalidTicker}
	ErrNoData             = &Error{Kind: KindNoData}
	ErrMalformedResponse  = &Error{Kind: KindMalformedResponse}
	ErrInsufficientData   = &Error{Kind: KindInsufficientData}
	ErrInvalidAssumptions = &Error{Kind: KindInvalidAssumptions}
)

// IsProviderKind reports whether the kind belongs to the provider taxonomy
// (recovered inside the adapter) rather than the calculation taxonomy.
func (k ErrorKind) IsProviderKind() bool {
	switch k {
	case KindAuthentication, KindRateLimit, KindTimeout, KindNetwork,
		KindInvalidTicker, KindNoData, KindMalformedResponse:
		return true
	}
	return false
}

// IsTransient reports whether a retry could plausibly succeed.
func (k ErrorKind) IsTransient() bool {
	return k == KindTimeout || k == KindNetwork
}

// Error is a classified failure.
type Error struct {
	Kind     ErrorKind
	Provider string
	Op       string
	Err      error
}

// NewError builds a classified error. err may be nil.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error with a formatted cause.
func Errorf(kind ErrorKind, op string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// WithProvider returns a copy tagged with the provider id.
func (e *Error) WithProvider(id string) *Error {
	cp := *e
	cp.Provider = id
	return &cp
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.Op != "" {
		msg += " (" + e.Op + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the kind from err, or "" when err is not classified.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
