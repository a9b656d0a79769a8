package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies upstream failures so callers can decide between
// retrying, surfacing, or treating the run as missing.
type Kind string

// Failure kinds.
const (
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindServer       Kind = "server"
	KindNetwork      Kind = "network"
	KindStream       Kind = "stream"
)

// Error is a classified upstream failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// NewError wraps err as a classified upstream failure.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the failure kind of err, or an empty Kind for
// unclassified errors.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}

	return ""
}

// Retryable reports whether the failure is transient. Only server and
// network failures qualify; auth and not-found failures never resolve
// on retry.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindServer, KindNetwork:
		return true
	default:
		return false
	}
}

// classifyStatus maps an upstream HTTP status to a failure kind.
func classifyStatus(status int) Kind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUnauthorized
	case status >= 500:
		return KindServer
	default:
		return KindServer
	}
}
