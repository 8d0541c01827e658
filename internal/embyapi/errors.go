// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package embyapi

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrCircuitOpen is returned while a server's breaker rejects calls.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrNotFound is returned when the server answers 404.
	ErrNotFound = errors.New("not found")

	// ErrUnknownServer is returned by Set for a key it does not hold.
	ErrUnknownServer = errors.New("unknown server")
)

// StatusError is a non-2xx answer from a server.
type StatusError struct {
	Server string
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s: %s %s returned status %d", e.Server, e.Method, e.Path, e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Retryable reports whether the status is transient.
func (e *StatusError) Retryable() bool {
	switch e.Status {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Unwrap maps 404 onto ErrNotFound.
func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// ChallengeKind classifies a failure that needs operator attention rather
// than a retry.
type ChallengeKind int

const (
	ChallengeAuth ChallengeKind = iota + 1
	ChallengeProxyAuth
	ChallengeTLS
)

func (k ChallengeKind) String() string {
	switch k {
	case ChallengeAuth:
		return "authentication"
	case ChallengeProxyAuth:
		return "proxy_authentication"
	case ChallengeTLS:
		return "tls"
	default:
		return "unknown"
	}
}

// ChallengeHandler is told about authentication, proxy and TLS failures.
// Implementations must be safe for concurrent use.
type ChallengeHandler interface {
	HandleChallenge(server string, kind ChallengeKind, err error)
}

// ChallengeFunc adapts a function to ChallengeHandler.
type ChallengeFunc func(server string, kind ChallengeKind, err error)

func (f ChallengeFunc) HandleChallenge(server string, kind ChallengeKind, err error) {
	f(server, kind, err)
}

// challengeOf returns the challenge kind for err, or 0.
func challengeOf(err error) ChallengeKind {
	var se *StatusError
	if errors.As(err, &se) {
		switch se.Status {
		case http.StatusUnauthorized:
			return ChallengeAuth
		case http.StatusProxyAuthRequired:
			return ChallengeProxyAuth
		}
		return 0
	}
	if isTLSError(err) {
		return ChallengeTLS
	}
	return 0
}

func isTLSError(err error) bool {
	var (
		certErr     *tls.CertificateVerificationError
		recordErr   tls.RecordHeaderError
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		invalidErr  x509.CertificateInvalidError
	)
	return errors.As(err, &certErr) ||
		errors.As(err, &recordErr) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &hostErr) ||
		errors.As(err, &invalidErr)
}

// transient reports whether err should be retried.
func transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return !isTLSError(err)
}
