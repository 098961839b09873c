package fault

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
)

// Classify decides how an arbitrary failure should be treated by the retry
// and offline-queue layers. Already-classified errors keep their class.
//
// The decision is deliberately conservative: only failures that look like
// connectivity loss are classified transient; everything unrecognized is
// permanent so the caller sees it immediately instead of burning retries.
func Classify(err error) Class {
	if err == nil {
		return ClassPermanent
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}

	// A caller-initiated abort must not be retried or queued.
	if errors.Is(err, context.Canceled) {
		return ClassPermanent
	}

	// An attempt that ran out of time may succeed on retry.
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTransient
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ClassTransient
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return ClassTransient
	}

	if errors.Is(err, os.ErrDeadlineExceeded) {
		return ClassTransient
	}

	// Collaborator SDKs frequently wrap connectivity failures in plain
	// errors; match the usual phrasings as a last resort.
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return ClassTransient
		}
	}

	return ClassPermanent
}

var transientMarkers = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"network is unreachable",
	"i/o timeout",
	"timeout awaiting response",
	"service unavailable",
	"bad gateway",
	"gateway timeout",
	"too many requests",
	"temporarily unavailable",
}

// Retryable reports whether the error should be retried with backoff.
func Retryable(err error) bool {
	return Classify(err) == ClassTransient
}
