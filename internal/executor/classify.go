package executor

import (
	"context"
	"errors"
	"strings"

	"ABWatch/internal/models"
)

// Deterministic network-layer failures unlikely to self-heal within
// the retry window. Matched against Chrome net error strings and the
// equivalent Go dialer messages.
var unreachablePatterns = []string{
	"net::ERR_NAME_NOT_RESOLVED",
	"net::ERR_NAME_RESOLUTION_FAILED",
	"net::ERR_CONNECTION_REFUSED",
	"net::ERR_ADDRESS_UNREACHABLE",
	"net::ERR_CERT_",
	"net::ERR_SSL_",
	"no such host",
	"connection refused",
	"host unreachable",
	"certificate",
}

// Transient failures worth another attempt.
var retryablePatterns = []string{
	"net::ERR_CONNECTION_RESET",
	"net::ERR_CONNECTION_CLOSED",
	"net::ERR_NETWORK_CHANGED",
	"net::ERR_EMPTY_RESPONSE",
	"connection reset",
	"target closed",
	"browser closed",
	"temporary failure in name resolution",
}

// Classify maps a navigation error to a terminal check status.
// Precedence: explicit timeout, then unreachable patterns, then
// generic error. Retryable reports whether another attempt is worth
// making; unreachable failures are deterministic and exit the retry
// loop early.
func Classify(err error) (status models.CheckStatus, retryable bool) {
	if err == nil {
		return models.CheckStatusSuccess, false
	}

	msg := err.Error()

	if errors.Is(err, context.DeadlineExceeded) ||
		containsAny(msg, "context deadline exceeded", "timeout", "timed out",
			"net::ERR_TIMED_OUT", "net::ERR_CONNECTION_TIMED_OUT") {
		return models.CheckStatusTimeout, true
	}

	for _, p := range unreachablePatterns {
		if strings.Contains(msg, p) {
			return models.CheckStatusUnreachable, false
		}
	}

	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return models.CheckStatusError, true
		}
	}

	return models.CheckStatusError, true
}

func containsAny(s string, patterns ...string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
