package provider

import "errors"

// ErrTransient marks a provider error as retryable (connection failure, 5xx,
// rate-limit). Providers wrap their own errors with it via fmt.Errorf("...:
// %w", ErrTransient); anything else is treated as a definitive failure.
var ErrTransient = errors.New("transient provider error")

// IsTransient reports whether err should be retried against the same
// provider rather than advancing to the next candidate.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// ErrNoCandidate is returned when no provider satisfies the privacy ceiling
// and availability/health requirements.
var ErrNoCandidate = errors.New("no available provider satisfies the request")
