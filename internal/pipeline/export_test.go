package pipeline

import "time"

// SetRetryPolicy shortens publish retries in tests.
func (l *Loader) SetRetryPolicy(maxAttempts int, initial, maxBackoff time.Duration) {
	l.maxAttempts = maxAttempts
	l.initialBackoff = initial
	l.maxBackoff = maxBackoff
}
