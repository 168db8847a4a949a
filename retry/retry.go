package retry

import (
	"fmt"
	"log/slog"
	"time"
)

// Policy bounds how often a fallible network operation is re-attempted.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	// Backoff scales the delay linearly with the attempt number instead of
	// waiting a fixed duration between attempts.
	Backoff bool
}

// DefaultPolicy matches the behavior used for IMAP fetches: three attempts
// with a growing delay.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Delay:       2 * time.Second,
		Backoff:     true,
	}
}

// Error is returned after the attempt budget is exhausted. It carries the
// operation name and the last underlying error.
type Error struct {
	Op       string
	Attempts int
	Last     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Last)
}

func (e *Error) Unwrap() error {
	return e.Last
}

// Do runs fn until it succeeds or the policy's attempt budget is exhausted.
// fn must be safely re-invokable; a fetch by identifier qualifies. The
// returned error is a *Error once all attempts failed, so callers can decide
// to skip-and-count rather than abort.
func (p Policy) Do(logger *slog.Logger, op string, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		last = fn()
		if last == nil {
			return nil
		}

		if attempt == attempts {
			break
		}

		delay := p.Delay
		if p.Backoff {
			delay = time.Duration(attempt) * p.Delay
		}
		if logger != nil {
			logger.Debug("operation failed, retrying",
				"op", op, "attempt", attempt, "maxAttempts", attempts, "delay", delay, "err", last)
		}
		time.Sleep(delay)
	}

	return &Error{Op: op, Attempts: attempts, Last: last}
}
