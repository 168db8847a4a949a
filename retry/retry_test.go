package retry

import (
	"errors"
	"testing"
	"time"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	p := Policy{MaxAttempts: 3, Delay: time.Millisecond}

	calls := 0
	err := p.Do(nil, "fetch", func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	p := Policy{MaxAttempts: 3, Delay: time.Millisecond}

	calls := 0
	err := p.Do(nil, "fetch", func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 2, Delay: time.Millisecond}

	underlying := errors.New("connection reset")
	calls := 0
	err := p.Do(nil, "fetch", func() error {
		calls++
		return underlying
	})

	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}

	var rerr *Error
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *retry.Error, got %T", err)
	}
	if rerr.Op != "fetch" {
		t.Errorf("expected op %q, got %q", "fetch", rerr.Op)
	}
	if rerr.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", rerr.Attempts)
	}
	if !errors.Is(err, underlying) {
		t.Errorf("expected error to unwrap to the underlying failure")
	}
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	p := Policy{MaxAttempts: 0}

	calls := 0
	err := p.Do(nil, "fetch", func() error {
		calls++
		return errors.New("boom")
	})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}

	var rerr *Error
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *retry.Error, got %T", err)
	}
	if rerr.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", rerr.Attempts)
	}
}
