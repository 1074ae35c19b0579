package worker

import (
	"errors"
	"testing"
)

func TestTurnLimiterCapacity(t *testing.T) {
	l := NewTurnLimiter(2)
	if err := l.Acquire(); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := l.Acquire(); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if err := l.Acquire(); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy at capacity, got %v", err)
	}
	if got := l.InFlight(); got != 2 {
		t.Fatalf("expected 2 in flight, got %d", got)
	}

	l.Release()
	if err := l.Acquire(); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestTurnLimiterReleaseWithoutAcquire(t *testing.T) {
	l := NewTurnLimiter(1)
	// Must not block or panic.
	l.Release()
	if err := l.Acquire(); err != nil {
		t.Fatalf("acquire: %v", err)
	}
}

func TestTurnLimiterDefaultCapacity(t *testing.T) {
	l := NewTurnLimiter(0)
	if err := l.Acquire(); err != nil {
		t.Fatalf("default capacity should allow acquisition: %v", err)
	}
}
