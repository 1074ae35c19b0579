package worker

import "errors"

// ErrBusy signals the server is at its concurrent-turn capacity.
var ErrBusy = errors.New("too many concurrent turns")

// TurnLimiter caps the number of turns streaming at once across all
// sessions. Acquisition never blocks: a full server answers 429 immediately
// instead of queueing SSE connections.
type TurnLimiter struct {
	slots chan struct{}
}

func NewTurnLimiter(max int) *TurnLimiter {
	if max <= 0 {
		max = 64
	}
	return &TurnLimiter{slots: make(chan struct{}, max)}
}

// Acquire claims a turn slot or fails with ErrBusy.
func (l *TurnLimiter) Acquire() error {
	select {
	case l.slots <- struct{}{}:
		return nil
	default:
		return ErrBusy
	}
}

// Release frees a previously acquired slot.
func (l *TurnLimiter) Release() {
	select {
	case <-l.slots:
	default:
	}
}

// InFlight reports how many turns are currently streaming.
func (l *TurnLimiter) InFlight() int {
	return len(l.slots)
}
