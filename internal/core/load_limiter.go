package core

import (
	"context"
	"errors"
	"time"
)

// ErrLoadInProgress is returned when every load slot stays occupied for the
// whole wait period.
var ErrLoadInProgress = errors.New("too many loads in progress")

// DefaultLoadWait is how long a load waits for a free slot.
const DefaultLoadWait = 5 * time.Second

// LoadLimiter bounds the number of concurrent database loads. Two loads of
// the same files would race on the same natural keys, so the server runs one
// at a time by default.
type LoadLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
}

// NewLoadLimiter allows at most maxConcurrent loads at once.
func NewLoadLimiter(maxConcurrent int, maxWait time.Duration) *LoadLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if maxWait <= 0 {
		maxWait = DefaultLoadWait
	}
	return &LoadLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire waits for a slot. The caller must Release it when done.
func (l *LoadLimiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.tryAcquire() {
		return nil
	}

	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrLoadInProgress
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tryAcquire takes a slot without blocking.
func (l *LoadLimiter) tryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire.
func (l *LoadLimiter) Release() {
	<-l.slots
}

// Active returns the number of running loads.
func (l *LoadLimiter) Active() int {
	return len(l.slots)
}

// WaitForDrain blocks until no load is running or ctx is done.
// Used during shutdown so a load can commit before the pool closes.
func (l *LoadLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.Active() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LoadLimiterStatus is a snapshot of the limiter.
type LoadLimiterStatus struct {
	Active        int `json:"active"`
	MaxConcurrent int `json:"max_concurrent"`
}

func (l *LoadLimiter) Status() LoadLimiterStatus {
	return LoadLimiterStatus{Active: len(l.slots), MaxConcurrent: cap(l.slots)}
}
