package usecase

import (
	"context"
	"time"
)

// sleepOrDone waits for d or ctx cancellation, whichever comes first. It
// returns false if ctx was cancelled, signaling the caller to stop retrying.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// backoffDuration computes base * 2^(attempt-1), attempt starting at 1.
func backoffDuration(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(int64(1)<<uint(attempt-1))
}
