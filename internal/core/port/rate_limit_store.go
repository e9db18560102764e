package port

import (
	"context"
	"time"
)

// RateLimitStore defines the persistence operations behind the per-IP
// sliding-window throttle applied ahead of the login and forgot-password
// endpoints. Account-scoped lockout state lives on the account record itself.
type RateLimitStore interface {
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error)
}
