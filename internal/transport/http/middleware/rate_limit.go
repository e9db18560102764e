package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/serenbook/account-service/internal/core/port"
	"github.com/serenbook/account-service/internal/infra/logger"
)

const (
	throttleProblemType  = "https://accounts.serenbook.app/errors/rate-limit-exceeded"
	throttleProblemTitle = "Rate Limit Exceeded"
)

// ThrottleRule bounds how often a single client IP may hit a credential
// endpoint inside a sliding window. It blunts anonymous hammering ahead of
// the per-account lockout, which lives on the account row itself.
type ThrottleRule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// RateLimiter enforces ThrottleRules against a shared sliding-window store.
type RateLimiter struct {
	store  port.RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

// ProblemDetails is the RFC 9457 payload returned when a rule trips.
type ProblemDetails struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
	RetryAfter int    `json:"retry_after"`
	TraceID    string `json:"trace_id,omitempty"`
}

type throttleVerdict struct {
	allowed    bool
	limit      int
	remaining  int
	reset      time.Time
	retryAfter time.Duration
}

// NewRateLimiter builds the throttle middleware helper.
func NewRateLimiter(store port.RateLimitStore, log *zap.Logger) *RateLimiter {
	if log == nil {
		log = zap.NewNop()
	}

	return &RateLimiter{
		store:  store,
		logger: log,
		now:    time.Now,
	}
}

// WithClock allows tests to override the clock.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// Throttle returns a gin middleware enforcing one rule keyed by client IP.
// A store failure lets the request through: the account lockout behind this
// guard still bounds credential guessing.
func (rl *RateLimiter) Throttle(rule ThrottleRule) gin.HandlerFunc {
	if rl == nil || rl.store == nil || rule.Limit <= 0 || rule.Window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if rule.Name == "" {
		rule.Name = "default"
	}

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		verdict, err := rl.check(c, rule, rule.Name+":"+ip, rl.now())
		if err != nil {
			rl.logger.Warn("throttle check failed, letting request through",
				zap.String("rule", rule.Name),
				zap.String("client_ip", logger.MaskIP(ip)),
				zap.Error(err))
			c.Next()
			return
		}

		rl.writeHeaders(c, verdict)
		if !verdict.allowed {
			rl.reject(c, verdict)
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) check(c *gin.Context, rule ThrottleRule, key string, now time.Time) (throttleVerdict, error) {
	ctx := c.Request.Context()

	if err := rl.store.TrimWindow(ctx, key, rule.Window, now); err != nil {
		return throttleVerdict{}, err
	}

	count, err := rl.store.CountAttempts(ctx, key, rule.Window, now)
	if err != nil {
		return throttleVerdict{}, err
	}

	verdict := throttleVerdict{limit: rule.Limit, reset: now.Add(rule.Window)}
	if oldest, ok, err := rl.store.OldestAttempt(ctx, key, rule.Window, now); err != nil {
		return throttleVerdict{}, err
	} else if ok {
		verdict.reset = oldest.Add(rule.Window)
	}

	if count >= rule.Limit {
		verdict.retryAfter = verdict.reset.Sub(now)
		if verdict.retryAfter < 0 {
			verdict.retryAfter = 0
		}
		return verdict, nil
	}

	if err := rl.store.RecordAttempt(ctx, key, now); err != nil {
		return throttleVerdict{}, err
	}

	verdict.allowed = true
	verdict.remaining = rule.Limit - count - 1
	if verdict.remaining < 0 {
		verdict.remaining = 0
	}

	return verdict, nil
}

func (rl *RateLimiter) writeHeaders(c *gin.Context, verdict throttleVerdict) {
	headers := c.Writer.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(verdict.limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(verdict.remaining))
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(verdict.reset.Unix(), 10))

	if !verdict.allowed {
		headers.Set("Retry-After", strconv.Itoa(retrySeconds(verdict.retryAfter)))
	}
}

func (rl *RateLimiter) reject(c *gin.Context, verdict throttleVerdict) {
	seconds := retrySeconds(verdict.retryAfter)

	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
		Type:       throttleProblemType,
		Title:      throttleProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     "Too many requests. Try again in " + strconv.Itoa(seconds) + " seconds.",
		Instance:   instance,
		RetryAfter: seconds,
		TraceID:    GetTraceID(c),
	})
}

func retrySeconds(d time.Duration) int {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 0 {
		return 0
	}
	return seconds
}
