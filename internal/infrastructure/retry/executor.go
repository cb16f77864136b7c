// Package retry implements the shared retry policy for outbound marketplace
// calls: bounded attempts, exponential backoff, and a retryability predicate
// covering rate limits, server errors, and transport failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = time.Second
	defaultMaxDelay   = 30 * time.Second
)

// ---------------------------------------------------------------------------
// HTTPStatusError
// ---------------------------------------------------------------------------

// HTTPStatusError is returned by HTTP clients for non-2xx responses so the
// executor can classify them. RetryAfter carries a parsed Retry-After header
// when the server sent one.
type HTTPStatusError struct {
	StatusCode int
	Status     string
	RetryAfter time.Duration
	Body       string
}

// Error implements the error interface.
func (e *HTTPStatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("http status %s: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("http status %s", e.Status)
}

// Temporary reports whether the status is worth retrying.
func (e *HTTPStatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// ---------------------------------------------------------------------------
// Executor
// ---------------------------------------------------------------------------

// Config holds the retry policy parameters.
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BaseDelay is the backoff base; attempt n waits BaseDelay * 2^n.
	BaseDelay time.Duration

	// MaxDelay caps a single backoff wait.
	MaxDelay time.Duration
}

// Executor applies the retry policy to an operation. Retries happen only for
// HTTP 429 (honoring Retry-After when present), HTTP 5xx, and transport
// errors; every other failure propagates immediately. When retries are
// exhausted the last error is returned to the caller, who decides whether
// the failure is isolated or fatal.
type Executor struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	logger     *zap.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates an Executor with the given policy. Zero values fall
// back to 3 retries, 1s base delay, and a 30s cap.
func NewExecutor(cfg Config, logger *zap.Logger) *Executor {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultMaxDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		maxDelay:   cfg.MaxDelay,
		logger:     logger,
		sleep:      sleepContext,
	}
}

// Do runs fn, retrying per the policy. The operation name is used for logs.
func (e *Executor) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			delay := e.backoff(attempt-1, lastErr)
			e.logger.Warn("Retrying operation",
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", e.maxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if err := e.sleep(ctx, delay); err != nil {
				return err
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !Retryable(lastErr) {
			return lastErr
		}
	}

	e.logger.Error("Retries exhausted",
		zap.String("operation", operation),
		zap.Int("max_retries", e.maxRetries),
		zap.Error(lastErr),
	)
	return lastErr
}

// backoff returns the wait before the attempt following the given zero-based
// failed attempt. A rate-limit response with Retry-After wins over the
// exponential schedule.
func (e *Executor) backoff(failedAttempt int, err error) time.Duration {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) &&
		statusErr.StatusCode == http.StatusTooManyRequests &&
		statusErr.RetryAfter > 0 {
		if statusErr.RetryAfter > e.maxDelay {
			return e.maxDelay
		}
		return statusErr.RetryAfter
	}

	delay := e.baseDelay * time.Duration(1<<failedAttempt)
	if delay > e.maxDelay {
		delay = e.maxDelay
	}
	return delay
}

// Retryable classifies an error under the retry policy: HTTP 429 and 5xx,
// timeouts, connection refused/reset, and DNS failures retry; everything
// else, including context cancellation, does not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
