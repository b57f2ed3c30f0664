package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"
)

// Config holds retry configuration.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultConfig returns the configuration used for LLM and webhook calls.
func DefaultConfig() Config {
	return Config{MaxRetries: 3, BaseDelay: 500 * time.Millisecond}
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err: err}
}

// Do runs op with exponential backoff and jitter until it succeeds, returns
// a non-retryable error, exhausts MaxRetries, or ctx is done.
func Do(ctx context.Context, cfg Config, op func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			return err
		}
		if attempt >= cfg.MaxRetries {
			return fmt.Errorf("failed after %d attempts: %w", attempt+1, err)
		}
		delay := cfg.BaseDelay * time.Duration(1<<attempt)
		if cfg.BaseDelay > 0 {
			delay += time.Duration(rand.Int63n(int64(cfg.BaseDelay)))
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Retryable reports whether err may succeed on another attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var p permanent
	if errors.As(err, &p) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return HTTPStatusRetryable(se.Code)
	}
	return true
}

// HTTPStatusRetryable checks if an HTTP status code is retryable.
func HTTPStatusRetryable(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}
