package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestDoSucceedsAfterRetries(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{MaxRetries: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d", attempts)
	}
}

func TestDoGivesUp(t *testing.T) {
	attempts := 0
	base := errors.New("persistent")
	err := Do(context.Background(), Config{MaxRetries: 2, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		attempts++
		return base
	})
	if !errors.Is(err, base) {
		t.Fatalf("err = %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d", attempts)
	}
}

func TestDoStopsOnClientError(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{MaxRetries: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		attempts++
		return fmt.Errorf("call: %w", &StatusError{Code: 400})
	})
	if err == nil || attempts != 1 {
		t.Fatalf("err = %v attempts = %d", err, attempts)
	}
}

func TestDoStopsOnPermanent(t *testing.T) {
	attempts := 0
	_ = Do(context.Background(), Config{MaxRetries: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		attempts++
		return Permanent(errors.New("bad input"))
	})
	if attempts != 1 {
		t.Fatalf("attempts = %d", attempts)
	}
}

func TestDoHonorsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := Do(ctx, Config{MaxRetries: 10, BaseDelay: 50 * time.Millisecond}, func(ctx context.Context) error {
		return errors.New("retry me")
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("did not abort promptly")
	}
}

func TestHTTPStatusRetryable(t *testing.T) {
	cases := map[int]bool{200: false, 400: false, 404: false, 429: true, 500: true, 503: true}
	for code, want := range cases {
		if got := HTTPStatusRetryable(code); got != want {
			t.Errorf("HTTPStatusRetryable(%d) = %v, want %v", code, got, want)
		}
	}
}
