package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
)

func recordingPolicy(waits *[]time.Duration) retryPolicy {
	return retryPolicy{maxAttempts: 3, baseDelay: 30 * time.Second, sleep: func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}}
}

func TestRetryExponentialBackoff(t *testing.T) {
	var waits []time.Duration
	calls := 0
	err := recordingPolicy(&waits).do(context.Background(), nil, func() error {
		calls++
		return &RateLimitError{}
	})
	if !errors.Is(err, ErrRateLimitExhausted) {
		t.Fatalf("err = %v, want ErrRateLimitExhausted", err)
	}
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Error("exhausted error does not wrap the last RateLimitError")
	}
	want := []time.Duration{30 * time.Second, 60 * time.Second}
	if len(waits) != len(want) {
		t.Fatalf("waits = %v, want %v", waits, want)
	}
	for i := range want {
		if waits[i] != want[i] {
			t.Errorf("wait[%d] = %v, want %v", i, waits[i], want[i])
		}
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryNonRateLimitNotRetried(t *testing.T) {
	var waits []time.Duration
	calls := 0
	boom := &APIError{Status: 500, Body: "x"}
	err := recordingPolicy(&waits).do(context.Background(), nil, func() error {
		calls++
		return boom
	})
	if err != boom || calls != 1 || len(waits) != 0 {
		t.Errorf("err=%v calls=%d waits=%v", err, calls, waits)
	}
}

func TestRetryContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := retryPolicy{maxAttempts: 3, baseDelay: time.Hour}
	err := p.do(ctx, nil, func() error { return &RateLimitError{} })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRetrySuccessAfterRateLimit(t *testing.T) {
	var waits []time.Duration
	var statuses []string
	calls := 0
	err := recordingPolicy(&waits).do(context.Background(), func(s string) { statuses = append(statuses, s) }, func() error {
		calls++
		if calls < 3 {
			return &RateLimitError{}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("statuses = %v, want 2", statuses)
	}
	if !strings.HasSuffix(statuses[1], "(attempt 3/3)") {
		t.Errorf("last status = %q, want attempt 3/3", statuses[1])
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"12", 12 * time.Second},
		{"1.5", 1500 * time.Millisecond},
		{"-3", 0},
		{now.Add(20 * time.Second).Format(http.TimeFormat), 20 * time.Second},
		{"garbage", 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.in, now); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsAuthError(t *testing.T) {
	if !IsAuthError(&authError{message: "x"}) {
		t.Error("authError not detected")
	}
	if IsAuthError(errors.New("x")) {
		t.Error("plain error detected as auth error")
	}
}
