package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 30 * time.Second
	maxErrorBody       = 512
)

// ErrRateLimitExhausted is returned once every attempt has been rate limited.
var ErrRateLimitExhausted = errors.New("rate limit retries exhausted")

// RateLimitError is an HTTP 429 response.
type RateLimitError struct {
	// RetryAfter is zero when the server sent no usable Retry-After header.
	RetryAfter time.Duration
	Body       string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s)", e.RetryAfter)
	}
	return "rate limited"
}

// APIError is a non-success HTTP response other than 429 or an auth failure.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.Status, e.Body)
}

type authError struct {
	message string
}

func (e *authError) Error() string {
	return "authentication error: " + e.message
}

// IsAuthError checks if an error is an authentication error.
func IsAuthError(err error) bool {
	var ae *authError
	return errors.As(err, &ae)
}

// IsRateLimit reports whether err is, or wraps, a rate limit failure.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl) || errors.Is(err, ErrRateLimitExhausted)
}

// checkStatus turns a non-200 response into a typed error.
func checkStatus(resp *http.Response, body []byte) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	text := truncateBody(body)
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()), Body: text}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &authError{message: text}
	default:
		return &APIError{Status: resp.StatusCode, Body: text}
	}
}

func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

type retryPolicy struct {
	// maxAttempts counts every request, the first one included.
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

func defaultRetry() retryPolicy {
	return retryPolicy{maxAttempts: defaultMaxAttempts, baseDelay: defaultBaseDelay, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// do runs fn at most maxAttempts times, retrying only rate limit errors. The
// wait is the server's Retry-After when present, else baseDelay doubled per
// attempt.
func (p retryPolicy) do(ctx context.Context, status func(string), fn func() error) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var rl *RateLimitError
		if !errors.As(err, &rl) {
			return err
		}
		if attempt+1 >= p.maxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrRateLimitExhausted, attempt+1, err)
		}

		wait := rl.RetryAfter
		if wait <= 0 {
			wait = p.baseDelay << attempt
		}
		if status != nil {
			status(fmt.Sprintf("Rate limited, retrying in %s (attempt %d/%d)", wait.Round(time.Second), attempt+2, p.maxAttempts))
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// post sends payload and returns the body of a 200 response.
func post(ctx context.Context, client *http.Client, url string, headers map[string]string, payload []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if err := checkStatus(httpResp, body); err != nil {
		return nil, err
	}
	return body, nil
}
