package httpclient

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryPolicy controls how GetJSON-style callers retry transient failures.
// Network errors, 5xx, and 429-without-Retry-After back off exponentially
// with jitter; a 429 carrying Retry-After waits that long (capped). Other
// 4xx are never retried.
type RetryPolicy struct {
	MaxAttempts int           // total attempts including the first (default 4)
	BaseBackoff time.Duration // first backoff step (default 500ms)
	MaxBackoff  time.Duration // cap per wait (default 15s)
	Max429Wait  time.Duration // cap on Retry-After honouring (default 60s)
}

// DefaultRetryPolicy bounds every adapter call at 4 attempts.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 4,
	BaseBackoff: 500 * time.Millisecond,
	MaxBackoff:  15 * time.Second,
	Max429Wait:  60 * time.Second,
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 4
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = 500 * time.Millisecond
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 15 * time.Second
	}
	if p.Max429Wait <= 0 {
		p.Max429Wait = 60 * time.Second
	}
	return p
}

// RetryStats counts what DoWithRetry had to do. Callers may pass nil.
type RetryStats struct {
	Retries       int
	ReactiveWaits int // waits forced by a 429 response
}

// DoWithRetry performs a GET with bounded retries. All requests here are
// idempotent GETs, so retrying is always safe. Caller must close resp.Body
// when err == nil. MaxAttempts bounds the total requests sent: when the
// budget runs out on a retryable status, that last response is returned
// undrained instead of triggering another request.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, policy RetryPolicy, stats *RetryStats) (*http.Response, error) {
	policy = policy.withDefaults()
	if client == nil {
		client = Default()
	}

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			if stats != nil {
				stats.Retries++
			}
		}
		last := attempt == policy.MaxAttempts-1
		resp, err := client.Do(cloneRequest(ctx, req))
		if err != nil {
			lastErr = err
			if last {
				break
			}
			if waitErr := sleepBackoff(ctx, policy, attempt); waitErr != nil {
				return nil, waitErr
			}
			continue
		}
		code := resp.StatusCode
		switch {
		case code < 400:
			return resp, nil
		case code == http.StatusTooManyRequests:
			if last {
				return resp, nil
			}
			drain(resp)
			ra := resp.Header.Get("Retry-After")
			if ra != "" {
				if stats != nil {
					stats.ReactiveWaits++
				}
				if waitErr := sleepFor(ctx, parseRetryAfter(ra, policy.Max429Wait)); waitErr != nil {
					return nil, waitErr
				}
			} else if waitErr := sleepBackoff(ctx, policy, attempt); waitErr != nil {
				return nil, waitErr
			}
			lastErr = nil
			continue
		case code >= 500:
			if last {
				return resp, nil
			}
			drain(resp)
			if waitErr := sleepBackoff(ctx, policy, attempt); waitErr != nil {
				return nil, waitErr
			}
			lastErr = nil
			continue
		default:
			// 4xx other than 429: not retryable.
			return resp, nil
		}
	}
	return nil, lastErr
}

// cloneRequest builds a fresh request for each attempt. Bodies are never
// carried; every call in this codebase is a GET.
func cloneRequest(ctx context.Context, req *http.Request) *http.Request {
	r2, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), nil)
	if err != nil {
		return req
	}
	for k, v := range req.Header {
		r2.Header[k] = v
	}
	return r2
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// sleepBackoff waits base*2^attempt with up to 25% jitter, capped.
func sleepBackoff(ctx context.Context, policy RetryPolicy, attempt int) error {
	d := policy.BaseBackoff << uint(attempt)
	if d > policy.MaxBackoff {
		d = policy.MaxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	return sleepFor(ctx, d+jitter)
}

func sleepFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// RetryAfter reads resp's Retry-After header, capped at max. Absent or
// unparseable headers yield the 1s fallback, so a surfaced 429 always
// carries some penalty.
func RetryAfter(resp *http.Response, max time.Duration) time.Duration {
	if max <= 0 {
		max = 60 * time.Second
	}
	return parseRetryAfter(resp.Header.Get("Retry-After"), max)
}

// parseRetryAfter parses Retry-After (seconds or HTTP-date); returns duration capped at max.
func parseRetryAfter(s string, max time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1 * time.Second
	}
	if sec, err := strconv.Atoi(s); err == nil && sec >= 0 {
		d := time.Duration(sec) * time.Second
		if d > max {
			return max
		}
		return d
	}
	// RFC 1123 date
	t, err := time.Parse(time.RFC1123, s)
	if err != nil {
		return 1 * time.Second
	}
	until := time.Until(t)
	if until <= 0 {
		return 0
	}
	if until > max {
		return max
	}
	return until
}
