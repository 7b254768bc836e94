package youtube

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// ErrUnauthorized means the token was rejected even after a retry. The caller
// should surface a reconnect-required state to the user.
var ErrUnauthorized = errors.New("youtube: unauthorized")

// ErrQuotaExhausted means the API kept returning quota errors after all backoff
// attempts were spent.
var ErrQuotaExhausted = errors.New("youtube: quota exhausted")

// RetryPolicy controls retries against the YouTube APIs. Quota and rate-limit
// responses (403/429) back off exponentially with jitter; a 401 is retried
// exactly once, which gives the oauth2 transport a chance to swap in a freshly
// refreshed token.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy matches YouTube's recommended client behaviour.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 64 * time.Second}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	backoff := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if backoff > float64(p.MaxDelay) {
		backoff = float64(p.MaxDelay)
	}
	// Full jitter.
	return time.Duration(rand.Float64() * backoff)
}

// do executes fn with retries. fn must build a fresh request each call because
// request bodies cannot be replayed.
func (p RetryPolicy) do(ctx context.Context, fn func() (*http.Response, error)) (*http.Response, error) {
	retried401 := false
	for attempt := 0; ; attempt++ {
		resp, err := fn()
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			resp.Body.Close()
			if retried401 {
				return nil, ErrUnauthorized
			}
			retried401 = true
			continue
		case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			if attempt+1 >= p.MaxAttempts {
				return nil, ErrQuotaExhausted
			}
			select {
			case <-time.After(p.delay(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		case resp.StatusCode >= 500:
			resp.Body.Close()
			if attempt+1 >= p.MaxAttempts {
				return nil, fmt.Errorf("youtube: server error %d", resp.StatusCode)
			}
			select {
			case <-time.After(p.delay(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		return resp, nil
	}
}
