package youtube

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubResponse(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader("{}")),
	}
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 4, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	resp, err := fastPolicy().do(context.Background(), func() (*http.Response, error) {
		calls++
		return stubResponse(http.StatusOK), nil
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDoRetries401ExactlyOnce(t *testing.T) {
	calls := 0
	_, err := fastPolicy().do(context.Background(), func() (*http.Response, error) {
		calls++
		return stubResponse(http.StatusUnauthorized), nil
	})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 2, calls)
}

func TestDoRecoversAfter401Retry(t *testing.T) {
	calls := 0
	resp, err := fastPolicy().do(context.Background(), func() (*http.Response, error) {
		calls++
		if calls == 1 {
			return stubResponse(http.StatusUnauthorized), nil
		}
		return stubResponse(http.StatusOK), nil
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 2, calls)
}

func TestDoBacksOffOnQuotaErrors(t *testing.T) {
	policy := fastPolicy()
	calls := 0
	_, err := policy.do(context.Background(), func() (*http.Response, error) {
		calls++
		return stubResponse(http.StatusTooManyRequests), nil
	})
	assert.ErrorIs(t, err, ErrQuotaExhausted)
	assert.Equal(t, policy.MaxAttempts, calls)
}

func TestDoRecoversFromTransientQuotaError(t *testing.T) {
	calls := 0
	resp, err := fastPolicy().do(context.Background(), func() (*http.Response, error) {
		calls++
		if calls < 3 {
			return stubResponse(http.StatusForbidden), nil
		}
		return stubResponse(http.StatusOK), nil
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 3, calls)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: time.Second}.do(ctx, func() (*http.Response, error) {
		return stubResponse(http.StatusTooManyRequests), nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDelayNeverExceedsMax(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 4 * time.Second}
	for attempt := 0; attempt < 10; attempt++ {
		assert.LessOrEqual(t, policy.delay(attempt), policy.MaxDelay)
	}
}
