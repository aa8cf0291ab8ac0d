package provider

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
	"github.com/medsim/diagnosis-gateway/internal/pkg/config"
)

type scriptedCompleter struct {
	calls atomic.Int32
	errs  []error
	delay time.Duration
}

func (s *scriptedCompleter) Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error) {
	n := int(s.calls.Add(1)) - 1
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n < len(s.errs) && s.errs[n] != nil {
		return nil, s.errs[n]
	}
	return &domain.CompletionResponse{Content: "ok"}, nil
}

var fastRetry = config.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}

func TestWithRetry_Disabled(t *testing.T) {
	inner := &scriptedCompleter{}
	c := WithRetry(inner, config.RetryConfig{MaxAttempts: 1}, 0, nil)
	assert.Same(t, inner, c, "single attempt without timeout should not wrap")
}

func TestWithRetry_RetriesTemporary(t *testing.T) {
	inner := &scriptedCompleter{errs: []error{
		&domain.ProviderError{Provider: "groq", StatusCode: 429, Err: errors.New("rate limited")},
		&domain.ProviderError{Provider: "groq", StatusCode: 503, Err: errors.New("unavailable")},
	}}
	c := WithRetry(inner, fastRetry, 0, nil)

	resp, err := c.Complete(context.Background(), &domain.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.EqualValues(t, 3, inner.calls.Load())
}

func TestWithRetry_StopsOnPermanent(t *testing.T) {
	badRequest := &domain.ProviderError{Provider: "groq", StatusCode: 400, Err: errors.New("bad")}
	inner := &scriptedCompleter{errs: []error{badRequest}}
	c := WithRetry(inner, fastRetry, 0, nil)

	_, err := c.Complete(context.Background(), &domain.CompletionRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, badRequest)
	assert.EqualValues(t, 1, inner.calls.Load())
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	temp := &domain.ProviderError{Provider: "groq", StatusCode: 500, Err: errors.New("boom")}
	inner := &scriptedCompleter{errs: []error{temp, temp, temp, temp}}
	c := WithRetry(inner, fastRetry, 0, nil)

	_, err := c.Complete(context.Background(), &domain.CompletionRequest{})
	require.Error(t, err)
	assert.EqualValues(t, 3, inner.calls.Load())
}

func TestWithRetry_Timeout(t *testing.T) {
	inner := &scriptedCompleter{delay: time.Second}
	c := WithRetry(inner, config.RetryConfig{MaxAttempts: 1}, 10*time.Millisecond, nil)

	start := time.Now()
	_, err := c.Complete(context.Background(), &domain.CompletionRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestWithRetry_CallerCancel(t *testing.T) {
	inner := &scriptedCompleter{delay: time.Second}
	c := WithRetry(inner, fastRetry, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Complete(ctx, &domain.CompletionRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 1, inner.calls.Load())
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(context.Canceled))
	assert.True(t, Retryable(context.DeadlineExceeded))
	assert.True(t, Retryable(&domain.ProviderError{Err: errors.New("dial tcp")}))
	assert.False(t, Retryable(&domain.ProviderError{StatusCode: 401, Err: errors.New("auth")}))
	assert.False(t, Retryable(domain.ErrAgentNoContent))
}

func TestNew(t *testing.T) {
	t.Run("unknown provider", func(t *testing.T) {
		_, err := New(config.LLMConfig{Provider: "bedrock", APIKey: "k"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown provider type")
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := New(config.LLMConfig{Provider: "groq"})
		require.Error(t, err)
	})

	for _, name := range []string{"groq", "openai", "anthropic"} {
		t.Run(name, func(t *testing.T) {
			c, err := New(config.LLMConfig{Provider: name, APIKey: "k"})
			require.NoError(t, err)
			assert.NotNil(t, c)
		})
	}

	t.Run("retry wrapped", func(t *testing.T) {
		c, err := New(config.LLMConfig{Provider: "groq", APIKey: "k"}, WithRetryPolicy(fastRetry, 0))
		require.NoError(t, err)
		assert.IsType(t, &RetryDecorator{}, c)
	})
}
