package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
	"github.com/medsim/diagnosis-gateway/internal/core/ports"
	"github.com/medsim/diagnosis-gateway/internal/pkg/config"
)

// RetryDecorator wraps a completer with bounded exponential backoff and an
// optional per-call timeout.
type RetryDecorator struct {
	next    ports.Completer
	config  config.RetryConfig
	timeout time.Duration
	logger  *slog.Logger
}

var _ ports.Completer = (*RetryDecorator)(nil)

// WithRetry wraps c. MaxAttempts <= 1 means a single attempt; a zero timeout
// means no per-call deadline. When neither is enabled c is returned as is.
func WithRetry(c ports.Completer, cfg config.RetryConfig, timeout time.Duration, logger *slog.Logger) ports.Completer {
	if cfg.MaxAttempts <= 1 && timeout <= 0 {
		return c
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryDecorator{next: c, config: cfg, timeout: timeout, logger: logger}
}

func (r *RetryDecorator) Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error) {
	var resp *domain.CompletionResponse

	op := func() error {
		callCtx := ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}

		out, err := r.next.Complete(callCtx, req)
		if err != nil {
			if !Retryable(err) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = out
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.config.InitialBackoff
	b.MaxInterval = r.config.MaxBackoff
	b.Multiplier = 2.0
	b.MaxElapsedTime = 0

	attempts := 1
	notify := func(err error, wait time.Duration) {
		r.logger.Warn("model call failed, retrying",
			slog.Int("attempt", attempts),
			slog.Int("max_attempts", r.config.MaxAttempts),
			slog.Duration("backoff", wait),
			slog.String("error", err.Error()))
		attempts++
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.config.MaxAttempts-1)), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, fmt.Errorf("model call failed after %d attempt(s): %w", attempts, err)
	}
	return resp, nil
}

// Retryable reports whether err is a temporary upstream failure. A per-call
// timeout counts as temporary; caller cancellation does not.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var perr *domain.ProviderError
	if errors.As(err, &perr) {
		return perr.Temporary()
	}
	return false
}
