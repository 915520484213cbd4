package utils

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/flokiorg/lngateway/constants"
	"github.com/flokiorg/lngateway/lnclient"
	"github.com/flokiorg/lngateway/logger"
)

// RetryRead runs a read-only backend call, retrying connectivity failures
// with exponential backoff. Never use it for calls that change backend state.
func RetryRead[T any](ctx context.Context, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	return RetryReadN(ctx, name, constants.READ_RETRY_ATTEMPTS, constants.READ_RETRY_BASE, fn)
}

func RetryReadN[T any](ctx context.Context, name string, attempts uint64, base time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if attempts == 0 {
		attempts = 1
	}
	backoff := retry.WithMaxRetries(attempts-1, retry.NewExponential(base))

	var result T
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		r, err := fn(ctx)
		if err != nil {
			if lnclient.IsTransient(err) {
				logger.Logger.Debug().Err(err).
					Str("call", name).
					Int("attempt", attempt).
					Msg("Read call failed, retrying")
				return retry.RetryableError(err)
			}
			return err
		}
		result = r
		return nil
	})
	return result, err
}
