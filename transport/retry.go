package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/decentraland/catalyst-client-sub000/model"
)

// Retryable reports whether err is worth another attempt. Transport failures
// and integrity mismatches (a truncated or corrupted download) are; anything
// else is a caller or protocol error and is returned immediately.
func Retryable(err error) bool {
	switch model.KindOf(err) {
	case model.KindTransport, model.KindIntegrity:
		return true
	default:
		return false
	}
}

// Retry runs fn until it succeeds, returns a non-retryable error, or
// opts.Attempts is exhausted. Each attempt gets its own opts.Timeout. The last
// error is returned on exhaustion; cancellation of ctx ends the loop with
// ctx.Err().
func Retry(ctx context.Context, opts Options, logger *slog.Logger, fn func(ctx context.Context) error) error {
	opts = opts.WithDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	var err error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		err = runAttempt(ctx, opts.Timeout, fn)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !Retryable(err) {
			return err
		}
		if attempt == opts.Attempts {
			break
		}

		logger.Warn("request failed, retry imminent",
			"attempt", attempt,
			"attempts", opts.Attempts,
			"error", err,
		)
		if opts.WaitTime > 0 {
			timer := time.NewTimer(opts.WaitTime)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return err
}

func runAttempt(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}
