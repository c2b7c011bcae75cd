package ordermonitor

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// retryRPC retries a transient RPC read up to cfg.RetryCount times,
// sleeping cfg.RetrySleep between attempts, generalizing the sleep-then-
// retry loop the teacher's preconfChecker uses around its opnode polling
// into a one-shot helper callers can wrap a single RPC call with. It
// respects ctx so a cancelled tick aborts mid-retry rather than blocking.
func retryRPC[T any](ctx context.Context, cfg RPCRetryConfig, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	attempts := cfg.RetryCount + 1
	for attempt := uint64(0); attempt < attempts; attempt++ {
		if attempt > 0 {
			log.Debug("retrying rpc call", "op", op, "attempt", attempt, "last_err", err)
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(cfg.RetrySleep):
			}
		}
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
	}
	return result, fmt.Errorf("rpc call %s failed after %d attempts: %w", op, attempts, err)
}
