package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"marketplace/internal/common"
	"marketplace/internal/logger"
	"marketplace/internal/metrics"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// withRemoteRetry runs fn and, if it fails with a transport error, runs it
// once more straight away. A transport error that survives the retry is
// reported as common.ErrRemoteUnavailable; every other error is returned as is.
func withRemoteRetry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(1, retry.BackoffFunc(func() (time.Duration, bool) {
		return 0, false
	}))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			metrics.RecordRemoteRetry(operation)
			logger.FromContext(ctx).Warn("retrying remote call", zap.String("operation", operation))
		}

		if err := fn(ctx); err != nil {
			if isTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})

	if isTransient(err) {
		return fmt.Errorf("%w: %s: %v", common.ErrRemoteUnavailable, operation, err)
	}
	return err
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if pgconn.SafeToRetry(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}
