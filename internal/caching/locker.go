package caching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/common"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Unlock releases a lock obtained from DraftLocker.
type Unlock func(ctx context.Context) error

// DraftLocker serializes mutations of one draft across requests and replicas.
type DraftLocker interface {
	Lock(ctx context.Context, documentID uuid.UUID) (Unlock, error)
}

type redisDraftLocker struct {
	locker *redislock.Client
	ttl    time.Duration
	retry  redislock.RetryStrategy
}

func NewRedisDraftLocker(client redis.UniversalClient, ttl time.Duration) DraftLocker {
	// wait up to roughly one ttl for the current holder
	attempts := int(ttl / (100 * time.Millisecond))
	if attempts < 1 {
		attempts = 1
	}
	return &redisDraftLocker{
		locker: redislock.New(client),
		ttl:    ttl,
		retry:  redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), attempts),
	}
}

func (l *redisDraftLocker) Lock(ctx context.Context, documentID uuid.UUID) (Unlock, error) {
	key := fmt.Sprintf("%s:lock:draft:%s", keyPrefix, documentID)
	lock, err := l.locker.Obtain(ctx, key, l.ttl, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, common.ErrDraftBusy
	}
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return err
		}
		return nil
	}, nil
}
