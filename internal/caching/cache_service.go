package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/models"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "marketplace"

type CacheService interface {
	// Wizard session state
	GetWizardState(ctx context.Context, userID, sessionID string) (*models.WizardState, error)
	SetWizardState(ctx context.Context, userID, sessionID string, state *models.WizardState, ttl time.Duration) error
	DeleteWizardState(ctx context.Context, userID, sessionID string) error

	// Profile caching
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	SetProfile(ctx context.Context, profile *models.Profile, ttl time.Duration) error
	DeleteProfile(ctx context.Context, userID string) error

	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client redis.UniversalClient
}

// NewRedisClient creates the client shared by the cache and the draft locker.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewRedisCacheService(client redis.UniversalClient) CacheService {
	return &redisCacheService{client: client}
}

func wizardKey(userID, sessionID string) string {
	return fmt.Sprintf("%s:wizard:%s:%s", keyPrefix, userID, sessionID)
}

func profileKey(userID string) string {
	return fmt.Sprintf("%s:profile:%s", keyPrefix, userID)
}

// GetWizardState returns nil on a cache miss. Stored snapshots are decoded
// leniently so that state written by older releases still resumes.
func (r *redisCacheService) GetWizardState(ctx context.Context, userID, sessionID string) (*models.WizardState, error) {
	data, err := r.client.Get(ctx, wizardKey(userID, sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // cache miss
		}
		return nil, err
	}

	state := models.DecodeWizardState(data)
	return &state, nil
}

func (r *redisCacheService) SetWizardState(ctx context.Context, userID, sessionID string, state *models.WizardState, ttl time.Duration) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, wizardKey(userID, sessionID), data, ttl).Err()
}

func (r *redisCacheService) DeleteWizardState(ctx context.Context, userID, sessionID string) error {
	return r.client.Del(ctx, wizardKey(userID, sessionID)).Err()
}

func (r *redisCacheService) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	data, err := r.client.Get(ctx, profileKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var profile models.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *redisCacheService) SetProfile(ctx context.Context, profile *models.Profile, ttl time.Duration) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, profileKey(profile.ID), data, ttl).Err()
}

func (r *redisCacheService) DeleteProfile(ctx context.Context, userID string) error {
	return r.client.Del(ctx, profileKey(userID)).Err()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
