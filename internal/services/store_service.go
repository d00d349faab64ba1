package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"marketplace/internal/caching"
	"marketplace/internal/common"
	"marketplace/internal/logger"
	"marketplace/internal/metrics"
	"marketplace/internal/models"
	"marketplace/internal/repositories"
	"marketplace/internal/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Upload is an attachment accompanying a store create or update.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	// Duration is the play length of video media, zero for images.
	Duration time.Duration
	Reader   io.Reader
}

type StoreService interface {
	CheckAndCreate(ctx context.Context, ownerID string, attrs models.StoreAttributes, logo *Upload) (uuid.UUID, error)
	Update(ctx context.Context, storeID uuid.UUID, updates models.StoreUpdate, logo *Upload) (*models.Store, error)
	SoftDelete(ctx context.Context, storeID uuid.UUID) error
	List(ctx context.Context, ownerID string) ([]*models.Store, error)
	Get(ctx context.Context, storeID uuid.UUID) (*models.Store, error)
	Usage(ctx context.Context) (*models.QuotaUsage, error)
	ChangePlan(ctx context.Context, ownerID string, plan models.Plan) error
}

const defaultUploadTimeout = 30 * time.Second

type storeService struct {
	storeRepo   repositories.StoreRepository
	profileRepo repositories.ProfileRepository
	cacheSvc    caching.CacheService
	uploader    Uploader
	profileTTL  time.Duration
	// uploadTimeout bounds a logo upload; during a create the quota slot
	// and its connection are held for that long at most.
	uploadTimeout time.Duration
}

func NewStoreService(storeRepo repositories.StoreRepository, profileRepo repositories.ProfileRepository, cacheSvc caching.CacheService, uploader Uploader, profileTTL, uploadTimeout time.Duration) StoreService {
	if uploadTimeout <= 0 {
		uploadTimeout = defaultUploadTimeout
	}
	return &storeService{
		storeRepo:     storeRepo,
		profileRepo:   profileRepo,
		cacheSvc:      cacheSvc,
		uploader:      uploader,
		profileTTL:    profileTTL,
		uploadTimeout: uploadTimeout,
	}
}

// CheckAndCreate creates a store for ownerID if the caller is ownerID and the
// owner's plan has a free slot. Every check that can reject the request runs
// before the logo is uploaded, and the slot stays reserved until the store row
// is written, so concurrent creates cannot overshoot the plan limit.
func (s *storeService) CheckAndCreate(ctx context.Context, ownerID string, attrs models.StoreAttributes, logo *Upload) (uuid.UUID, error) {
	callerID, ok := common.GetUserIDFromContext(ctx)
	if !ok || callerID != ownerID {
		return uuid.Nil, common.ErrUnauthorized
	}
	if err := validation.Struct(attrs); err != nil {
		return uuid.Nil, err
	}

	profile, err := s.loadProfile(ctx, ownerID)
	if err != nil {
		return uuid.Nil, err
	}
	plan := s.resolvePlan(ctx, profile)
	limit := plan.StoreLimit()

	var slot repositories.SlotReservation
	err = withRemoteRetry(ctx, "store.reserve", func(ctx context.Context) error {
		var err error
		slot, err = s.storeRepo.ReserveSlot(ctx, ownerID, limit)
		return err
	})
	if errors.Is(err, repositories.ErrNoCapacity) {
		metrics.RecordQuotaRejection(plan.String())
		return uuid.Nil, &common.QuotaExceededError{Limit: limit, Plan: plan.String()}
	}
	if err != nil {
		return uuid.Nil, err
	}

	store := &models.Store{
		ID:                 uuid.New(),
		OwnerID:            ownerID,
		Name:               strings.TrimSpace(attrs.Name),
		Description:        strings.TrimSpace(attrs.Description),
		Category:           attrs.Category,
		IsActive:           true,
		VerificationStatus: models.VerificationPending,
	}

	var objectName string
	if logo != nil {
		if err := checkUpload(plan, logo); err != nil {
			s.release(ctx, slot)
			return uuid.Nil, err
		}
		objectName = logoObjectName(store, logo)
		url, err := s.upload(ctx, objectName, logo)
		if err != nil {
			s.release(ctx, slot)
			return uuid.Nil, fmt.Errorf("%w: logo upload: %v", common.ErrRemoteUnavailable, err)
		}
		store.LogoURL = &url
	}

	if err := slot.Commit(ctx, store); err != nil {
		if objectName != "" {
			s.removeObject(ctx, objectName)
		}
		if isTransient(err) {
			return uuid.Nil, fmt.Errorf("%w: store.create: %v", common.ErrRemoteUnavailable, err)
		}
		return uuid.Nil, err
	}

	metrics.RecordStoreCreated(plan.String())
	logger.FromContext(ctx).Info("store created",
		zap.String("store_id", store.ID.String()),
		zap.String("owner_id", ownerID),
		zap.String("plan", plan.String()))
	return store.ID, nil
}

// Update applies a partial update to a store owned by the caller. A
// replacement logo is checked against the plan before it is uploaded.
func (s *storeService) Update(ctx context.Context, storeID uuid.UUID, updates models.StoreUpdate, logo *Upload) (*models.Store, error) {
	store, err := s.ownedStore(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(updates); err != nil {
		return nil, err
	}

	if updates.Name != nil {
		store.Name = strings.TrimSpace(*updates.Name)
	}
	if updates.Description != nil {
		store.Description = strings.TrimSpace(*updates.Description)
	}
	if updates.Category != nil {
		store.Category = *updates.Category
	}
	if updates.IsActive != nil {
		store.IsActive = *updates.IsActive
	}

	var objectName string
	if logo != nil {
		profile, err := s.loadProfile(ctx, store.OwnerID)
		if err != nil {
			return nil, err
		}
		plan := s.resolvePlan(ctx, profile)
		if err := checkUpload(plan, logo); err != nil {
			return nil, err
		}
		objectName = logoObjectName(store, logo)
		url, err := s.upload(ctx, objectName, logo)
		if err != nil {
			return nil, fmt.Errorf("%w: logo upload: %v", common.ErrRemoteUnavailable, err)
		}
		store.LogoURL = &url
	}

	err = withRemoteRetry(ctx, "store.update", func(ctx context.Context) error {
		return s.storeRepo.Update(ctx, store)
	})
	if err != nil {
		if objectName != "" {
			s.removeObject(ctx, objectName)
		}
		return nil, err
	}
	return store, nil
}

// SoftDelete marks a store owned by the caller deleted and frees its slot.
func (s *storeService) SoftDelete(ctx context.Context, storeID uuid.UUID) error {
	store, err := s.ownedStore(ctx, storeID)
	if err != nil {
		return err
	}

	err = withRemoteRetry(ctx, "store.delete", func(ctx context.Context) error {
		return s.storeRepo.SoftDelete(ctx, store.OwnerID, store.ID)
	})
	if err != nil {
		return err
	}

	logger.FromContext(ctx).Info("store deleted", zap.String("store_id", storeID.String()), zap.String("owner_id", store.OwnerID))
	return nil
}

func (s *storeService) List(ctx context.Context, ownerID string) ([]*models.Store, error) {
	callerID, ok := common.GetUserIDFromContext(ctx)
	if !ok || callerID != ownerID {
		return nil, common.ErrUnauthorized
	}

	var stores []*models.Store
	err := withRemoteRetry(ctx, "store.list", func(ctx context.Context) error {
		var err error
		stores, err = s.storeRepo.ListByOwner(ctx, ownerID)
		return err
	})
	return stores, err
}

// Get returns a store owned by the caller; anyone else's store is reported as missing.
func (s *storeService) Get(ctx context.Context, storeID uuid.UUID) (*models.Store, error) {
	store, err := s.ownedStore(ctx, storeID)
	if errors.Is(err, common.ErrUnauthorized) {
		if _, ok := common.GetUserIDFromContext(ctx); ok {
			return nil, common.ErrNotFound
		}
	}
	return store, err
}

// Usage reports the caller's plan, limit and current store count.
func (s *storeService) Usage(ctx context.Context) (*models.QuotaUsage, error) {
	callerID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return nil, common.ErrUnauthorized
	}

	profile, err := s.loadProfile(ctx, callerID)
	if err != nil {
		return nil, err
	}
	plan := s.resolvePlan(ctx, profile)

	var active int
	err = withRemoteRetry(ctx, "store.count", func(ctx context.Context) error {
		var err error
		active, err = s.storeRepo.CountActive(ctx, callerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &models.QuotaUsage{
		OwnerID: callerID,
		Plan:    plan,
		Limit:   plan.StoreLimit(),
		Active:  active,
	}, nil
}

// ChangePlan moves an owner to another plan and drops the cached profile so
// the new limit applies to the owner's next request. Stores above a lowered
// limit stay active and are reported by the quota audit.
func (s *storeService) ChangePlan(ctx context.Context, ownerID string, plan models.Plan) error {
	err := withRemoteRetry(ctx, "profile.update_plan", func(ctx context.Context) error {
		return s.profileRepo.UpdatePlan(ctx, ownerID, plan)
	})
	if err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	if err := s.cacheSvc.DeleteProfile(ctx, ownerID); err != nil {
		log.Warn("failed to drop cached profile, old plan applies until it expires",
			zap.String("user_id", ownerID), zap.Duration("ttl", s.profileTTL), zap.Error(err))
	}

	log.Info("plan changed", zap.String("owner_id", ownerID), zap.String("plan", plan.String()))
	return nil
}

// ownedStore loads a non-deleted store and checks that the caller owns it.
func (s *storeService) ownedStore(ctx context.Context, storeID uuid.UUID) (*models.Store, error) {
	callerID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return nil, common.ErrUnauthorized
	}

	var store *models.Store
	err := withRemoteRetry(ctx, "store.get", func(ctx context.Context) error {
		var err error
		store, err = s.storeRepo.GetByID(ctx, storeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if store.VerificationStatus == models.VerificationDeleted {
		return nil, common.ErrNotFound
	}
	if store.OwnerID != callerID {
		return nil, common.ErrUnauthorized
	}
	return store, nil
}

// loadProfile reads the profile through the cache. Cache failures are logged
// and fall through to the database.
func (s *storeService) loadProfile(ctx context.Context, userID string) (*models.Profile, error) {
	log := logger.FromContext(ctx)

	cached, err := s.cacheSvc.GetProfile(ctx, userID)
	if err != nil {
		log.Warn("profile cache read failed", zap.String("user_id", userID), zap.Error(err))
	}
	if cached != nil {
		return cached, nil
	}

	var profile *models.Profile
	err = withRemoteRetry(ctx, "profile.get", func(ctx context.Context) error {
		var err error
		profile, err = s.profileRepo.GetByID(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.cacheSvc.SetProfile(ctx, profile, s.profileTTL); err != nil {
		log.Warn("profile cache write failed", zap.String("user_id", userID), zap.Error(err))
	}
	return profile, nil
}

func (s *storeService) resolvePlan(ctx context.Context, profile *models.Profile) models.Plan {
	plan, known := profile.Plan()
	if !known {
		logger.FromContext(ctx).Warn("unknown plan on profile, applying free tier limits",
			zap.String("user_id", profile.ID),
			zap.String("plan", profile.PlanName))
	}
	return plan
}

func (s *storeService) release(ctx context.Context, slot repositories.SlotReservation) {
	if err := slot.Release(context.WithoutCancel(ctx)); err != nil {
		logger.FromContext(ctx).Warn("failed to release store slot", zap.Error(err))
	}
}

func (s *storeService) upload(ctx context.Context, objectName string, u *Upload) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()
	return s.uploader.Upload(ctx, objectName, u.Reader, u.Size, u.ContentType)
}

func (s *storeService) removeObject(ctx context.Context, objectName string) {
	if err := s.uploader.Delete(context.WithoutCancel(ctx), objectName); err != nil {
		logger.FromContext(ctx).Error("failed to remove orphaned logo", zap.String("object", objectName), zap.Error(err))
	}
}

// checkUpload enforces the plan's upload policy without reading the body.
func checkUpload(plan models.Plan, u *Upload) error {
	policy := plan.UploadPolicy()

	if u.Size <= 0 {
		metrics.RecordUploadRejection(plan.String())
		return &common.UploadRejectedError{Reason: "file is empty"}
	}
	if !slices.Contains(policy.AllowedContentTypes, u.ContentType) {
		metrics.RecordUploadRejection(plan.String())
		return &common.UploadRejectedError{Reason: fmt.Sprintf("%s files are not allowed on the %s plan", u.ContentType, plan)}
	}
	if u.Size > policy.MaxBytes {
		metrics.RecordUploadRejection(plan.String())
		return &common.UploadRejectedError{Reason: fmt.Sprintf("file is %d bytes, the %s plan allows at most %d", u.Size, plan, policy.MaxBytes)}
	}
	if strings.HasPrefix(u.ContentType, "video/") {
		if u.Duration <= 0 {
			metrics.RecordUploadRejection(plan.String())
			return &common.UploadRejectedError{Reason: "video duration is required"}
		}
		if u.Duration > policy.MaxDuration {
			metrics.RecordUploadRejection(plan.String())
			return &common.UploadRejectedError{Reason: fmt.Sprintf("video is %s long, the %s plan allows at most %s", u.Duration, plan, policy.MaxDuration)}
		}
	}
	return nil
}

var logoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"video/mp4":  ".mp4",
}

func logoObjectName(store *models.Store, u *Upload) string {
	return fmt.Sprintf("stores/%s/%s/logo-%d%s", store.OwnerID, store.ID, time.Now().UnixNano(), logoExtensions[u.ContentType])
}
