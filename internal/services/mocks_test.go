package services

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"marketplace/internal/caching"
	"marketplace/internal/common"
	"marketplace/internal/models"
	"marketplace/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockApplicationRepository struct {
	mock.Mock
}

func (m *MockApplicationRepository) Upsert(ctx context.Context, ownerID string, key uuid.UUID) (uuid.UUID, error) {
	args := m.Called(ctx, ownerID, key)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockApplicationRepository) Patch(ctx context.Context, ownerID string, id uuid.UUID, sections models.Sections) (int64, error) {
	args := m.Called(ctx, ownerID, id, sections)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockApplicationRepository) Submit(ctx context.Context, ownerID string, id uuid.UUID, sections models.Sections) (time.Time, error) {
	args := m.Called(ctx, ownerID, id, sections)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockApplicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Application), args.Error(1)
}

func (m *MockApplicationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.ApplicationStatus, reason *string) error {
	args := m.Called(ctx, id, from, to, reason)
	return args.Error(0)
}

type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileRepository) UpdatePlan(ctx context.Context, id string, plan models.Plan) error {
	args := m.Called(ctx, id, plan)
	return args.Error(0)
}

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetWizardState(ctx context.Context, userID, sessionID string) (*models.WizardState, error) {
	args := m.Called(ctx, userID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WizardState), args.Error(1)
}

func (m *MockCacheService) SetWizardState(ctx context.Context, userID, sessionID string, state *models.WizardState, ttl time.Duration) error {
	args := m.Called(ctx, userID, sessionID, state, ttl)
	return args.Error(0)
}

func (m *MockCacheService) DeleteWizardState(ctx context.Context, userID, sessionID string) error {
	args := m.Called(ctx, userID, sessionID)
	return args.Error(0)
}

func (m *MockCacheService) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockCacheService) SetProfile(ctx context.Context, profile *models.Profile, ttl time.Duration) error {
	args := m.Called(ctx, profile, ttl)
	return args.Error(0)
}

func (m *MockCacheService) DeleteProfile(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockCacheService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	args := m.Called(ctx, objectName, reader, size, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockUploader) Delete(ctx context.Context, objectName string) error {
	args := m.Called(ctx, objectName)
	return args.Error(0)
}

func (m *MockUploader) EnsureBucketExists(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUploader) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// localLocker serializes per document id inside the test process.
type localLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
	calls int
}

func newLocalLocker() *localLocker {
	return &localLocker{locks: map[uuid.UUID]*sync.Mutex{}}
}

func (l *localLocker) Lock(ctx context.Context, id uuid.UUID) (caching.Unlock, error) {
	l.mu.Lock()
	lock, ok := l.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[id] = lock
	}
	l.calls++
	l.mu.Unlock()

	lock.Lock()
	return func(context.Context) error {
		lock.Unlock()
		return nil
	}, nil
}

// memoryApplications is an in-memory document store with the same merge and
// state guard semantics as the SQL repository.
type memoryApplications struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*models.Application
	byKey   map[uuid.UUID]uuid.UUID
	patches int
}

func newMemoryApplications() *memoryApplications {
	return &memoryApplications{byID: map[uuid.UUID]*models.Application{}, byKey: map[uuid.UUID]uuid.UUID{}}
}

func (r *memoryApplications) Upsert(_ context.Context, ownerID string, key uuid.UUID) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byKey[key]; ok {
		if r.byID[id].OwnerID != ownerID {
			return uuid.Nil, common.ErrUnauthorized
		}
		return id, nil
	}
	id := uuid.New()
	r.byKey[key] = id
	r.byID[id] = &models.Application{ID: id, OwnerID: ownerID, IdempotencyKey: key, Sections: models.Sections{}, Status: models.ApplicationDraft}
	return id, nil
}

func (r *memoryApplications) Patch(_ context.Context, ownerID string, id uuid.UUID, sections models.Sections) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, err := r.draft(ownerID, id)
	if err != nil {
		return 0, err
	}
	r.merge(app, sections)
	r.patches++
	return app.Version, nil
}

func (r *memoryApplications) Submit(_ context.Context, ownerID string, id uuid.UUID, sections models.Sections) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, err := r.draft(ownerID, id)
	if err != nil {
		return time.Time{}, err
	}
	r.merge(app, sections)
	now := time.Now().UTC()
	app.Status = models.ApplicationPending
	app.AppliedAt = &now
	return now, nil
}

func (r *memoryApplications) GetByID(_ context.Context, id uuid.UUID) (*models.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := *app
	out.Sections = app.Sections.Clone()
	return &out, nil
}

func (r *memoryApplications) UpdateStatus(_ context.Context, id uuid.UUID, from, to models.ApplicationStatus, reason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.byID[id]
	if !ok || app.Status != from {
		return common.ErrInvalidTransition
	}
	app.Status = to
	app.RejectionReason = reason
	return nil
}

func (r *memoryApplications) draft(ownerID string, id uuid.UUID) (*models.Application, error) {
	app, ok := r.byID[id]
	if !ok || app.OwnerID != ownerID {
		return nil, common.ErrNotFound
	}
	if app.Status != models.ApplicationDraft {
		return nil, common.ErrDraftSubmitted
	}
	return app, nil
}

func (r *memoryApplications) merge(app *models.Application, sections models.Sections) {
	for name, data := range sections {
		app.Sections[name] = append(json.RawMessage(nil), data...)
	}
	app.Version++
}

// memoryStores is an in-memory StoreRepository whose slot reservation is
// atomic, like the conditional counter update in SQL.
type memoryStores struct {
	mu     sync.Mutex
	stores map[uuid.UUID]*models.Store
	active map[string]int
	// reserveDelay widens the window between reservation and commit
	reserveDelay time.Duration
	commitErr    error
}

func newMemoryStores() *memoryStores {
	return &memoryStores{stores: map[uuid.UUID]*models.Store{}, active: map[string]int{}}
}

func (r *memoryStores) seed(store *models.Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[store.ID] = store
	if store.VerificationStatus != models.VerificationDeleted {
		r.active[store.OwnerID]++
	}
}

func (r *memoryStores) ReserveSlot(_ context.Context, ownerID string, limit int) (repositories.SlotReservation, error) {
	r.mu.Lock()
	if r.active[ownerID] >= limit {
		r.mu.Unlock()
		return nil, repositories.ErrNoCapacity
	}
	r.active[ownerID]++
	r.mu.Unlock()

	if r.reserveDelay > 0 {
		time.Sleep(r.reserveDelay)
	}
	return &memorySlot{repo: r, ownerID: ownerID}, nil
}

type memorySlot struct {
	repo    *memoryStores
	ownerID string
	done    bool
}

func (s *memorySlot) Commit(_ context.Context, store *models.Store) error {
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()
	s.done = true
	if s.repo.commitErr != nil {
		s.repo.active[s.ownerID]--
		return s.repo.commitErr
	}
	copied := *store
	copied.CreatedAt = time.Now()
	s.repo.stores[store.ID] = &copied
	return nil
}

func (s *memorySlot) Release(context.Context) error {
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()
	if !s.done {
		s.done = true
		s.repo.active[s.ownerID]--
	}
	return nil
}

func (r *memoryStores) GetByID(_ context.Context, id uuid.UUID) (*models.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	store, ok := r.stores[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *store
	return &copied, nil
}

func (r *memoryStores) ListByOwner(_ context.Context, ownerID string) ([]*models.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Store
	for _, store := range r.stores {
		if store.OwnerID == ownerID && store.VerificationStatus != models.VerificationDeleted {
			copied := *store
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memoryStores) CountActive(_ context.Context, ownerID string) (int, error) {
	stores, _ := r.ListByOwner(context.Background(), ownerID)
	return len(stores), nil
}

func (r *memoryStores) Update(_ context.Context, store *models.Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.stores[store.ID]
	if !ok || current.OwnerID != store.OwnerID || current.VerificationStatus == models.VerificationDeleted {
		return common.ErrNotFound
	}
	copied := *store
	r.stores[store.ID] = &copied
	return nil
}

func (r *memoryStores) SoftDelete(_ context.Context, ownerID string, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	store, ok := r.stores[id]
	if !ok || store.OwnerID != ownerID || store.VerificationStatus == models.VerificationDeleted {
		return common.ErrNotFound
	}
	store.IsActive = false
	store.VerificationStatus = models.VerificationDeleted
	r.active[ownerID]--
	return nil
}

func (r *memoryStores) ListQuotaHolders(context.Context) ([]*models.OverQuotaOwner, error) {
	return nil, nil
}

func (r *memoryStores) activeCount(ownerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, store := range r.stores {
		if store.OwnerID == ownerID && store.IsActive {
			n++
		}
	}
	return n
}

// memoryProfiles is a ProfileRepository over a map of profiles.
type memoryProfiles struct {
	mu       sync.Mutex
	profiles map[string]models.Profile
}

func newMemoryProfiles(profiles ...models.Profile) *memoryProfiles {
	r := &memoryProfiles{profiles: map[string]models.Profile{}}
	for _, p := range profiles {
		r.profiles[p.ID] = p
	}
	return r
}

func (r *memoryProfiles) GetByID(_ context.Context, id string) (*models.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &p, nil
}

func (r *memoryProfiles) UpdatePlan(_ context.Context, id string, plan models.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return common.ErrNotFound
	}
	p.PlanName = plan.String()
	r.profiles[id] = p
	return nil
}

// memoryProfileCache keeps profiles until they are deleted; the wizard
// methods fall through to the embedded mock.
type memoryProfileCache struct {
	*MockCacheService
	mu       sync.Mutex
	profiles map[string]models.Profile
}

func newMemoryProfileCache() *memoryProfileCache {
	return &memoryProfileCache{MockCacheService: new(MockCacheService), profiles: map[string]models.Profile{}}
}

func (c *memoryProfileCache) GetProfile(_ context.Context, userID string) (*models.Profile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (c *memoryProfileCache) SetProfile(_ context.Context, profile *models.Profile, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profiles[profile.ID] = *profile
	return nil
}

func (c *memoryProfileCache) DeleteProfile(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.profiles, userID)
	return nil
}

func (c *memoryProfileCache) cached(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.profiles[userID]
	return ok
}
