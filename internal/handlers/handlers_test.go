package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"marketplace/internal/caching"
	"marketplace/internal/common"
	"marketplace/internal/models"
	"marketplace/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	headerTestUser = "X-Test-User"
	headerTestRole = "X-Test-Role"
)

// testAuth stands in for token verification: the principal comes from test headers.
func testAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if userID := c.Request().Header.Get(headerTestUser); userID != "" {
				ctx = common.WithUserID(ctx, userID)
				ctx = common.WithRole(ctx, c.Request().Header.Get(headerTestRole))
			}
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func as(req *http.Request, userID, role string) *http.Request {
	req.Header.Set(headerTestUser, userID)
	req.Header.Set(headerTestRole, role)
	return req
}

func do(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target string, body any) *http.Request {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, logo []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if logo != nil {
		part, err := w.CreateFormFile("logo", "logo.png")
		require.NoError(t, err)
		_, err = part.Write(logo)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) common.ErrorResponse {
	t.Helper()
	var resp common.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

type MockStoreService struct {
	mock.Mock
}

func (m *MockStoreService) CheckAndCreate(ctx context.Context, ownerID string, attrs models.StoreAttributes, logo *services.Upload) (uuid.UUID, error) {
	args := m.Called(ctx, ownerID, attrs, logo)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockStoreService) Update(ctx context.Context, storeID uuid.UUID, updates models.StoreUpdate, logo *services.Upload) (*models.Store, error) {
	args := m.Called(ctx, storeID, updates, logo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Store), args.Error(1)
}

func (m *MockStoreService) SoftDelete(ctx context.Context, storeID uuid.UUID) error {
	args := m.Called(ctx, storeID)
	return args.Error(0)
}

func (m *MockStoreService) List(ctx context.Context, ownerID string) ([]*models.Store, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Store), args.Error(1)
}

func (m *MockStoreService) Get(ctx context.Context, storeID uuid.UUID) (*models.Store, error) {
	args := m.Called(ctx, storeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Store), args.Error(1)
}

func (m *MockStoreService) Usage(ctx context.Context) (*models.QuotaUsage, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QuotaUsage), args.Error(1)
}

func (m *MockStoreService) ChangePlan(ctx context.Context, ownerID string, plan models.Plan) error {
	args := m.Called(ctx, ownerID, plan)
	return args.Error(0)
}

// fakeApplications keeps drafts in memory for wizard handler tests.
type fakeApplications struct {
	mu       sync.Mutex
	apps     map[uuid.UUID]*models.Application
	keys     map[uuid.UUID]uuid.UUID
	patchErr error
}

func newFakeApplications() *fakeApplications {
	return &fakeApplications{apps: map[uuid.UUID]*models.Application{}, keys: map[uuid.UUID]uuid.UUID{}}
}

func (f *fakeApplications) Upsert(_ context.Context, ownerID string, key uuid.UUID) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.keys[key]; ok {
		return id, nil
	}
	id := uuid.New()
	f.keys[key] = id
	f.apps[id] = &models.Application{ID: id, OwnerID: ownerID, Sections: models.Sections{}, Status: models.ApplicationDraft}
	return id, nil
}

func (f *fakeApplications) Patch(_ context.Context, ownerID string, id uuid.UUID, sections models.Sections) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.patchErr != nil {
		return 0, f.patchErr
	}
	app, ok := f.apps[id]
	if !ok || app.OwnerID != ownerID {
		return 0, common.ErrNotFound
	}
	if app.Status != models.ApplicationDraft {
		return 0, common.ErrDraftSubmitted
	}
	for k, v := range sections {
		app.Sections[k] = v
	}
	app.Version++
	return app.Version, nil
}

func (f *fakeApplications) Submit(ctx context.Context, ownerID string, id uuid.UUID, sections models.Sections) (time.Time, error) {
	if _, err := f.Patch(ctx, ownerID, id, sections); err != nil {
		return time.Time{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	f.apps[id].Status = models.ApplicationPending
	f.apps[id].AppliedAt = &now
	return now, nil
}

func (f *fakeApplications) GetByID(_ context.Context, id uuid.UUID) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := *app
	out.Sections = app.Sections.Clone()
	return &out, nil
}

func (f *fakeApplications) UpdateStatus(_ context.Context, id uuid.UUID, from, to models.ApplicationStatus, reason *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok || app.Status != from {
		return common.ErrInvalidTransition
	}
	app.Status = to
	app.RejectionReason = reason
	return nil
}

// memoryCache stores wizard states the way the redis cache does, as JSON.
type memoryCache struct {
	mu     sync.Mutex
	states map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{states: map[string][]byte{}}
}

func (m *memoryCache) GetWizardState(_ context.Context, userID, sessionID string) (*models.WizardState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.states[userID+":"+sessionID]
	if !ok {
		return nil, nil
	}
	state := models.DecodeWizardState(raw)
	return &state, nil
}

func (m *memoryCache) SetWizardState(_ context.Context, userID, sessionID string, state *models.WizardState, _ time.Duration) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[userID+":"+sessionID] = raw
	return nil
}

func (m *memoryCache) DeleteWizardState(_ context.Context, userID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, userID+":"+sessionID)
	return nil
}

func (m *memoryCache) GetProfile(context.Context, string) (*models.Profile, error) { return nil, nil }

func (m *memoryCache) SetProfile(context.Context, *models.Profile, time.Duration) error { return nil }

func (m *memoryCache) DeleteProfile(context.Context, string) error { return nil }

func (m *memoryCache) Ping(context.Context) error { return nil }

type noopLocker struct{}

func (noopLocker) Lock(context.Context, uuid.UUID) (caching.Unlock, error) {
	return func(context.Context) error { return nil }, nil
}
