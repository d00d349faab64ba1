package services

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"marketplace/internal/common"
	"marketplace/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var (
	validBusiness = json.RawMessage(`{"businessName":"Acme Goods","category":"home","businessType":"company"}`)
	validContact  = json.RawMessage(`{"fullName":"Ada Seller","email":"ada@example.com","phone":"+14155550123","addressLine":"1 Market St","city":"San Francisco","country":"US"}`)
	validProduct  = json.RawMessage(`{"productName":"Ceramic Mugs","productCategory":"home","priceRange":"mid","estimatedSkus":40}`)
)

type WizardServiceTestSuite struct {
	suite.Suite
	apps    *memoryApplications
	cache   *MockCacheService
	locker  *localLocker
	service WizardService
	userID  string
	ctx     context.Context
}

func (suite *WizardServiceTestSuite) SetupTest() {
	suite.apps = newMemoryApplications()
	suite.cache = new(MockCacheService)
	suite.locker = newLocalLocker()
	suite.service = NewWizardService(suite.apps, suite.cache, suite.locker, time.Hour)
	suite.userID = "user_seller"
	suite.ctx = common.WithUserID(context.Background(), suite.userID)
}

func (suite *WizardServiceTestSuite) TearDownTest() {
	suite.cache.AssertExpectations(suite.T())
}

func TestWizardServiceTestSuite(t *testing.T) {
	suite.Run(t, new(WizardServiceTestSuite))
}

func (suite *WizardServiceTestSuite) newSession() *WizardSession {
	suite.cache.On("GetWizardState", suite.ctx, suite.userID, "tab-1").Return(nil, nil).Once()
	session, err := suite.service.Load(suite.ctx, suite.userID, "tab-1")
	require.NoError(suite.T(), err)
	return session
}

func (suite *WizardServiceTestSuite) TestLoad_StartsFreshOnMiss() {
	session := suite.newSession()
	state := session.State()

	assert.Nil(suite.T(), state.DocumentID)
	assert.Equal(suite.T(), models.WizardFirstStep, state.Step)
	assert.Empty(suite.T(), state.Sections)
	assert.NotEqual(suite.T(), uuid.Nil, state.IdempotencyKey)
}

func (suite *WizardServiceTestSuite) TestLoad_ResumesCachedState() {
	id := uuid.New()
	cached := models.NewWizardState()
	cached.DocumentID = &id
	cached.Step = 3
	suite.cache.On("GetWizardState", suite.ctx, suite.userID, "tab-1").Return(&cached, nil).Once()

	session, err := suite.service.Load(suite.ctx, suite.userID, "tab-1")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 3, session.State().Step)
	assert.Equal(suite.T(), id, *session.State().DocumentID)
}

func (suite *WizardServiceTestSuite) TestLoad_CacheFailureStartsFresh() {
	suite.cache.On("GetWizardState", suite.ctx, suite.userID, "tab-1").Return(nil, errors.New("redis down")).Once()

	session, err := suite.service.Load(suite.ctx, suite.userID, "tab-1")
	require.NoError(suite.T(), err)
	assert.Nil(suite.T(), session.State().DocumentID)
}

func (suite *WizardServiceTestSuite) TestLoad_RequiresUser() {
	_, err := suite.service.Load(suite.ctx, "", "tab-1")
	assert.ErrorIs(suite.T(), err, common.ErrUnauthorized)
}

func (suite *WizardServiceTestSuite) TestSaveAndDiscard() {
	session := suite.newSession()
	suite.cache.On("SetWizardState", suite.ctx, suite.userID, "tab-1", mock.AnythingOfType("*models.WizardState"), time.Hour).Return(nil).Once()
	suite.cache.On("DeleteWizardState", suite.ctx, suite.userID, "tab-1").Return(nil).Once()

	assert.NoError(suite.T(), suite.service.Save(suite.ctx, session))
	assert.NoError(suite.T(), suite.service.Discard(suite.ctx, suite.userID, "tab-1"))
}

func (suite *WizardServiceTestSuite) TestCreateRemoteDraft_Idempotent() {
	session := suite.newSession()

	require.NoError(suite.T(), session.CreateRemoteDraft(suite.ctx))
	first := *session.State().DocumentID
	require.NoError(suite.T(), session.CreateRemoteDraft(suite.ctx))
	assert.Equal(suite.T(), first, *session.State().DocumentID)

	// a replay that lost the first response carries the same key
	replayState := session.State()
	replayState.DocumentID = nil
	suite.cache.On("GetWizardState", suite.ctx, suite.userID, "tab-2").Return(&replayState, nil).Once()
	replay, err := suite.service.Load(suite.ctx, suite.userID, "tab-2")
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), replay.CreateRemoteDraft(suite.ctx))

	assert.Equal(suite.T(), first, *replay.State().DocumentID)
	assert.Len(suite.T(), suite.apps.byID, 1)
}

func (suite *WizardServiceTestSuite) TestSaveDraft_RequiresDocument() {
	session := suite.newSession()
	require.NoError(suite.T(), session.SetSection(models.SectionBusiness, validBusiness))

	err := session.SaveDraft(suite.ctx)
	assert.ErrorIs(suite.T(), err, common.ErrDraftNotInitialized)
	assert.Zero(suite.T(), suite.apps.patches)
	assert.Zero(suite.T(), suite.locker.calls)
}

func (suite *WizardServiceTestSuite) TestDraftRoundTrip() {
	session := suite.newSession()
	require.NoError(suite.T(), session.CreateRemoteDraft(suite.ctx))

	business := json.RawMessage(`{"businessName":"Acme Goods","category":"home","businessType":"company","description":"Handmade homeware"}`)
	require.NoError(suite.T(), session.SetSection(models.SectionBusiness, business))
	require.NoError(suite.T(), session.SaveDraft(suite.ctx))
	assert.False(suite.T(), session.Loading())

	app, err := suite.service.Fetch(suite.ctx, suite.userID, *session.State().DocumentID)
	require.NoError(suite.T(), err)
	assert.JSONEq(suite.T(), string(business), string(app.Sections[models.SectionBusiness]))
	assert.Equal(suite.T(), models.ApplicationDraft, app.Status)
}

func (suite *WizardServiceTestSuite) TestStepTwoSaveLeavesLaterSectionsAbsent() {
	session := suite.newSession()
	require.NoError(suite.T(), session.CreateRemoteDraft(suite.ctx))
	require.NoError(suite.T(), session.SetSection(models.SectionBusiness, validBusiness))

	require.NoError(suite.T(), session.SetStep(2))
	require.NoError(suite.T(), session.SaveDraft(suite.ctx))

	app, err := suite.service.Fetch(suite.ctx, suite.userID, *session.State().DocumentID)
	require.NoError(suite.T(), err)
	assert.Contains(suite.T(), app.Sections, models.SectionBusiness)
	assert.NotContains(suite.T(), app.Sections, models.SectionContact)
	assert.NotContains(suite.T(), app.Sections, models.SectionProduct)

	raw, err := json.Marshal(app.Sections)
	require.NoError(suite.T(), err)
	assert.NotContains(suite.T(), string(raw), "null")
}

func (suite *WizardServiceTestSuite) TestSetSection_ReplacesWholesale() {
	session := suite.newSession()
	require.NoError(suite.T(), session.SetSection(models.SectionBusiness, json.RawMessage(`{"businessName":"Old","description":"kept?"}`)))
	require.NoError(suite.T(), session.SetSection(models.SectionBusiness, json.RawMessage(`{"businessName":"New"}`)))

	assert.JSONEq(suite.T(), `{"businessName":"New"}`, string(session.State().Sections[models.SectionBusiness]))
}

func (suite *WizardServiceTestSuite) TestSetStep_Bounds() {
	session := suite.newSession()

	assert.NoError(suite.T(), session.SetStep(4))
	assert.ErrorIs(suite.T(), session.SetStep(0), common.ErrStepOutOfRange)
	assert.ErrorIs(suite.T(), session.SetStep(5), common.ErrStepOutOfRange)
	assert.Equal(suite.T(), 4, session.State().Step)
}

func (suite *WizardServiceTestSuite) TestNext_ValidatesSavesAndAdvances() {
	session := suite.newSession()
	require.NoError(suite.T(), session.CreateRemoteDraft(suite.ctx))

	require.NoError(suite.T(), session.Next(suite.ctx, validBusiness))
	assert.Equal(suite.T(), 2, session.State().Step)
	assert.Equal(suite.T(), 1, suite.apps.patches)

	err := session.Next(suite.ctx, json.RawMessage(`{"fullName":"Ada","email":"not-an-email","phone":"555","addressLine":"1 Market St","city":"SF","country":"US"}`))
	var verr *common.ValidationError
	require.ErrorAs(suite.T(), err, &verr)
	assert.Contains(suite.T(), verr.Fields, "email")
	assert.Contains(suite.T(), verr.Fields, "phone")
	assert.NotContains(suite.T(), verr.Fields, "fullName")
	assert.Equal(suite.T(), 2, session.State().Step)
	assert.Equal(suite.T(), 1, suite.apps.patches)
}

func (suite *WizardServiceTestSuite) TestNext_WithoutDocumentDoesNotAdvance() {
	session := suite.newSession()

	err := session.Next(suite.ctx, validBusiness)
	assert.ErrorIs(suite.T(), err, common.ErrDraftNotInitialized)
	assert.Equal(suite.T(), 1, session.State().Step)
}

func (suite *WizardServiceTestSuite) TestNext_OnReviewStep() {
	session := suite.newSession()
	require.NoError(suite.T(), session.SetStep(4))

	assert.ErrorIs(suite.T(), session.Next(suite.ctx, nil), common.ErrStepOutOfRange)
}

func (suite *WizardServiceTestSuite) TestBack_StopsAtFirstStep() {
	session := suite.newSession()
	require.NoError(suite.T(), session.SetStep(2))

	require.NoError(suite.T(), session.Back())
	require.NoError(suite.T(), session.Back())
	assert.Equal(suite.T(), 1, session.State().Step)
}

func (suite *WizardServiceTestSuite) fillAll(session *WizardSession) {
	require.NoError(suite.T(), session.CreateRemoteDraft(suite.ctx))
	require.NoError(suite.T(), session.Next(suite.ctx, validBusiness))
	require.NoError(suite.T(), session.Next(suite.ctx, validContact))
	require.NoError(suite.T(), session.Next(suite.ctx, validProduct))
	require.Equal(suite.T(), 4, session.State().Step)
}

func (suite *WizardServiceTestSuite) TestSubmit_TwiceKeepsAppliedAt() {
	session := suite.newSession()
	suite.fillAll(session)

	require.NoError(suite.T(), session.SubmitApplication(suite.ctx))
	first := session.State()
	require.True(suite.T(), first.Submitted)
	require.NotNil(suite.T(), first.AppliedAt)

	app, err := suite.service.Fetch(suite.ctx, suite.userID, *first.DocumentID)
	require.NoError(suite.T(), err)
	recorded := *app.AppliedAt
	version := app.Version

	require.NoError(suite.T(), session.SubmitApplication(suite.ctx))

	app, err = suite.service.Fetch(suite.ctx, suite.userID, *first.DocumentID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), recorded, *app.AppliedAt)
	assert.Equal(suite.T(), version, app.Version)
	assert.Equal(suite.T(), *first.AppliedAt, *session.State().AppliedAt)
	assert.Equal(suite.T(), models.ApplicationPending, app.Status)
}

func (suite *WizardServiceTestSuite) TestSubmit_FromSecondSessionIsNoOp() {
	session := suite.newSession()
	suite.fillAll(session)
	require.NoError(suite.T(), session.SubmitApplication(suite.ctx))
	appliedAt := *session.State().AppliedAt

	// a second tab still holding the pre-submit state
	stale := session.State()
	stale.Submitted = false
	stale.AppliedAt = nil
	suite.cache.On("GetWizardState", suite.ctx, suite.userID, "tab-2").Return(&stale, nil).Once()
	other, err := suite.service.Load(suite.ctx, suite.userID, "tab-2")
	require.NoError(suite.T(), err)

	require.NoError(suite.T(), other.SubmitApplication(suite.ctx))
	assert.True(suite.T(), other.State().Submitted)
	assert.Equal(suite.T(), appliedAt, *other.State().AppliedAt)
}

func (suite *WizardServiceTestSuite) TestSubmit_RequiresEverySection() {
	session := suite.newSession()
	require.NoError(suite.T(), session.CreateRemoteDraft(suite.ctx))
	require.NoError(suite.T(), session.Next(suite.ctx, validBusiness))

	err := session.SubmitApplication(suite.ctx)
	var verr *common.ValidationError
	require.ErrorAs(suite.T(), err, &verr)
	assert.Equal(suite.T(), map[string]string{"contact": "is required", "product": "is required"}, verr.Fields)
	assert.False(suite.T(), session.State().Submitted)
}

func (suite *WizardServiceTestSuite) TestSubmit_RequiresDocument() {
	session := suite.newSession()
	assert.ErrorIs(suite.T(), session.SubmitApplication(suite.ctx), common.ErrDraftNotInitialized)
}

func (suite *WizardServiceTestSuite) TestSubmittedDraftIsImmutable() {
	session := suite.newSession()
	suite.fillAll(session)
	require.NoError(suite.T(), session.SubmitApplication(suite.ctx))

	assert.ErrorIs(suite.T(), session.SaveDraft(suite.ctx), common.ErrDraftSubmitted)
	assert.ErrorIs(suite.T(), session.SetSection(models.SectionBusiness, validBusiness), common.ErrDraftSubmitted)
	assert.ErrorIs(suite.T(), session.SetStep(1), common.ErrDraftSubmitted)
	assert.ErrorIs(suite.T(), session.Back(), common.ErrDraftSubmitted)
	assert.Equal(suite.T(), 4, session.State().Step)
}

func (suite *WizardServiceTestSuite) TestReset() {
	session := suite.newSession()
	require.NoError(suite.T(), session.CreateRemoteDraft(suite.ctx))
	require.NoError(suite.T(), session.Next(suite.ctx, validBusiness))
	key := session.State().IdempotencyKey

	session.Reset()
	state := session.State()
	assert.Nil(suite.T(), state.DocumentID)
	assert.Equal(suite.T(), 1, state.Step)
	assert.Empty(suite.T(), state.Sections)
	assert.NotEqual(suite.T(), key, state.IdempotencyKey)
}

func (suite *WizardServiceTestSuite) TestFetch_OtherOwnerIsNotFound() {
	session := suite.newSession()
	require.NoError(suite.T(), session.CreateRemoteDraft(suite.ctx))

	_, err := suite.service.Fetch(suite.ctx, "user_other", *session.State().DocumentID)
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
}

func (suite *WizardServiceTestSuite) TestReview() {
	session := suite.newSession()
	suite.fillAll(session)
	id := *session.State().DocumentID

	_, err := suite.service.Review(suite.ctx, id, models.ApplicationApproved, nil)
	assert.ErrorIs(suite.T(), err, common.ErrInvalidTransition, "drafts cannot be reviewed")

	require.NoError(suite.T(), session.SubmitApplication(suite.ctx))

	reason := "missing registration number"
	app, err := suite.service.Review(suite.ctx, id, models.ApplicationRejected, &reason)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ApplicationRejected, app.Status)
	assert.Equal(suite.T(), reason, *app.RejectionReason)

	_, err = suite.service.Review(suite.ctx, id, models.ApplicationApproved, nil)
	assert.ErrorIs(suite.T(), err, common.ErrInvalidTransition)

	_, err = suite.service.Review(suite.ctx, id, models.ApplicationDraft, nil)
	assert.ErrorIs(suite.T(), err, common.ErrInvalidTransition)
}

func transportError() error {
	return &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}
}

func TestSaveDraft_RetriesTransientFailureOnce(t *testing.T) {
	repo := new(MockApplicationRepository)
	id := uuid.New()
	ctx := context.Background()
	session := &WizardSession{
		userID:  "user_1",
		state:   models.WizardState{DocumentID: &id, Step: 1, Sections: models.Sections{}},
		appRepo: repo,
		locker:  newLocalLocker(),
	}

	repo.On("Patch", mock.Anything, "user_1", id, models.Sections{}).Return(int64(0), transportError()).Once()
	repo.On("Patch", mock.Anything, "user_1", id, models.Sections{}).Return(int64(1), nil).Once()

	assert.NoError(t, session.SaveDraft(ctx))
	repo.AssertNumberOfCalls(t, "Patch", 2)
}

func TestSaveDraft_LoadingWhileInFlight(t *testing.T) {
	repo := new(MockApplicationRepository)
	id := uuid.New()
	session := &WizardSession{
		userID:  "user_1",
		state:   models.WizardState{DocumentID: &id, Step: 1, Sections: models.Sections{}},
		appRepo: repo,
		locker:  newLocalLocker(),
	}

	var duringCall bool
	repo.On("Patch", mock.Anything, "user_1", id, models.Sections{}).
		Run(func(mock.Arguments) { duringCall = session.Loading() }).
		Return(int64(1), nil).Once()

	require.NoError(t, session.SaveDraft(context.Background()))
	assert.True(t, duringCall)
	assert.False(t, session.Loading())
}

func TestSaveDraft_SurfacesRemoteUnavailableAfterOneRetry(t *testing.T) {
	repo := new(MockApplicationRepository)
	id := uuid.New()
	session := &WizardSession{
		userID:  "user_1",
		state:   models.WizardState{DocumentID: &id, Step: 1, Sections: models.Sections{}},
		appRepo: repo,
		locker:  newLocalLocker(),
	}

	repo.On("Patch", mock.Anything, "user_1", id, models.Sections{}).Return(int64(0), transportError())

	err := session.SaveDraft(context.Background())
	assert.ErrorIs(t, err, common.ErrRemoteUnavailable)
	repo.AssertNumberOfCalls(t, "Patch", 2)
	assert.False(t, session.Loading())
}

func TestSaveDraft_DomainErrorsAreNotRetried(t *testing.T) {
	repo := new(MockApplicationRepository)
	id := uuid.New()
	session := &WizardSession{
		userID:  "user_1",
		state:   models.WizardState{DocumentID: &id, Step: 1, Sections: models.Sections{}},
		appRepo: repo,
		locker:  newLocalLocker(),
	}

	repo.On("Patch", mock.Anything, "user_1", id, models.Sections{}).Return(int64(0), common.ErrNotFound)

	assert.ErrorIs(t, session.SaveDraft(context.Background()), common.ErrNotFound)
	repo.AssertNumberOfCalls(t, "Patch", 1)
}
