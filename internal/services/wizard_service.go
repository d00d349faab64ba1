package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
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

// WizardService hands out one WizardSession per user session and persists
// its state between requests.
type WizardService interface {
	Load(ctx context.Context, userID, sessionID string) (*WizardSession, error)
	Save(ctx context.Context, session *WizardSession) error
	Discard(ctx context.Context, userID, sessionID string) error
	Fetch(ctx context.Context, ownerID string, documentID uuid.UUID) (*models.Application, error)
	Review(ctx context.Context, documentID uuid.UUID, decision models.ApplicationStatus, reason *string) (*models.Application, error)
}

type wizardService struct {
	appRepo  repositories.ApplicationRepository
	cacheSvc caching.CacheService
	locker   caching.DraftLocker
	stateTTL time.Duration
}

func NewWizardService(appRepo repositories.ApplicationRepository, cacheSvc caching.CacheService, locker caching.DraftLocker, stateTTL time.Duration) WizardService {
	return &wizardService{
		appRepo:  appRepo,
		cacheSvc: cacheSvc,
		locker:   locker,
		stateTTL: stateTTL,
	}
}

// Load resumes the cached session or starts a fresh one. A cache failure is
// logged and treated as a miss; the remote record stays the source of truth.
func (s *wizardService) Load(ctx context.Context, userID, sessionID string) (*WizardSession, error) {
	if userID == "" {
		return nil, common.ErrUnauthorized
	}

	state, err := s.cacheSvc.GetWizardState(ctx, userID, sessionID)
	if err != nil {
		logger.FromContext(ctx).Warn("wizard state cache read failed", zap.String("session_id", sessionID), zap.Error(err))
		state = nil
	}
	if state == nil {
		initial := models.NewWizardState()
		state = &initial
	}

	return &WizardSession{
		userID:    userID,
		sessionID: sessionID,
		state:     *state,
		appRepo:   s.appRepo,
		locker:    s.locker,
	}, nil
}

func (s *wizardService) Save(ctx context.Context, session *WizardSession) error {
	state := session.State()
	return s.cacheSvc.SetWizardState(ctx, session.userID, session.sessionID, &state, s.stateTTL)
}

func (s *wizardService) Discard(ctx context.Context, userID, sessionID string) error {
	return s.cacheSvc.DeleteWizardState(ctx, userID, sessionID)
}

// Fetch returns the remote record; records owned by someone else are reported as missing.
func (s *wizardService) Fetch(ctx context.Context, ownerID string, documentID uuid.UUID) (*models.Application, error) {
	var app *models.Application
	err := withRemoteRetry(ctx, "application.get", func(ctx context.Context) error {
		var err error
		app, err = s.appRepo.GetByID(ctx, documentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if app.OwnerID != ownerID {
		return nil, common.ErrNotFound
	}
	return app, nil
}

// Review records an approval or rejection. Only pending applications can be reviewed.
func (s *wizardService) Review(ctx context.Context, documentID uuid.UUID, decision models.ApplicationStatus, reason *string) (*models.Application, error) {
	if decision != models.ApplicationApproved && decision != models.ApplicationRejected {
		return nil, common.ErrInvalidTransition
	}
	if decision == models.ApplicationApproved {
		reason = nil
	}

	err := withRemoteRetry(ctx, "application.review", func(ctx context.Context) error {
		return s.appRepo.UpdateStatus(ctx, documentID, models.ApplicationPending, decision, reason)
	})
	if err != nil {
		return nil, err
	}

	var app *models.Application
	err = withRemoteRetry(ctx, "application.get", func(ctx context.Context) error {
		var err error
		app, err = s.appRepo.GetByID(ctx, documentID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("application reviewed",
		zap.String("application_id", documentID.String()),
		zap.String("decision", string(decision)))
	return app, nil
}

// WizardSession is the registration wizard of one user session. It is not
// safe for concurrent use; concurrent requests against the same draft are
// serialized by the DraftLocker around every remote mutation.
type WizardSession struct {
	userID    string
	sessionID string
	state     models.WizardState
	loading   bool

	appRepo repositories.ApplicationRepository
	locker  caching.DraftLocker
}

// State returns a copy of the session state.
func (w *WizardSession) State() models.WizardState {
	state := w.state
	state.Sections = w.state.Sections.Clone()
	if w.state.DocumentID != nil {
		id := *w.state.DocumentID
		state.DocumentID = &id
	}
	return state
}

// Loading reports whether a remote save or submit is in flight. It is an
// in-process flag: it is back to false by the time the call returns.
func (w *WizardSession) Loading() bool {
	return w.loading
}

func (w *WizardSession) SessionID() string {
	return w.sessionID
}

// SetStep moves the wizard to step n.
func (w *WizardSession) SetStep(n int) error {
	if w.state.Submitted {
		return common.ErrDraftSubmitted
	}
	if n < models.WizardFirstStep || n > models.WizardLastStep {
		return common.ErrStepOutOfRange
	}
	w.state.Step = n
	return nil
}

// SetSection replaces the named section wholesale. Nothing is persisted.
func (w *WizardSession) SetSection(name models.SectionName, data json.RawMessage) error {
	if w.state.Submitted {
		return common.ErrDraftSubmitted
	}
	if w.state.Sections == nil {
		w.state.Sections = models.Sections{}
	}
	w.state.Sections[name] = append(json.RawMessage(nil), data...)
	return nil
}

// CreateRemoteDraft makes sure the remote record exists. The create is an
// upsert keyed by the session's idempotency key, so repeating it after a lost
// response or from a second tab yields the same record.
func (w *WizardSession) CreateRemoteDraft(ctx context.Context) error {
	if w.state.DocumentID != nil {
		return nil
	}

	var id uuid.UUID
	err := withRemoteRetry(ctx, "application.create", func(ctx context.Context) error {
		var err error
		id, err = w.appRepo.Upsert(ctx, w.userID, w.state.IdempotencyKey)
		return err
	})
	if err != nil {
		return err
	}

	w.state.DocumentID = &id
	metrics.RecordWizardTransition("create")
	logger.FromContext(ctx).Info("draft created", zap.String("application_id", id.String()))
	return nil
}

// SaveDraft patches every local section onto the remote record.
func (w *WizardSession) SaveDraft(ctx context.Context) error {
	if w.state.DocumentID == nil {
		return common.ErrDraftNotInitialized
	}
	if w.state.Submitted {
		return common.ErrDraftSubmitted
	}

	w.loading = true
	defer func() { w.loading = false }()

	id := *w.state.DocumentID
	sections := w.state.Sections.Clone()
	return w.withLock(ctx, id, func(ctx context.Context) error {
		return withRemoteRetry(ctx, "application.patch", func(ctx context.Context) error {
			_, err := w.appRepo.Patch(ctx, w.userID, id, sections)
			return err
		})
	})
}

// SubmitApplication flushes the draft and moves the record to pending. Once
// submitted, repeating the call changes nothing and keeps the first appliedAt.
func (w *WizardSession) SubmitApplication(ctx context.Context) error {
	if w.state.DocumentID == nil {
		return common.ErrDraftNotInitialized
	}
	if w.state.Submitted {
		return nil
	}
	if err := w.checkComplete(); err != nil {
		return err
	}

	w.loading = true
	defer func() { w.loading = false }()

	id := *w.state.DocumentID
	sections := w.state.Sections.Clone()
	var appliedAt time.Time
	err := w.withLock(ctx, id, func(ctx context.Context) error {
		return withRemoteRetry(ctx, "application.submit", func(ctx context.Context) error {
			var err error
			appliedAt, err = w.appRepo.Submit(ctx, w.userID, id, sections)
			return err
		})
	})

	if errors.Is(err, common.ErrDraftSubmitted) {
		// submitted earlier, possibly from another session
		app, fetchErr := w.fetchOwn(ctx, id)
		if fetchErr != nil {
			return fetchErr
		}
		if app.AppliedAt != nil {
			appliedAt = *app.AppliedAt
		}
		err = nil
	}
	if err != nil {
		return err
	}

	w.state.Step = models.WizardLastStep
	w.state.Submitted = true
	w.state.AppliedAt = &appliedAt
	metrics.RecordWizardTransition("submit")
	logger.FromContext(ctx).Info("application submitted", zap.String("application_id", id.String()))
	return nil
}

// Next validates the current step's section, saves it and advances.
func (w *WizardSession) Next(ctx context.Context, data json.RawMessage) error {
	if w.state.Submitted {
		return common.ErrDraftSubmitted
	}
	name, ok := validation.SectionForStep(w.state.Step)
	if !ok {
		return common.ErrStepOutOfRange
	}

	section, err := validation.ValidateSection(name, data)
	if err != nil {
		return err
	}
	if err := w.SetSection(name, section); err != nil {
		return err
	}
	if err := w.SaveDraft(ctx); err != nil {
		return err
	}

	w.state.Step++
	metrics.RecordWizardTransition("next")
	return nil
}

// Back returns to the previous step; it stays on the first step.
func (w *WizardSession) Back() error {
	if w.state.Submitted {
		return common.ErrDraftSubmitted
	}
	if w.state.Step > models.WizardFirstStep {
		w.state.Step--
		metrics.RecordWizardTransition("back")
	}
	return nil
}

// Reset returns the session to its initial state with a new idempotency key.
func (w *WizardSession) Reset() {
	w.state = models.NewWizardState()
	w.loading = false
}

func (w *WizardSession) checkComplete() error {
	missing := map[string]string{}
	for _, name := range validation.StepSections {
		data, ok := w.state.Sections[name]
		if !ok {
			missing[string(name)] = "is required"
			continue
		}
		if _, err := validation.ValidateSection(name, data); err != nil {
			missing[string(name)] = "is incomplete"
		}
	}
	if len(missing) > 0 {
		return &common.ValidationError{Fields: missing}
	}
	return nil
}

func (w *WizardSession) fetchOwn(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var app *models.Application
	err := withRemoteRetry(ctx, "application.get", func(ctx context.Context) error {
		var err error
		app, err = w.appRepo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if app.OwnerID != w.userID {
		return nil, common.ErrNotFound
	}
	return app, nil
}

func (w *WizardSession) withLock(ctx context.Context, id uuid.UUID, fn func(ctx context.Context) error) error {
	unlock, err := w.locker.Lock(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrDraftBusy) {
			return err
		}
		return fmt.Errorf("failed to lock draft %s: %w", id, err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			logger.FromContext(ctx).Warn("failed to release draft lock", zap.String("application_id", id.String()), zap.Error(err))
		}
	}()
	return fn(ctx)
}
