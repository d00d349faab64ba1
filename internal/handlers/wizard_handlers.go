package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"marketplace/internal/common"
	"marketplace/internal/logger"
	"marketplace/internal/models"
	"marketplace/internal/services"
	"marketplace/internal/validation"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const maxSectionBytes = 64 << 10

// WizardHandlers drives the seller registration wizard of the caller's session.
type WizardHandlers struct {
	wizardService services.WizardService
}

// NewWizardHandlers creates a new wizard handlers instance
func NewWizardHandlers(wizardService services.WizardService) *WizardHandlers {
	return &WizardHandlers{wizardService: wizardService}
}

// WizardResponse is the session state returned by every wizard endpoint.
// Remote calls finish before the response is written, so the session's
// loading flag is never reported.
type WizardResponse struct {
	SessionID string `json:"sessionId"`
	models.WizardState
}

// NextRequest carries the section collected on the current step.
type NextRequest struct {
	Data json.RawMessage `json:"data"`
}

// SetStepRequest jumps to a step.
type SetStepRequest struct {
	Step int `json:"step"`
}

// GetWizard returns the current session state.
// @Summary      Current wizard state
// @Tags         wizard
// @Produce      json
// @Param        X-Session-ID  header  string  false  "Wizard session"
// @Success      200  {object}  WizardResponse
// @Router       /v1/wizard [get]
func (h *WizardHandlers) GetWizard(c echo.Context) error {
	return h.withSession(c, func(context.Context, *services.WizardSession) error { return nil })
}

// StartWizard creates the remote draft if the session has none yet.
// @Summary      Start the application
// @Tags         wizard
// @Produce      json
// @Success      200  {object}  WizardResponse
// @Failure      503  {object}  common.ErrorResponse
// @Router       /v1/wizard/start [post]
func (h *WizardHandlers) StartWizard(c echo.Context) error {
	return h.withSession(c, func(ctx context.Context, s *services.WizardSession) error {
		return s.CreateRemoteDraft(ctx)
	})
}

// NextStep validates the current step's section, saves the draft and advances.
// @Summary      Complete the current step
// @Tags         wizard
// @Accept       json
// @Produce      json
// @Param        body  body  NextRequest  true  "Section data"
// @Success      200  {object}  WizardResponse
// @Failure      400  {object}  common.ErrorResponse
// @Failure      409  {object}  common.ErrorResponse
// @Router       /v1/wizard/next [post]
func (h *WizardHandlers) NextStep(c echo.Context) error {
	var req NextRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	return h.withSession(c, func(ctx context.Context, s *services.WizardSession) error {
		return s.Next(ctx, req.Data)
	})
}

// PreviousStep goes back one step.
// @Summary      Go back one step
// @Tags         wizard
// @Produce      json
// @Success      200  {object}  WizardResponse
// @Router       /v1/wizard/back [post]
func (h *WizardHandlers) PreviousStep(c echo.Context) error {
	return h.withSession(c, func(_ context.Context, s *services.WizardSession) error {
		return s.Back()
	})
}

// SetStep jumps to a step.
// @Summary      Jump to a step
// @Tags         wizard
// @Accept       json
// @Produce      json
// @Param        body  body  SetStepRequest  true  "Step"
// @Success      200  {object}  WizardResponse
// @Failure      400  {object}  common.ErrorResponse
// @Router       /v1/wizard/step [put]
func (h *WizardHandlers) SetStep(c echo.Context) error {
	var req SetStepRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	return h.withSession(c, func(_ context.Context, s *services.WizardSession) error {
		return s.SetStep(req.Step)
	})
}

// SaveSection validates and replaces one section, then saves the draft.
// @Summary      Save a section
// @Tags         wizard
// @Accept       json
// @Produce      json
// @Param        name  path  string  true  "Section name"  Enums(business, contact, product)
// @Success      200  {object}  WizardResponse
// @Failure      400  {object}  common.ErrorResponse
// @Failure      409  {object}  common.ErrorResponse
// @Router       /v1/wizard/sections/{name} [put]
func (h *WizardHandlers) SaveSection(c echo.Context) error {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxSectionBytes))
	if err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	name := models.SectionName(c.Param("name"))
	section, err := validation.ValidateSection(name, raw)
	if err != nil {
		return respondError(c, err)
	}
	return h.withSession(c, func(ctx context.Context, s *services.WizardSession) error {
		if err := s.SetSection(name, section); err != nil {
			return err
		}
		return s.SaveDraft(ctx)
	})
}

// SubmitApplication submits the draft for review.
// @Summary      Submit the application
// @Tags         wizard
// @Produce      json
// @Success      200  {object}  WizardResponse
// @Failure      400  {object}  common.ErrorResponse
// @Failure      409  {object}  common.ErrorResponse
// @Router       /v1/wizard/submit [post]
func (h *WizardHandlers) SubmitApplication(c echo.Context) error {
	return h.withSession(c, func(ctx context.Context, s *services.WizardSession) error {
		return s.SubmitApplication(ctx)
	})
}

// ResetWizard starts the session over with a new idempotency key. The remote
// draft, if any, is kept.
// @Summary      Reset the wizard
// @Tags         wizard
// @Produce      json
// @Success      200  {object}  WizardResponse
// @Router       /v1/wizard/reset [post]
func (h *WizardHandlers) ResetWizard(c echo.Context) error {
	return h.withSession(c, func(_ context.Context, s *services.WizardSession) error {
		s.Reset()
		return nil
	})
}

// DiscardWizard drops the cached session, e.g. on logout.
// @Summary      Discard the wizard session
// @Tags         wizard
// @Success      204
// @Router       /v1/wizard [delete]
func (h *WizardHandlers) DiscardWizard(c echo.Context) error {
	ctx := c.Request().Context()
	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	sessionID, _ := common.GetSessionIDFromContext(ctx)

	if err := h.wizardService.Discard(ctx, userID, sessionID); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// withSession loads the caller's session, applies fn and caches the result.
// The session is cached even when fn fails so local edits survive a failed save.
func (h *WizardHandlers) withSession(c echo.Context, fn func(ctx context.Context, s *services.WizardSession) error) error {
	ctx := c.Request().Context()
	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	sessionID, _ := common.GetSessionIDFromContext(ctx)

	session, err := h.wizardService.Load(ctx, userID, sessionID)
	if err != nil {
		return respondError(c, err)
	}

	actionErr := fn(ctx, session)
	if err := h.wizardService.Save(ctx, session); err != nil {
		logger.FromContext(ctx).Warn("failed to cache wizard state", zap.Error(err))
	}
	if actionErr != nil {
		return respondError(c, actionErr)
	}

	return c.JSON(http.StatusOK, WizardResponse{
		SessionID:   session.SessionID(),
		WizardState: session.State(),
	})
}
