package handlers

import (
	"net/http"
	"strings"

	"marketplace/internal/common"
	"marketplace/internal/models"
	"marketplace/internal/services"

	"github.com/labstack/echo/v4"
)

// ApplicationHandlers serves submitted applications to their owners and reviewers.
type ApplicationHandlers struct {
	wizardService services.WizardService
}

// NewApplicationHandlers creates a new application handlers instance
func NewApplicationHandlers(wizardService services.WizardService) *ApplicationHandlers {
	return &ApplicationHandlers{wizardService: wizardService}
}

// ReviewRequest is an admin decision on a pending application.
type ReviewRequest struct {
	Decision string  `json:"decision"` // approved or rejected
	Reason   *string `json:"reason,omitempty"`
}

// GetApplication returns the caller's application record.
// @Summary      Get an application
// @Tags         applications
// @Produce      json
// @Param        id  path  string  true  "Application ID"
// @Success      200  {object}  models.Application
// @Failure      404  {object}  common.ErrorResponse
// @Router       /v1/applications/{id} [get]
func (h *ApplicationHandlers) GetApplication(c echo.Context) error {
	ctx := c.Request().Context()
	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	app, err := h.wizardService.Fetch(ctx, userID, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, app)
}

// ReviewApplication approves or rejects a pending application.
// @Summary      Review an application
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id    path  string         true  "Application ID"
// @Param        body  body  ReviewRequest  true  "Decision"
// @Success      200  {object}  models.Application
// @Failure      400  {object}  common.ErrorResponse
// @Failure      409  {object}  common.ErrorResponse
// @Router       /v1/admin/applications/{id}/review [post]
func (h *ApplicationHandlers) ReviewApplication(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	var req ReviewRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	decision := models.ApplicationStatus(strings.ToLower(strings.TrimSpace(req.Decision)))
	if decision != models.ApplicationApproved && decision != models.ApplicationRejected {
		return common.SendValidationError(c, "decision", "must be one of: approved, rejected")
	}
	if decision == models.ApplicationRejected && strings.TrimSpace(common.SafeString(req.Reason)) == "" {
		return common.SendValidationError(c, "reason", "is required when rejecting")
	}

	app, err := h.wizardService.Review(c.Request().Context(), id, decision, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, app)
}
