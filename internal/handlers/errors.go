package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"marketplace/internal/common"
	"marketplace/internal/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// respondError maps service errors onto the JSON error envelope.
func respondError(c echo.Context, err error) error {
	var (
		quotaErr      *common.QuotaExceededError
		uploadErr     *common.UploadRejectedError
		validationErr *common.ValidationError
	)

	switch {
	case errors.As(err, &validationErr):
		return common.SendFieldErrors(c, validationErr.Fields)
	case errors.As(err, &quotaErr):
		return common.SendConflictError(c, "QUOTA_EXCEEDED", quotaErr.Error(), map[string]string{
			"plan":  quotaErr.Plan,
			"limit": strconv.Itoa(quotaErr.Limit),
		})
	case errors.As(err, &uploadErr):
		return c.JSON(http.StatusUnprocessableEntity, common.CreateErrorResponse("UPLOAD_REJECTED", uploadErr.Error(), nil))
	case errors.Is(err, common.ErrUnauthorized):
		return common.SendUnauthorizedError(c)
	case errors.Is(err, common.ErrNotFound):
		return common.SendNotFoundError(c, "Resource")
	case errors.Is(err, common.ErrDraftSubmitted):
		return common.SendConflictError(c, "DRAFT_SUBMITTED", "The application has already been submitted", nil)
	case errors.Is(err, common.ErrDraftNotInitialized):
		return common.SendConflictError(c, "DRAFT_NOT_INITIALIZED", "Start the application before saving it", nil)
	case errors.Is(err, common.ErrDraftBusy):
		return common.SendConflictError(c, "DRAFT_BUSY", "The application is being saved, try again", nil)
	case errors.Is(err, common.ErrInvalidTransition):
		return common.SendConflictError(c, "INVALID_TRANSITION", "The application cannot be moved to that status", nil)
	case errors.Is(err, common.ErrStepOutOfRange):
		return common.SendClientError(c, "Step out of range")
	case errors.Is(err, common.ErrRemoteUnavailable):
		logger.FromContext(c.Request().Context()).Warn("remote store unavailable", zap.Error(err))
		return common.SendUnavailableError(c, "The service is temporarily unavailable, please retry")
	}

	logger.FromContext(c.Request().Context()).Error("request failed", zap.Error(err))
	return common.SendServerError(c, "Internal server error")
}
