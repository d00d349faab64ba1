package middleware

import (
	"regexp"

	"marketplace/internal/common"
	"marketplace/internal/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// HeaderSessionID lets one user keep separate wizards in separate tabs or devices.
const HeaderSessionID = "X-Session-ID"

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// WizardSession resolves the wizard session id from the X-Session-ID header,
// falling back to the user id. Malformed ids are ignored.
func WizardSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			sessionID := c.Request().Header.Get(HeaderSessionID)
			if !sessionIDPattern.MatchString(sessionID) {
				if sessionID != "" {
					logger.FromContext(ctx).Debug("ignoring malformed session id")
				}
				sessionID, _ = common.GetUserIDFromContext(ctx)
			}

			ctx = common.WithSessionID(ctx, sessionID)
			ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(zap.String("session_id", sessionID)))
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequestID copies the request id assigned by echo's RequestID middleware
// into the request context.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = c.Request().Header.Get(echo.HeaderXRequestID)
			}
			if requestID != "" {
				c.SetRequest(c.Request().WithContext(common.WithRequestID(c.Request().Context(), requestID)))
			}
			return next(c)
		}
	}
}
