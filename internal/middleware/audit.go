package middleware

import (
	"net/http"
	"strings"
	"time"

	"marketplace/internal/common"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuditMiddleware writes an audit trail of state-changing requests to a
// dedicated zap logger.
type AuditMiddleware struct {
	log *zap.Logger
}

// NewAuditMiddleware creates a new audit middleware instance
func NewAuditMiddleware(log *zap.Logger) *AuditMiddleware {
	return &AuditMiddleware{log: log.Named("audit")}
}

// AuditRequest audits requests at the given sensitivity level. "high" also
// records the (redacted) request headers.
func (m *AuditMiddleware) AuditRequest(sensitivityLevel string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			method := c.Request().Method
			path := c.Path()
			if !m.shouldAudit(method, path, err) {
				return err
			}

			ctx := c.Request().Context()
			userID, _ := common.GetUserIDFromContext(ctx)
			fields := []zap.Field{
				zap.String("action", method+" "+path),
				zap.String("user_id", userID),
				zap.String("role", common.GetRoleFromContext(ctx)),
				zap.String("request_id", common.GetRequestIDFromContext(ctx)),
				zap.String("ip", c.RealIP()),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
			}
			if sensitivityLevel == "high" {
				fields = append(fields, zap.Any("headers", sanitizeHeaders(c.Request().Header)))
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}

			m.log.Info("audit", fields...)
			return err
		}
	}
}

// shouldAudit keeps mutations, failures and admin reads.
func (m *AuditMiddleware) shouldAudit(method, path string, reqErr error) bool {
	if reqErr != nil {
		return true
	}
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return strings.Contains(path, "/admin/")
}

func sanitizeHeaders(headers http.Header) map[string]interface{} {
	sanitized := make(map[string]interface{}, len(headers))
	for key, values := range headers {
		if isSensitiveHeader(key) {
			sanitized[key] = "[REDACTED]"
			continue
		}
		sanitized[key] = values
	}
	return sanitized
}

func isSensitiveHeader(header string) bool {
	switch strings.ToLower(header) {
	case "authorization", "cookie", "x-api-key", "x-auth-token", "proxy-authorization":
		return true
	}
	return false
}
