package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/common"
	"marketplace/internal/logger"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuthConfig selects how bearer tokens are verified. KeyFunc is used when
// set (identity provider JWKS); otherwise tokens must be HMAC signed with
// SigningKey.
type AuthConfig struct {
	KeyFunc    jwt.Keyfunc
	SigningKey []byte
	Issuer     string
	RoleClaim  string
}

// NewJWKSKeyFunc fetches the identity provider's key set and keeps it fresh
// in the background until ctx is done.
func NewJWKSKeyFunc(ctx context.Context, jwksURL string) (jwt.Keyfunc, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.GetLogger().Warn("JWKS refresh failed", zap.String("url", jwksURL), zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load JWKS from %s: %w", jwksURL, err)
	}
	return jwks.Keyfunc, nil
}

// JWTMiddleware verifies the bearer token and stores the principal (the
// token subject) and its role claim in the request context.
func JWTMiddleware(cfg AuthConfig) echo.MiddlewareFunc {
	jwtConfig := echojwt.Config{
		KeyFunc:    cfg.KeyFunc,
		SigningKey: cfg.SigningKey,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return jwt.MapClaims{}
		},
		ErrorHandler: func(c echo.Context, err error) error {
			logger.FromEcho(c).Debug("token rejected", zap.Error(err))
			return common.SendUnauthorizedError(c)
		},
	}
	verify := echojwt.WithConfig(jwtConfig)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return verify(func(c echo.Context) error {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return common.SendUnauthorizedError(c)
			}
			userID, role, err := principal(token, cfg)
			if err != nil {
				logger.FromEcho(c).Debug("token rejected", zap.Error(err))
				return common.SendUnauthorizedError(c)
			}

			ctx := common.WithUserID(c.Request().Context(), userID)
			ctx = common.WithRole(ctx, role)
			ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(zap.String("user_id", userID)))
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		})
	}
}

func principal(token *jwt.Token, cfg AuthConfig) (string, string, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("unexpected claims type")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", "", errors.New("missing subject")
	}

	if cfg.Issuer != "" {
		iss, err := claims.GetIssuer()
		if err != nil || iss != cfg.Issuer {
			return "", "", fmt.Errorf("unexpected issuer %q", iss)
		}
	}

	roleClaim := cfg.RoleClaim
	if roleClaim == "" {
		roleClaim = "role"
	}
	role, _ := claims[roleClaim].(string)
	return sub, role, nil
}
