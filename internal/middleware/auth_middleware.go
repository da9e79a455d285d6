package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/s1d40/empathy-hub-backend/internal/domain/user"
	"github.com/s1d40/empathy-hub-backend/internal/services"
	"github.com/s1d40/empathy-hub-backend/internal/transport/httpdto"
	hub_errors "github.com/s1d40/empathy-hub-backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token string) (user.User, error)
}

// AuthMiddleware resolves the bearer token to an active user and stores the
// user id on the request context.
func AuthMiddleware(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := resolver.ResolveIdentity(c.Request.Context(), extractBearer(c))
		if err != nil {
			if errors.Is(err, hub_errors.ErrUnauthorized) {
				c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			} else {
				c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("identity lookup failed", "INTERNAL_ERROR"))
			}
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(services.WithUserContext(c.Request.Context(), u.ID))
		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
