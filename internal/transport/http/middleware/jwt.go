package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"smart-research-agent/internal/app"
	"smart-research-agent/internal/model"
	"smart-research-agent/internal/pkg/jwtutil"
	"smart-research-agent/internal/transport/http/response"
)

const ContextUserKey = "current_user"

// AuthJWT verifies the bearer token and resolves its subject to a live user
// record. A token whose subject no longer exists is rejected like any other
// bad token.
func AuthJWT(secret string, authService *app.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			response.Error(c, 401, response.CodeUnauthorized, "missing authorization header")
			c.Abort()
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			response.Error(c, 401, response.CodeUnauthorized, "invalid authorization scheme")
			c.Abort()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil {
			response.Error(c, 401, response.CodeUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		user, err := authService.GetUserByID(claims.UserID)
		if err != nil {
			response.Error(c, 500, response.CodeInternalServer, "resolve current user failed")
			c.Abort()
			return
		}
		if user == nil {
			response.Error(c, 401, response.CodeUnauthorized, "could not validate credentials")
			c.Abort()
			return
		}

		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the user resolved by AuthJWT.
func CurrentUser(c *gin.Context) (*model.User, bool) {
	userAny, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	user, ok := userAny.(*model.User)
	return user, ok
}
