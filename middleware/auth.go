package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/webdevhub/models"
	"github.com/cppla/webdevhub/services"
	"github.com/cppla/webdevhub/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
	// ContextTokenKey stores the raw bearer token for logout and deactivation.
	ContextTokenKey = "token"
	// ContextClaimsKey stores the parsed *utils.Claims.
	ContextClaimsKey = "claims"
)

// Authenticator resolves a bearer token to an active user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, *utils.Claims, error)
}

func bearerToken(ctx *gin.Context) (string, bool) {
	authHeader := ctx.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func setIdentity(ctx *gin.Context, token string, user *models.User, claims *utils.Claims) {
	ctx.Set(ContextUserIDKey, user.ID)
	ctx.Set(ContextUsernameKey, user.Username)
	ctx.Set(ContextTokenKey, token)
	ctx.Set(ContextClaimsKey, claims)
}

// AuthRequired ensures the request carries a valid token of an active user.
func AuthRequired(auth Authenticator) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, ok := bearerToken(ctx)
		if !ok {
			utils.Error(ctx, http.StatusUnauthorized, "Access denied. No token provided.")
			ctx.Abort()
			return
		}

		user, claims, err := auth.Authenticate(ctx.Request.Context(), token)
		if err != nil {
			status, message := http.StatusUnauthorized, "Invalid token"
			var se *services.Error
			if errors.As(err, &se) {
				status, message = se.Kind.Status(), se.Message
			}
			utils.Error(ctx, status, message)
			ctx.Abort()
			return
		}

		setIdentity(ctx, token, user, claims)
		ctx.Next()
	}
}

// OptionalAuth resolves the caller when a valid token is present and otherwise continues anonymously.
func OptionalAuth(auth Authenticator) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if token, ok := bearerToken(ctx); ok {
			if user, claims, err := auth.Authenticate(ctx.Request.Context(), token); err == nil {
				setIdentity(ctx, token, user, claims)
			}
		}
		ctx.Next()
	}
}

// AdminOnly must run after AuthRequired. isAdmin decides by username.
func AdminOnly(isAdmin func(username string) bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !isAdmin(ctx.GetString(ContextUsernameKey)) {
			utils.Error(ctx, http.StatusForbidden, "Access denied. Admin privileges required.")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
