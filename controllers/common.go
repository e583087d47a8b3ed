package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/webdevhub/middleware"
	"github.com/cppla/webdevhub/models"
	"github.com/cppla/webdevhub/services"
	"github.com/cppla/webdevhub/utils"
)

// respondError writes the status and message of a service error. Internal causes are logged, never returned.
func respondError(ctx *gin.Context, log *zap.Logger, err error) {
	var se *services.Error
	if !errors.As(err, &se) {
		se = &services.Error{Kind: services.KindInternal, Err: err}
	}
	if se.Kind == services.KindInternal || se.Kind == services.KindDeliveryFailed {
		log.Error("request failed",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.FullPath()),
			zap.Error(err))
	}
	message := se.Message
	if se.Kind == services.KindInternal {
		message = "Internal server error"
	}
	utils.Error(ctx, se.Kind.Status(), message, se.Fields...)
}

func getUserID(ctx *gin.Context) string {
	return ctx.GetString(middleware.ContextUserIDKey)
}

func getClaims(ctx *gin.Context) *utils.Claims {
	if v, ok := ctx.Get(middleware.ContextClaimsKey); ok {
		if claims, ok := v.(*utils.Claims); ok {
			return claims
		}
	}
	return nil
}

// pageParams reads page and limit (alias page_size). Invalid values fall back to service defaults.
func pageParams(ctx *gin.Context) (int, int) {
	page, _ := strconv.Atoi(ctx.Query("page"))
	size := ctx.Query("limit")
	if size == "" {
		size = ctx.Query("page_size")
	}
	pageSize, _ := strconv.Atoi(size)
	return page, pageSize
}

// userView is the account as its owner sees it.
func userView(u *models.User, admin bool) gin.H {
	return gin.H{
		"id":        u.ID,
		"username":  u.Username,
		"email":     u.Email,
		"avatar":    u.AvatarURL,
		"bio":       u.Bio,
		"provider":  u.Provider,
		"lastLogin": u.LastLogin,
		"createdAt": u.CreatedAt,
		"isAdmin":   admin,
	}
}

// publicUserView omits contact details.
func publicUserView(u *models.User) gin.H {
	return gin.H{
		"id":        u.ID,
		"username":  u.Username,
		"avatar":    u.AvatarURL,
		"bio":       u.Bio,
		"createdAt": u.CreatedAt,
	}
}

func ok(ctx *gin.Context, message string, payload gin.H) {
	utils.Respond(ctx, http.StatusOK, message, payload)
}

func created(ctx *gin.Context, message string, payload gin.H) {
	utils.Respond(ctx, http.StatusCreated, message, payload)
}
