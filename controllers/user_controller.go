package controllers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/webdevhub/middleware"
	"github.com/cppla/webdevhub/services"
)

// UserController serves public profiles and account self-service.
type UserController struct {
	identity *services.IdentityService
	isAdmin  func(username string) bool
	log      *zap.Logger
}

// NewUserController creates a UserController.
func NewUserController(identity *services.IdentityService, isAdmin func(string) bool, log *zap.Logger) *UserController {
	return &UserController{identity: identity, isAdmin: isAdmin, log: log}
}

type updateProfileRequest struct {
	Bio    *string `json:"bio" binding:"omitempty,max=500"`
	Avatar *string `json:"avatar" binding:"omitempty,url"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6,strongpassword"`
}

// GetPublic returns an active user's profile with authoring stats.
func (u *UserController) GetPublic(ctx *gin.Context) {
	profile, err := u.identity.PublicProfile(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, u.log, err)
		return
	}
	view := publicUserView(profile.User)
	view["stats"] = profile.Stats
	ok(ctx, "", gin.H{"user": view})
}

// UpdateProfile changes the caller's bio or avatar.
func (u *UserController) UpdateProfile(ctx *gin.Context) {
	var req updateProfileRequest
	if !bindJSON(ctx, &req) {
		return
	}
	user, err := u.identity.UpdateProfile(ctx.Request.Context(), getUserID(ctx), req.Bio, req.Avatar)
	if err != nil {
		respondError(ctx, u.log, err)
		return
	}
	ok(ctx, "Profile updated successfully", gin.H{"user": userView(user, u.isAdmin(user.Username))})
}

// ChangePassword replaces the caller's password.
func (u *UserController) ChangePassword(ctx *gin.Context) {
	var req changePasswordRequest
	if !bindJSON(ctx, &req) {
		return
	}
	if err := u.identity.ChangePassword(ctx.Request.Context(), getUserID(ctx), req.CurrentPassword, req.NewPassword); err != nil {
		respondError(ctx, u.log, err)
		return
	}
	ok(ctx, "Password updated successfully", nil)
}

// Deactivate disables the caller's account.
func (u *UserController) Deactivate(ctx *gin.Context) {
	err := u.identity.Deactivate(ctx.Request.Context(), getUserID(ctx), ctx.GetString(middleware.ContextTokenKey), getClaims(ctx))
	if err != nil {
		respondError(ctx, u.log, err)
		return
	}
	ok(ctx, "Account deactivated successfully", nil)
}
