package controllers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/webdevhub/middleware"
	"github.com/cppla/webdevhub/services"
)

// AuthController handles registration, sessions and OAuth sign-in.
type AuthController struct {
	identity *services.IdentityService
	oauth    *services.OAuthService
	isAdmin  func(username string) bool
	log      *zap.Logger
}

// NewAuthController creates an AuthController.
func NewAuthController(identity *services.IdentityService, oauth *services.OAuthService, isAdmin func(string) bool, log *zap.Logger) *AuthController {
	return &AuthController{identity: identity, oauth: oauth, isAdmin: isAdmin, log: log}
}

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=30,username"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// Register creates an account and returns a token.
func (a *AuthController) Register(ctx *gin.Context) {
	var req registerRequest
	if !bindJSON(ctx, &req) {
		return
	}
	res, err := a.identity.Register(ctx.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		respondError(ctx, a.log, err)
		return
	}
	created(ctx, "User registered successfully", gin.H{
		"token": res.Token,
		"user":  userView(res.User, a.isAdmin(res.User.Username)),
	})
}

// Login accepts a username or email.
func (a *AuthController) Login(ctx *gin.Context) {
	var req loginRequest
	if !bindJSON(ctx, &req) {
		return
	}
	res, err := a.identity.Login(ctx.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		respondError(ctx, a.log, err)
		return
	}
	ok(ctx, "Login successful", gin.H{
		"token": res.Token,
		"user":  userView(res.User, a.isAdmin(res.User.Username)),
	})
}

// Profile returns the authenticated user.
func (a *AuthController) Profile(ctx *gin.Context) {
	user, err := a.identity.Profile(ctx.Request.Context(), getUserID(ctx))
	if err != nil {
		respondError(ctx, a.log, err)
		return
	}
	ok(ctx, "", gin.H{"user": userView(user, a.isAdmin(user.Username))})
}

// Verify confirms the token is still valid.
func (a *AuthController) Verify(ctx *gin.Context) {
	user, err := a.identity.Profile(ctx.Request.Context(), getUserID(ctx))
	if err != nil {
		respondError(ctx, a.log, err)
		return
	}
	ok(ctx, "", gin.H{
		"valid": true,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
			"isAdmin":  a.isAdmin(user.Username),
		},
	})
}

// Logout revokes the presented token.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	if err := a.identity.Logout(ctx.Request.Context(), token, getClaims(ctx)); err != nil {
		respondError(ctx, a.log, err)
		return
	}
	ok(ctx, "Logout successful", nil)
}

// OAuthRedirect generates a provider-specific authorization URL.
func (a *AuthController) OAuthRedirect(ctx *gin.Context) {
	url, state, err := a.oauth.AuthURL(ctx.Param("provider"))
	if err != nil {
		respondError(ctx, a.log, err)
		return
	}
	ok(ctx, "", gin.H{"authorization_url": url, "state": state})
}

// OAuthCallback exchanges the authorization code for a user identity and issues a JWT.
func (a *AuthController) OAuthCallback(ctx *gin.Context) {
	res, err := a.oauth.Callback(ctx.Request.Context(), ctx.Param("provider"), ctx.Query("code"), ctx.Query("state"))
	if err != nil {
		respondError(ctx, a.log, err)
		return
	}
	ok(ctx, "Login successful", gin.H{
		"token": res.Token,
		"user":  userView(res.User, a.isAdmin(res.User.Username)),
	})
}
