package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/webdevhub/config"
	"github.com/cppla/webdevhub/controllers"
	"github.com/cppla/webdevhub/middleware"
	"github.com/cppla/webdevhub/services"
	"github.com/cppla/webdevhub/utils"
)

// Deps is everything the router needs to build its controllers.
type Deps struct {
	Config config.AppConfig
	Log    *zap.Logger
	// AccessLog receives one line per request. Log is used when nil.
	AccessLog *zap.Logger

	Identity *services.IdentityService
	OAuth    *services.OAuthService
	Blog     *services.ContentService
	Forum    *services.ContentService
	Contact  *services.ContactService
	Captcha  controllers.CaptchaIssuer
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(d Deps) *gin.Engine {
	cfg := d.Config
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	gl := d.AccessLog
	if gl == nil {
		gl = d.Log
	}
	r.Use(ginzap.Ginzap(gl, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(gl, true))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "OK", "timestamp": time.Now().UTC()})
	})

	authController := controllers.NewAuthController(d.Identity, d.OAuth, cfg.IsAdmin, d.Log)
	userController := controllers.NewUserController(d.Identity, cfg.IsAdmin, d.Log)
	blogController := controllers.NewContentController(d.Blog, d.Log)
	forumController := controllers.NewContentController(d.Forum, d.Log)
	contactController := controllers.NewContactController(d.Contact, d.Captcha, d.Log)

	authRequired := middleware.AuthRequired(d.Identity)
	optionalAuth := middleware.OptionalAuth(d.Identity)
	adminOnly := middleware.AdminOnly(cfg.IsAdmin)

	api := r.Group("/api")
	api.Use(middleware.RateLimit(cfg.RateLimitPerMinute))

	authGroup := api.Group("/auth")
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.GET("/profile", authRequired, authController.Profile)
	authGroup.GET("/verify", authRequired, authController.Verify)
	authGroup.POST("/logout", authRequired, authController.Logout)
	authGroup.GET("/oauth/:provider/login", authController.OAuthRedirect)
	authGroup.GET("/oauth/:provider/callback", authController.OAuthCallback)

	blog := api.Group("/blog")
	blog.GET("", blogController.List)
	blog.GET("/:id", optionalAuth, blogController.Get)
	blog.POST("", authRequired, blogController.Create)
	blog.PUT("/:id", authRequired, blogController.Update)
	blog.DELETE("/:id", authRequired, blogController.Delete)
	blog.POST("/:id/comments", authRequired, blogController.AddEngagement)
	blog.DELETE("/:id/comments/:engagementId", authRequired, blogController.RemoveEngagement)

	forum := api.Group("/forum")
	forum.GET("", forumController.List)
	forum.GET("/categories/list", forumController.Categories)
	forum.GET("/:id", forumController.Get)
	forum.POST("", authRequired, forumController.Create)
	forum.PUT("/:id", authRequired, forumController.Update)
	forum.DELETE("/:id", authRequired, forumController.Delete)
	forum.POST("/:id/replies", authRequired, forumController.AddEngagement)
	forum.DELETE("/:id/replies/:engagementId", authRequired, forumController.RemoveEngagement)
	forum.PATCH("/:id/moderation", authRequired, adminOnly, forumController.Moderate)

	user := api.Group("/user")
	user.PUT("/profile", authRequired, userController.UpdateProfile)
	user.PUT("/password", authRequired, userController.ChangePassword)
	user.DELETE("/account", authRequired, userController.Deactivate)
	user.GET("/:id", userController.GetPublic)
	user.GET("/:id/posts", blogController.ListByAuthor)
	user.GET("/:id/threads", forumController.ListByAuthor)

	contact := api.Group("/contact")
	contact.POST("", contactController.Submit)
	contact.GET("/captcha", contactController.Captcha)
	admin := contact.Group("", authRequired, adminOnly)
	admin.GET("", contactController.List)
	admin.GET("/stats/summary", contactController.Stats)
	admin.GET("/:id", contactController.Get)
	admin.POST("/:id/reply", contactController.Reply)
	admin.PATCH("/:id/status", contactController.SetStatus)
	admin.DELETE("/:id", contactController.Delete)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, "Route not found")
	})

	return r
}
