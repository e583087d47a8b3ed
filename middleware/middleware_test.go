package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/webdevhub/models"
	"github.com/cppla/webdevhub/services"
	"github.com/cppla/webdevhub/utils"
)

type stubAuth struct {
	user *models.User
	err  error
}

func (s stubAuth) Authenticate(ctx context.Context, token string) (*models.User, *utils.Claims, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.user, &utils.Claims{UserID: s.user.ID, Username: s.user.Username}, nil
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"userId":   ctx.GetString(ContextUserIDKey),
			"username": ctx.GetString(ContextUsernameKey),
		})
	})
	r.GET("/", handlers...)
	return r
}

func do(r http.Handler, token, remote string) (int, map[string]any) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if remote != "" {
		req.RemoteAddr = remote
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	body := map[string]any{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w.Code, body
}

func TestAuthRequired(t *testing.T) {
	alice := &models.User{ID: "u1", Username: "alice"}

	code, body := do(newEngine(AuthRequired(stubAuth{user: alice})), "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Access denied. No token provided.", body["message"])

	revoked := stubAuth{err: &services.Error{Kind: services.KindUnauthorized, Message: "Token has been revoked"}}
	code, body = do(newEngine(AuthRequired(revoked)), "abc", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Token has been revoked", body["message"])

	code, body = do(newEngine(AuthRequired(stubAuth{user: alice})), "abc", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "u1", body["userId"])
	assert.Equal(t, "alice", body["username"])
}

func TestOptionalAuth(t *testing.T) {
	bad := stubAuth{err: &services.Error{Kind: services.KindUnauthorized, Message: "Invalid token"}}
	code, body := do(newEngine(OptionalAuth(bad)), "abc", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "", body["userId"])

	code, body = do(newEngine(OptionalAuth(stubAuth{user: &models.User{ID: "u1", Username: "alice"}})), "abc", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "u1", body["userId"])
}

func TestAdminOnly(t *testing.T) {
	isAdmin := func(name string) bool { return name == "root" }

	code, body := do(newEngine(AuthRequired(stubAuth{user: &models.User{ID: "u1", Username: "alice"}}), AdminOnly(isAdmin)), "abc", "")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Access denied. Admin privileges required.", body["message"])

	code, _ = do(newEngine(AuthRequired(stubAuth{user: &models.User{ID: "u2", Username: "root"}}), AdminOnly(isAdmin)), "abc", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestRateLimit(t *testing.T) {
	r := newEngine(RateLimit(2))

	code, _ := do(r, "", "10.0.0.1:1000")
	assert.Equal(t, http.StatusOK, code)
	code, body := do(r, "", "10.0.0.1:1001")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "Too many requests, please try again later.", body["message"])

	// buckets are per client
	code, _ = do(r, "", "10.0.0.2:1000")
	assert.Equal(t, http.StatusOK, code)

	unlimited := newEngine(RateLimit(0))
	for i := 0; i < 5; i++ {
		code, _ = do(unlimited, "", "10.0.0.1:1000")
		assert.Equal(t, http.StatusOK, code)
	}
}
