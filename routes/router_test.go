package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cppla/webdevhub/config"
	"github.com/cppla/webdevhub/services"
	"github.com/cppla/webdevhub/storage/memory"
	"github.com/cppla/webdevhub/utils"
)

type switchNotifier struct {
	err error
}

func (n *switchNotifier) Notify(ctx context.Context, ev services.Event) error { return n.err }

type testServer struct {
	t        *testing.T
	handler  http.Handler
	notifier *switchNotifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.AppConfig{
		GinMode:        "test",
		AdminUsernames: []string{"admin"},
		SiteName:       "WebDevHub",
		FrontendURL:    "http://site.test",
	}
	log := zap.NewNop()
	store := memory.New()
	tokens := utils.NewTokenManager("test-secret", time.Hour)
	identity := services.NewIdentityService(store, store, utils.NewBcryptHasher(4), tokens, utils.NewRevocationList(nil), nil, log)
	notifier := &switchNotifier{}

	handler := SetupRouter(Deps{
		Config:   cfg,
		Log:      log,
		Identity: identity,
		OAuth:    services.NewOAuthService(cfg, store, identity, utils.NewStateStore(nil), log),
		Blog:     services.NewContentService(services.BlogKind, store, store, nil, cfg.FrontendURL, log),
		Forum:    services.NewContentService(services.ForumKind, store, store, nil, cfg.FrontendURL, log),
		Contact:  services.NewContactService(store, nil, notifier, nil, "", log),
	})
	return &testServer{t: t, handler: handler, notifier: notifier}
}

func (s *testServer) do(method, path, token string, body any) (int, map[string]any) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	out := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

// register returns the token and user id of a new account.
func (s *testServer) register(username string) (string, string) {
	s.t.Helper()
	code, body := s.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "Passw0rd!",
	})
	require.Equal(s.t, http.StatusCreated, code, body)
	user := body["user"].(map[string]any)
	return body["token"].(string), user["id"].(string)
}

func (s *testServer) createThread(token, title string) string {
	s.t.Helper()
	code, body := s.do(http.MethodPost, "/api/forum", token, gin.H{"title": title, "content": "body", "category": "go"})
	require.Equal(s.t, http.StatusCreated, code, body)
	return body["thread"].(map[string]any)["id"].(string)
}

func fieldErrors(body map[string]any) map[string]string {
	out := map[string]string{}
	list, _ := body["errors"].([]any)
	for _, e := range list {
		m := e.(map[string]any)
		out[m["field"].(string)] = m["message"].(string)
	}
	return out
}

func TestHealthAndNoRoute(t *testing.T) {
	s := newTestServer(t)
	code, body := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", body["status"])

	code, body = s.do(http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Route not found", body["message"])
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(http.MethodPost, "/api/auth/register", "", gin.H{"username": "a!", "email": "nope", "password": ""})
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Validation failed", body["message"])
	fields := fieldErrors(body)
	assert.Equal(t, "Username must be between 3 and 30 characters", fields["username"])
	assert.Equal(t, "Please provide a valid email address", fields["email"])
	assert.Equal(t, "Password is required", fields["password"])

	token, _ := s.register("alice")

	code, body = s.do(http.MethodPost, "/api/auth/register", "", gin.H{"username": "alice2", "email": "ALICE@example.com", "password": "x"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "User already exists. Please sign in.", body["message"])

	code, body = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"identifier": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid credentials", body["message"])

	code, body = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"identifier": "alice@example.com", "password": "Passw0rd!"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Login successful", body["message"])

	code, body = s.do(http.MethodGet, "/api/auth/verify", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["valid"])

	code, body = s.do(http.MethodGet, "/api/auth/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Access denied. No token provided.", body["message"])

	code, _ = s.do(http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, code)
	code, body = s.do(http.MethodGet, "/api/auth/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Token has been revoked", body["message"])
}

func TestBlogPaginationAndOwnership(t *testing.T) {
	s := newTestServer(t)
	alice, aliceID := s.register("alice")
	bob, _ := s.register("bob")

	var firstID string
	for i := 0; i < 3; i++ {
		code, body := s.do(http.MethodPost, "/api/blog", alice, gin.H{"title": "Post", "content": "hello **world**", "tags": []string{"go"}})
		require.Equal(t, http.StatusCreated, code, body)
		assert.Equal(t, "Blog post created successfully", body["message"])
		if firstID == "" {
			firstID = body["post"].(map[string]any)["id"].(string)
		}
	}

	code, body := s.do(http.MethodGet, "/api/blog?page=2&limit=2", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["posts"], 1)
	pagination := body["pagination"].(map[string]any)
	assert.EqualValues(t, 2, pagination["currentPage"])
	assert.EqualValues(t, 2, pagination["totalPages"])
	assert.EqualValues(t, 3, pagination["totalPosts"])
	assert.Equal(t, false, pagination["hasNext"])
	assert.Equal(t, true, pagination["hasPrev"])

	code, body = s.do(http.MethodPut, "/api/blog/"+firstID, bob, gin.H{"title": "Mine", "content": "now"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Not authorized to update this post", body["message"])

	code, body = s.do(http.MethodPost, "/api/blog/"+firstID+"/comments", bob, gin.H{"text": "nice"})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "Comment added successfully", body["message"])
	commentID := body["comment"].(map[string]any)["id"].(string)

	// the post author may remove any comment on their post
	code, body = s.do(http.MethodDelete, "/api/blog/"+firstID+"/comments/"+commentID, alice, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Comment deleted successfully", body["message"])

	code, body = s.do(http.MethodGet, "/api/user/"+aliceID+"/posts", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["posts"], 3)

	code, body = s.do(http.MethodGet, "/api/user/"+aliceID, "", nil)
	require.Equal(t, http.StatusOK, code)
	user := body["user"].(map[string]any)
	assert.NotContains(t, user, "email")
	assert.EqualValues(t, 3, user["stats"].(map[string]any)["blogPosts"])

	code, body = s.do(http.MethodGet, "/api/blog/does-not-exist", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Blog post not found", body["message"])
}

func TestBlogDraftPreview(t *testing.T) {
	s := newTestServer(t)
	alice, _ := s.register("alice")
	bob, _ := s.register("bob")

	code, body := s.do(http.MethodPost, "/api/blog", alice, gin.H{"title": "Draft", "content": "wip", "isPublished": false})
	require.Equal(t, http.StatusCreated, code, body)
	id := body["post"].(map[string]any)["id"].(string)

	code, _ = s.do(http.MethodGet, "/api/blog/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(http.MethodGet, "/api/blog/"+id, bob, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(http.MethodGet, "/api/blog/"+id, alice, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestForumModerationAndLocking(t *testing.T) {
	s := newTestServer(t)
	alice, _ := s.register("alice")
	admin, _ := s.register("admin")
	id := s.createThread(alice, "Locked soon")

	code, body := s.do(http.MethodPatch, "/api/forum/"+id+"/moderation", alice, gin.H{"isLocked": true})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Access denied. Admin privileges required.", body["message"])

	code, body = s.do(http.MethodPatch, "/api/forum/"+id+"/moderation", admin, gin.H{"isLocked": true, "isPinned": true})
	require.Equal(t, http.StatusOK, code, body)
	thread := body["thread"].(map[string]any)
	assert.Equal(t, true, thread["isLocked"])
	assert.Equal(t, true, thread["isPinned"])

	code, body = s.do(http.MethodPost, "/api/forum/"+id+"/replies", alice, gin.H{"text": "one more"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Thread is locked and cannot accept new replies", body["message"])

	code, body = s.do(http.MethodPut, "/api/forum/"+id, alice, gin.H{"title": "Edit", "content": "x"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Thread is locked and cannot be edited", body["message"])

	code, body = s.do(http.MethodGet, "/api/forum/categories/list", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body["categories"], "go")
}

func TestEngagementValidation(t *testing.T) {
	s := newTestServer(t)
	alice, _ := s.register("alice")
	id := s.createThread(alice, "Question")

	code, body := s.do(http.MethodPost, "/api/forum/"+id+"/replies", alice, gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, fieldErrors(body), "text")

	code, body = s.do(http.MethodPost, "/api/forum", alice, gin.H{"content": "no title"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Title is required and must not exceed 200 characters", fieldErrors(body)["title"])
}

func TestContactInbox(t *testing.T) {
	s := newTestServer(t)
	alice, _ := s.register("alice")
	admin, _ := s.register("admin")

	code, body := s.do(http.MethodGet, "/api/contact/captcha", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["enabled"])

	code, body = s.do(http.MethodPost, "/api/contact", "", gin.H{
		"name":    "Carol",
		"email":   "carol@example.com",
		"subject": "Partnership",
		"message": "Would love to collaborate on a workshop.",
	})
	require.Equal(t, http.StatusCreated, code, body)
	id := body["contact"].(map[string]any)["id"].(string)

	code, _ = s.do(http.MethodGet, "/api/contact", alice, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, body = s.do(http.MethodGet, "/api/contact?status=pending", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["contacts"], 1)
	assert.EqualValues(t, 1, body["pagination"].(map[string]any)["totalContacts"])

	s.notifier.err = errors.New("smtp down")
	code, body = s.do(http.MethodPost, "/api/contact/"+id+"/reply", admin, gin.H{"replyMessage": "Thanks, let's talk next week."})
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "Failed to send reply email. Please try again.", body["message"])

	s.notifier.err = nil
	code, body = s.do(http.MethodPost, "/api/contact/"+id+"/reply", admin, gin.H{"replyMessage": "Thanks, let's talk next week."})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "replied", body["contact"].(map[string]any)["status"])

	code, body = s.do(http.MethodGet, "/api/contact/stats/summary", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["total"])
	assert.EqualValues(t, 1, body["replied"])

	code, body = s.do(http.MethodPatch, "/api/contact/"+id+"/status", admin, gin.H{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid status value", fieldErrors(body)["status"])
}
